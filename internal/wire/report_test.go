package wire

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

func TestBuildReport_FillPopulatesLastFields(t *testing.T) {
	exec := &book.Execution{
		ExecID: 1, ExchangeID: 10, ClientID: "c1", Symbol: "AAPL",
		Side: common.Buy, Price: decimal.RequireFromString("100.00"), Quantity: 5,
		LeavesQty: 5, CumQty: 5, Type: common.ExecFill, Status: common.StatusFilled,
		Timestamp: time.Now(),
	}
	report := BuildReport(exec)
	assert.Equal(t, uint64(5), report.LastQty)
	assert.True(t, report.LastPrice.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, report.AvgPrice.Equal(decimal.RequireFromString("100.00")))
}

func TestBuildReport_NonFillLeavesLastFieldsZero(t *testing.T) {
	exec := &book.Execution{
		ExecID: 1, ExchangeID: 10, ClientID: "c1", Symbol: "AAPL",
		Side: common.Buy, Type: common.ExecNew, Status: common.StatusNew,
		Timestamp: time.Now(),
	}
	report := BuildReport(exec)
	assert.Equal(t, uint64(0), report.LastQty)
	assert.True(t, report.LastPrice.IsZero())
}
