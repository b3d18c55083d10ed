package book

import (
	"time"

	"github.com/shopspring/decimal"

	"fenrir/internal/common"
)

// Execution is an immutable event describing a single state transition of
// one order. Executions are the only observable output of the engine.
type Execution struct {
	ExecID       uint64
	ExchangeID   uint64
	ClientID     string
	OrigClientID string // set only for cancel and amend responses
	Symbol       string
	Side         common.Side
	Price        decimal.Decimal // execution price, zero when not a fill
	Quantity     uint64          // execution quantity, zero when not a fill
	LeavesQty    uint64          // order.Remaining after this event
	CumQty       uint64          // order.Filled after this event
	Type         common.ExecType
	Status       common.OrderStatus
	Timestamp    time.Time
}
