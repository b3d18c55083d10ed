package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/common"
)

func mkOrder(exchangeID uint64, clientID string, side common.Side, price string, qty uint64) *Order {
	return &Order{
		ClientID:   clientID,
		ExchangeID: exchangeID,
		Symbol:     "AAPL",
		Side:       side,
		Type:       common.Limit,
		Price:      decimal.RequireFromString(price),
		OrigQty:    qty,
		Remaining:  qty,
		Status:     common.StatusNew,
	}
}

func TestOrderBook_AddOrdersLevels(t *testing.T) {
	b := New("AAPL")

	require.NoError(t, b.Add(mkOrder(1, "c1", common.Buy, "99.00", 100)))
	require.NoError(t, b.Add(mkOrder(2, "c2", common.Buy, "99.00", 90)))
	require.NoError(t, b.Add(mkOrder(3, "c3", common.Buy, "98.00", 50)))
	require.NoError(t, b.Add(mkOrder(4, "c4", common.Sell, "100.00", 100)))
	require.NoError(t, b.Add(mkOrder(5, "c5", common.Sell, "101.00", 20)))

	best, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, "99", best.Price.String())
	assert.Equal(t, "c1", best.ClientID, "FIFO: earliest order at a price level is head")

	bestAsk, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, "100", bestAsk.Price.String())

	bids := b.Bids()
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Price.GreaterThan(bids[1].Price), "bids ordered highest-first")

	asks := b.Asks()
	require.Len(t, asks, 2)
	assert.True(t, asks[0].Price.LessThan(asks[1].Price), "asks ordered lowest-first")
}

func TestOrderBook_AddRejectsNonResting(t *testing.T) {
	b := New("AAPL")
	terminal := mkOrder(1, "c1", common.Buy, "99.00", 100)
	terminal.Status = common.StatusFilled
	terminal.Remaining = 0

	err := b.Add(terminal)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestOrderBook_RemoveByClientID_DropsEmptyLevel(t *testing.T) {
	b := New("AAPL")
	require.NoError(t, b.Add(mkOrder(1, "c1", common.Buy, "99.00", 100)))

	removed, ok := b.RemoveByClientID("c1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), removed.ExchangeID)

	_, ok = b.BestBid()
	assert.False(t, ok, "price level with no remaining orders should be gone")
	assert.True(t, b.IsEmpty())
}

func TestOrderBook_RemoveByExchangeID_PreservesLevelSiblings(t *testing.T) {
	b := New("AAPL")
	require.NoError(t, b.Add(mkOrder(1, "c1", common.Buy, "99.00", 100)))
	require.NoError(t, b.Add(mkOrder(2, "c2", common.Buy, "99.00", 90)))

	_, ok := b.RemoveByExchangeID(1)
	require.True(t, ok)

	best, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, "c2", best.ClientID, "removing the head should promote the next order at that level")
}

func TestOrderBook_TopN_RespectsDepthAndPriority(t *testing.T) {
	b := New("AAPL")
	require.NoError(t, b.Add(mkOrder(1, "c1", common.Sell, "100.00", 100)))
	require.NoError(t, b.Add(mkOrder(2, "c2", common.Sell, "100.00", 90)))
	require.NoError(t, b.Add(mkOrder(3, "c3", common.Sell, "101.00", 20)))

	top := b.TopN(common.Sell, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "c1", top[0].ClientID)
	assert.Equal(t, "c2", top[1].ClientID)
}

func TestOrderBook_LookupByExchangeAndClientID(t *testing.T) {
	b := New("AAPL")
	require.NoError(t, b.Add(mkOrder(1, "c1", common.Buy, "99.00", 100)))

	byExch, ok := b.LookupByExchangeID(1)
	require.True(t, ok)
	byClient, ok := b.LookupByClientID("c1")
	require.True(t, ok)
	assert.Same(t, byExch, byClient, "both indices point at the same order instance")
}
