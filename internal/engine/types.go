package engine

import (
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

// SubmitRequest is the engine-facing shape of a new-order instruction (§6).
type SubmitRequest struct {
	ClientID string
	Symbol   string
	Side     common.Side
	Type     common.OrderType
	Quantity uint64
	Price    decimal.Decimal // required (> 0) when Type == common.Limit
	OwnerID  string
	IsMaker  bool // true for liquidity-provider-generated quotes
}

// LiquidityProvider is the hook the engine calls before matching every
// client-originated order (§4.2.1 step 2, §4.5); maker orders submitted
// through Engine.SubmitMaker do not invoke it. Implemented by
// internal/liquidity.
// Declared here, not there, so the engine package has no dependency on the
// liquidity package — the liquidity provider depends on the engine instead,
// submitting maker orders back through Engine.SubmitMaker.
type LiquidityProvider interface {
	OnSubmit(symbol string, incoming *book.Order)
}

type noopLiquidityProvider struct{}

func (noopLiquidityProvider) OnSubmit(string, *book.Order) {}
