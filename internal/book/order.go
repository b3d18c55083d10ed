package book

import (
	"time"

	"github.com/shopspring/decimal"

	"fenrir/internal/common"
)

// Order is a single trading instruction tracked by one symbol's OrderBook.
//
// Invariants: Filled+Remaining == OrigQty at all times; Filled never
// decreases; a resting order always has Remaining > 0 and Status in
// {StatusNew, StatusPartiallyFilled}; once Status reaches a terminal value
// it never changes again.
type Order struct {
	ClientID    string // externally supplied, unique per session
	ExchangeID  uint64 // engine-assigned, monotonic
	Symbol      string
	Side        common.Side
	Type        common.OrderType
	Price       decimal.Decimal // limit price; meaningless for Type == Market
	OrigQty     uint64
	Filled      uint64
	Remaining   uint64
	Status      common.OrderStatus
	OwnerID     string // session/owner identifier copied from the submitting caller
	IsMaker     bool   // true for liquidity-provider-generated quotes
	CreatedAt   time.Time
	RestedAt    time.Time // time.Time at which the order was added to a book queue
}

// Clone returns a deep copy safe to hand to a caller outside the book.
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}

// Resting reports whether the order currently belongs in a book queue.
func (o *Order) Resting() bool {
	return o.Remaining > 0 && !o.Status.IsTerminal()
}
