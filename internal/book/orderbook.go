// Package book implements the per-symbol order book: two price-ordered
// sides of FIFO queues, plus dual indexing by exchange id and client id.
//
// Generalized into a reusable per-symbol type the matching engine
// instantiates on demand, with arbitrary-position removal for cancel/amend,
// not just head-of-queue consumption.
package book

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"fenrir/internal/common"
)

// ErrInvalidOrder is returned by Add for an order that is not eligible to
// rest (terminal status or zero remaining quantity).
var ErrInvalidOrder = errors.New("book: order is not eligible to rest")

// PriceLevel is one price point on one side of a book: a FIFO queue of
// orders in arrival order.
type PriceLevel struct {
	Price  decimal.Decimal
	Orders []*Order
}

// priceLevels is a btree of PriceLevel ordered by price, ascending for asks
// and descending for bids.
type priceLevels = btree.BTreeG[*PriceLevel]

// OrderBook holds the resting orders for a single symbol. All operations
// are mutually exclusive on a single instance: callers (the matching
// engine) must hold Mu for the entire duration of a submit/cancel/amend
// call, including any matching loop, so that invariant (ii) — no crossed
// book after a call completes — is never observed broken by a concurrent
// reader.
type OrderBook struct {
	Mu sync.Mutex

	Symbol string

	bids *priceLevels // highest price first
	asks *priceLevels // lowest price first

	byExchangeID map[uint64]*Order
	byClientID   map[string]*Order
}

// New creates an empty order book for symbol.
func New(symbol string) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price)
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	})
	return &OrderBook{
		Symbol:       symbol,
		bids:         bids,
		asks:         asks,
		byExchangeID: make(map[uint64]*Order),
		byClientID:   make(map[string]*Order),
	}
}

func (b *OrderBook) levelsFor(s common.Side) *priceLevels {
	if s == common.Buy {
		return b.bids
	}
	return b.asks
}

// Add inserts order at the tail of the queue for its price on its side.
// order.Remaining must be > 0 and order.Status must be non-terminal.
func (b *OrderBook) Add(order *Order) error {
	if !order.Resting() {
		return ErrInvalidOrder
	}
	order.RestedAt = time.Now()

	levels := b.levelsFor(order.Side)
	key := &PriceLevel{Price: order.Price}
	if level, ok := levels.GetMut(key); ok {
		level.Orders = append(level.Orders, order)
	} else {
		levels.Set(&PriceLevel{Price: order.Price, Orders: []*Order{order}})
	}

	b.byExchangeID[order.ExchangeID] = order
	b.byClientID[order.ClientID] = order
	return nil
}

// RemoveByExchangeID removes and returns the order with the given exchange
// id, or (nil, false) if no such order rests in the book.
func (b *OrderBook) RemoveByExchangeID(id uint64) (*Order, bool) {
	order, ok := b.byExchangeID[id]
	if !ok {
		return nil, false
	}
	b.removeOrder(order)
	return order, true
}

// RemoveByClientID removes and returns the order with the given client id,
// or (nil, false) if no such order rests in the book.
func (b *OrderBook) RemoveByClientID(cid string) (*Order, bool) {
	order, ok := b.byClientID[cid]
	if !ok {
		return nil, false
	}
	b.removeOrder(order)
	return order, true
}

// removeOrder splices order out of its price-level queue and both indices,
// dropping the price level entirely if it becomes empty. The caller must
// already hold a reference to an order actually present in the book.
func (b *OrderBook) removeOrder(order *Order) {
	levels := b.levelsFor(order.Side)
	key := &PriceLevel{Price: order.Price}
	if level, ok := levels.GetMut(key); ok {
		for i, o := range level.Orders {
			if o.ExchangeID == order.ExchangeID {
				level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
				break
			}
		}
		if len(level.Orders) == 0 {
			levels.Delete(level)
		}
	}

	delete(b.byExchangeID, order.ExchangeID)
	delete(b.byClientID, order.ClientID)
}

// DropFilled removes a resting counter-order from the book once the
// matching loop has reduced its remaining quantity to zero. Kept distinct
// from RemoveByExchangeID at call sites for readability in the engine's
// matching loop, though the behavior is identical.
func (b *OrderBook) DropFilled(order *Order) {
	b.removeOrder(order)
}

// BestBid returns the head of the highest-priced bid queue, or (nil, false).
func (b *OrderBook) BestBid() (*Order, bool) {
	return b.head(common.Buy)
}

// BestAsk returns the head of the lowest-priced ask queue, or (nil, false).
func (b *OrderBook) BestAsk() (*Order, bool) {
	return b.head(common.Sell)
}

func (b *OrderBook) head(s common.Side) (*Order, bool) {
	levels := b.levelsFor(s)
	level, ok := levels.Min()
	if !ok || len(level.Orders) == 0 {
		return nil, false
	}
	return level.Orders[0], true
}

// TopN returns up to depth orders from the given side in strict priority
// order (price, then arrival time at that price).
func (b *OrderBook) TopN(s common.Side, depth int) []*Order {
	levels := b.levelsFor(s)

	out := make([]*Order, 0, depth)
	levels.Scan(func(level *PriceLevel) bool {
		for _, o := range level.Orders {
			out = append(out, o)
			if len(out) == depth {
				return false
			}
		}
		return true
	})
	return out
}

// LookupByClientID is an O(1) read of a resting order by client id.
func (b *OrderBook) LookupByClientID(cid string) (*Order, bool) {
	o, ok := b.byClientID[cid]
	return o, ok
}

// LookupByExchangeID is an O(1) read of a resting order by exchange id.
func (b *OrderBook) LookupByExchangeID(id uint64) (*Order, bool) {
	o, ok := b.byExchangeID[id]
	return o, ok
}

// Bids exposes the raw bid price levels, ordered highest-first, for
// diagnostics and the inspection API.
func (b *OrderBook) Bids() []*PriceLevel {
	out := make([]*PriceLevel, 0)
	b.bids.Scan(func(level *PriceLevel) bool {
		out = append(out, level)
		return true
	})
	return out
}

// Asks exposes the raw ask price levels, ordered lowest-first, for
// diagnostics and the inspection API.
func (b *OrderBook) Asks() []*PriceLevel {
	out := make([]*PriceLevel, 0)
	b.asks.Scan(func(level *PriceLevel) bool {
		out = append(out, level)
		return true
	})
	return out
}

// IsEmpty reports whether the book has no resting orders on either side.
func (b *OrderBook) IsEmpty() bool {
	return len(b.byExchangeID) == 0
}
