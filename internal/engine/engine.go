// Package engine implements the matching engine: the set of per-symbol
// order books, the two monotonic id counters, and the submit/cancel/amend
// call surface that produces the execution stream.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

// Engine owns the symbol→book map and the two monotonic counters. It is
// constructed once per process and handed, by reference, to the wire layer,
// the inspection API, and the liquidity provider — there is no
// package-level singleton.
type Engine struct {
	booksMu sync.RWMutex
	books   map[string]*book.OrderBook

	exchangeIDSeq atomic.Uint64
	execIDSeq     atomic.Uint64

	liquidity LiquidityProvider
}

// New constructs an empty engine. SetLiquidityProvider may be called once
// before the engine starts receiving traffic to enable seeding; if never
// called, liquidity provisioning is a no-op (enable-liquidity=false, §6).
func New() *Engine {
	return &Engine{
		books:     make(map[string]*book.OrderBook),
		liquidity: noopLiquidityProvider{},
	}
}

// SetLiquidityProvider wires the liquidity provider the engine invokes on
// every client submit (not on SubmitMaker). Must be called before Submit is
// first used concurrently.
func (e *Engine) SetLiquidityProvider(lp LiquidityProvider) {
	if lp == nil {
		lp = noopLiquidityProvider{}
	}
	e.liquidity = lp
}

// bookFor returns the order book for symbol, creating it on first touch.
func (e *Engine) bookFor(symbol string) *book.OrderBook {
	e.booksMu.RLock()
	b, ok := e.books[symbol]
	e.booksMu.RUnlock()
	if ok {
		return b
	}

	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	if b, ok = e.books[symbol]; ok {
		return b
	}
	b = book.New(symbol)
	e.books[symbol] = b
	return b
}

// lookupBook returns the existing order book for symbol, or (nil, false) if
// the symbol has never been touched. Used by cancel/amend, which must
// reject against an unknown symbol rather than silently create a book.
func (e *Engine) lookupBook(symbol string) (*book.OrderBook, bool) {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()
	b, ok := e.books[symbol]
	return b, ok
}

func (e *Engine) nextExchangeID() uint64 { return e.exchangeIDSeq.Add(1) }
func (e *Engine) nextExecID() uint64     { return e.execIDSeq.Add(1) }

// Submit handles a client-originated new-order instruction (§4.2.1).
func (e *Engine) Submit(req SubmitRequest) ([]*book.Execution, error) {
	return e.submit(req, true)
}

// SubmitMaker submits a liquidity-provider-generated quote. It runs the
// identical admission and matching logic as Submit but does not invoke the
// liquidity hook, which is how §4.5's idempotence guard against infinite
// recursion is enforced: only client-originated submits can trigger
// provisioning for a symbol.
func (e *Engine) SubmitMaker(req SubmitRequest) ([]*book.Execution, error) {
	req.IsMaker = true
	return e.submit(req, false)
}

func (e *Engine) submit(req SubmitRequest, triggerLiquidity bool) ([]*book.Execution, error) {
	if req.ClientID == "" {
		return nil, ErrEmptyClientID
	}
	if req.Symbol == "" {
		return nil, ErrEmptySymbol
	}
	if req.Quantity == 0 {
		return nil, ErrBadQuantity
	}
	if req.Type == common.Limit && !req.Price.GreaterThan(decimal.Zero) {
		return nil, ErrBadLimitPrice
	}

	order := &book.Order{
		ClientID:   req.ClientID,
		ExchangeID: e.nextExchangeID(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Price:      req.Price,
		OrigQty:    req.Quantity,
		Filled:     0,
		Remaining:  req.Quantity,
		Status:     common.StatusNew,
		OwnerID:    req.OwnerID,
		IsMaker:    req.IsMaker,
		CreatedAt:  time.Now(),
	}

	b := e.bookFor(req.Symbol)

	if triggerLiquidity {
		// Synchronous; may recursively call SubmitMaker for this symbol.
		// Must happen before we take the book lock below so that maker
		// submissions (which take the same lock) never deadlock against us.
		e.liquidity.OnSubmit(req.Symbol, order)
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()

	execs := make([]*book.Execution, 0, 4)
	execs = append(execs, e.buildExec(order, common.ExecNew, decimal.Zero, 0, ""))

	e.matchLoop(b, order, &execs)

	if order.Remaining > 0 {
		switch order.Type {
		case common.Limit:
			if order.Filled > 0 {
				order.Status = common.StatusPartiallyFilled
			}
			_ = b.Add(order)
		case common.Market:
			order.Status = common.StatusRejected
			execs = append(execs, e.buildExec(order, common.ExecRejected, decimal.Zero, 0, ""))
		}
	}

	return execs, nil
}

// Cancel handles a cancel-request (§4.2.2). Every failure path manifests as
// exactly one rejected execution; there is no other error surface.
func (e *Engine) Cancel(symbol, origClientID, newClientID string) []*book.Execution {
	b, ok := e.lookupBook(symbol)
	if !ok {
		return []*book.Execution{e.rejectedByClientID(symbol, origClientID, newClientID)}
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()

	order, ok := b.RemoveByClientID(origClientID)
	if !ok {
		return []*book.Execution{e.rejectedByClientID(symbol, origClientID, newClientID)}
	}

	order.Status = common.StatusCancelled
	order.Remaining = 0 // no longer live on any book; leaves-quantity is 0 (§3 Execution)
	exec := e.buildExec(order, common.ExecCancelled, decimal.Zero, 0, newClientID)
	return []*book.Execution{exec}
}

// rejectedByClientID builds the single rejected execution emitted when
// cancel/amend cannot find a book or an order to act on. No exchange id
// exists to report in this case.
func (e *Engine) rejectedByClientID(symbol, origClientID, newClientID string) *book.Execution {
	clientID := newClientID
	if clientID == "" {
		clientID = origClientID
	}
	return &book.Execution{
		ExecID:       e.nextExecID(),
		ClientID:     clientID,
		OrigClientID: origClientID,
		Symbol:       symbol,
		Type:         common.ExecRejected,
		Status:       common.StatusRejected,
		Timestamp:    time.Now(),
	}
}

// Amend handles an amend-request as an atomic cancel-and-replace (§4.2.3).
// The old order either has no effect (rejection leaves it resting
// untouched) or is entirely replaced by a new order with a new exchange id.
func (e *Engine) Amend(symbol, origClientID, newClientID string, newQty *uint64, newPrice *decimal.Decimal) []*book.Execution {
	b, ok := e.lookupBook(symbol)
	if !ok {
		return []*book.Execution{e.rejectedByClientID(symbol, origClientID, newClientID)}
	}

	b.Mu.Lock()
	defer b.Mu.Unlock()

	existing, ok := b.LookupByClientID(origClientID)
	if !ok {
		return []*book.Execution{e.rejectedByClientID(symbol, origClientID, newClientID)}
	}

	effectiveQty := existing.OrigQty
	if newQty != nil {
		effectiveQty = *newQty
	}
	if effectiveQty < existing.Filled {
		return []*book.Execution{e.rejectedByClientID(symbol, origClientID, newClientID)}
	}

	// Validation passed: remove the old order and build its replacement.
	// From this point the call cannot fail back to "no effect" — the old
	// order is gone and a replaced execution WILL be emitted.
	b.RemoveByClientID(origClientID)

	effectivePrice := existing.Price
	if newPrice != nil {
		effectivePrice = *newPrice
	}

	amended := &book.Order{
		ClientID:   newClientID,
		ExchangeID: e.nextExchangeID(),
		Symbol:     symbol,
		Side:       existing.Side,
		Type:       existing.Type,
		Price:      effectivePrice,
		OrigQty:    effectiveQty,
		Filled:     existing.Filled,
		Remaining:  effectiveQty - existing.Filled,
		Status:     common.StatusNew,
		OwnerID:    existing.OwnerID,
		IsMaker:    existing.IsMaker,
		CreatedAt:  time.Now(),
	}
	if amended.Filled > 0 {
		_, amended.Status = fillOutcome(amended.Remaining)
	}

	execs := make([]*book.Execution, 0, 4)
	execs = append(execs, e.buildExec(amended, common.ExecReplaced, effectivePrice, 0, origClientID))

	if amended.Remaining > 0 {
		e.matchLoop(b, amended, &execs)

		if amended.Remaining > 0 {
			switch amended.Type {
			case common.Limit:
				_ = b.Add(amended)
			case common.Market:
				amended.Status = common.StatusRejected
				execs = append(execs, e.buildExec(amended, common.ExecRejected, decimal.Zero, 0, ""))
			}
		}
	}

	return execs
}

// matchLoop repeatedly crosses order against the best available counter
// order in b until order is exhausted or the book no longer crosses,
// appending generated executions to *execs in emission order.
func (e *Engine) matchLoop(b *book.OrderBook, order *book.Order, execs *[]*book.Execution) {
	for order.Remaining > 0 {
		var counter *book.Order
		var ok bool
		if order.Side == common.Buy {
			counter, ok = b.BestAsk()
		} else {
			counter, ok = b.BestBid()
		}
		if !ok {
			break
		}

		if order.Type == common.Limit {
			if order.Side == common.Buy && order.Price.LessThan(counter.Price) {
				break
			}
			if order.Side == common.Sell && order.Price.GreaterThan(counter.Price) {
				break
			}
		}

		e.executeMatch(b, order, counter, execs)
	}
}

// executeMatch crosses aggressor against passive: the resting order's price
// governs the trade, so the aggressor receives price improvement equal to
// the depth of the cross.
func (e *Engine) executeMatch(b *book.OrderBook, aggressor, passive *book.Order, execs *[]*book.Execution) {
	matchQty := aggressor.Remaining
	if passive.Remaining < matchQty {
		matchQty = passive.Remaining
	}
	matchPrice := passive.Price

	aggressor.Filled += matchQty
	aggressor.Remaining -= matchQty
	passive.Filled += matchQty
	passive.Remaining -= matchQty

	aggressorType, aggressorStatus := fillOutcome(aggressor.Remaining)
	passiveType, passiveStatus := fillOutcome(passive.Remaining)
	aggressor.Status = aggressorStatus
	passive.Status = passiveStatus

	*execs = append(*execs, e.buildExec(aggressor, aggressorType, matchPrice, matchQty, ""))
	*execs = append(*execs, e.buildExec(passive, passiveType, matchPrice, matchQty, ""))

	if passive.Remaining == 0 {
		b.DropFilled(passive)
	}
}

func fillOutcome(remaining uint64) (common.ExecType, common.OrderStatus) {
	if remaining == 0 {
		return common.ExecFill, common.StatusFilled
	}
	return common.ExecPartialFill, common.StatusPartiallyFilled
}

func (e *Engine) buildExec(order *book.Order, execType common.ExecType, price decimal.Decimal, qty uint64, origClientID string) *book.Execution {
	return &book.Execution{
		ExecID:       e.nextExecID(),
		ExchangeID:   order.ExchangeID,
		ClientID:     order.ClientID,
		OrigClientID: origClientID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Price:        price,
		Quantity:     qty,
		LeavesQty:    order.Remaining,
		CumQty:       order.Filled,
		Type:         execType,
		Status:       order.Status,
		Timestamp:    time.Now(),
	}
}

// Book returns the order book for symbol if it has been touched, for the
// inspection API (§4.7). It never creates a book as a side effect.
func (e *Engine) Book(symbol string) (*book.OrderBook, bool) {
	return e.lookupBook(symbol)
}

// Symbols returns the set of symbols that have an order book, for
// diagnostics.
func (e *Engine) Symbols() []string {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()
	out := make([]string, 0, len(e.books))
	for s := range e.books {
		out = append(out, s)
	}
	return out
}
