package liquidity

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/common"
	"fenrir/internal/engine"
)

// PriceSource resolves a reference price for a symbol: the reference-price
// cache's Get, or a forced Refresh.
type PriceSource interface {
	Get(symbol string) (decimal.Decimal, bool)
	Refresh(symbol string) (decimal.Decimal, bool)
}

// makerGenerationCap bounds how many times postQuotes may add a fresh fan of
// quotes for one symbol before the provider stops refreshing it: caps the
// number of maker orders per symbol instead of cancelling prior ones.
const makerGenerationCap = 3

// Provider seeds a cold book with a fan of maker quotes on first touch and
// refreshes them when the reference price moves.
type Provider struct {
	mu sync.Mutex

	engine       *engine.Engine
	prices       PriceSource
	profiles     *ProfileCache
	fallback     decimal.Decimal
	makerOwner   string
	refreshEvery time.Duration

	active      map[string]bool
	lastPrice   map[string]decimal.Decimal
	generations map[string]int
}

// Config bundles Provider's construction parameters.
type Config struct {
	Prices          PriceSource
	Profiles        *ProfileCache
	FallbackPrice   decimal.Decimal // default reference price, e.g. 100.00
	RefreshInterval time.Duration   // periodic refresh cadence
	MakerOwner      string          // distinguished sender id for maker orders
}

// NewProvider constructs a Provider. Call Attach once the engine exists.
func NewProvider(cfg Config) *Provider {
	owner := cfg.MakerOwner
	if owner == "" {
		owner = "liquidity-provider"
	}
	return &Provider{
		prices:       cfg.Prices,
		profiles:     cfg.Profiles,
		fallback:     cfg.FallbackPrice,
		makerOwner:   owner,
		refreshEvery: cfg.RefreshInterval,
		active:       make(map[string]bool),
		lastPrice:    make(map[string]decimal.Decimal),
		generations:  make(map[string]int),
	}
}

// Attach wires the provider to the engine it will post maker orders
// through. Must be called before OnSubmit/Setup are used.
func (p *Provider) Attach(e *engine.Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engine = e
}

// OnSubmit implements engine.LiquidityProvider. If symbol is already
// active, it returns immediately — this is the idempotence guard that keeps
// repeated client submits from re-seeding the book.
func (p *Provider) OnSubmit(symbol string, incoming *book.Order) {
	p.mu.Lock()
	if p.active[symbol] {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	var incomingPrice decimal.Decimal
	var incomingIsLimit bool
	if incoming != nil {
		incomingPrice = incoming.Price
		incomingIsLimit = incoming.Type == common.Limit
	}
	p.seed(symbol, incomingIsLimit, incomingPrice)
}

// Setup is the external entry point equivalent to OnSubmit(symbol, nil):
// seed a symbol proactively, without waiting for a client order to touch it.
func (p *Provider) Setup(symbol string) {
	p.mu.Lock()
	if p.active[symbol] {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.seed(symbol, false, decimal.Zero)
}

func (p *Provider) seed(symbol string, incomingIsLimit bool, incomingPrice decimal.Decimal) {
	profile := p.profiles.Get(symbol)
	ref := p.referencePrice(symbol, incomingIsLimit, incomingPrice)

	p.postQuotes(symbol, ref, profile)

	p.mu.Lock()
	p.active[symbol] = true
	p.lastPrice[symbol] = ref
	p.mu.Unlock()
}

// referencePrice resolves in priority order: the cached reference price,
// then the incoming limit order's price, then the configured fallback.
func (p *Provider) referencePrice(symbol string, incomingIsLimit bool, incomingPrice decimal.Decimal) decimal.Decimal {
	if price, ok := p.prices.Get(symbol); ok {
		return price
	}
	if incomingIsLimit && incomingPrice.GreaterThan(decimal.Zero) {
		return incomingPrice
	}
	return p.fallback
}

// postQuotes computes, for each price level, a bid/ask offset in basis
// points and submits a resting limit order on each side under a generated
// maker client id.
func (p *Provider) postQuotes(symbol string, ref decimal.Decimal, profile Profile) {
	p.mu.Lock()
	generation := p.generations[symbol]
	if generation >= makerGenerationCap {
		p.mu.Unlock()
		log.Debug().Str("symbol", symbol).Msg("maker generation cap reached, skipping refresh")
		return
	}
	p.generations[symbol] = generation + 1
	p.mu.Unlock()

	tenThousand := decimal.NewFromInt(10000)
	qty := profile.BaseQty

	for level := 0; level < profile.Levels; level++ {
		offsetBps := decimal.NewFromInt(profile.BaseSpreadBps + int64(level)*profile.LevelIncrementBps)
		offset := offsetBps.Div(tenThousand)

		bidPrice := roundDown2dp(ref.Mul(decimal.NewFromInt(1).Sub(offset)))
		askPrice := roundUp2dp(ref.Mul(decimal.NewFromInt(1).Add(offset)))

		p.submitMaker(symbol, common.Buy, bidPrice, qty)
		p.submitMaker(symbol, common.Sell, askPrice, qty)

		qty *= profile.QtyMultiplier
	}
}

func (p *Provider) submitMaker(symbol string, side common.Side, price decimal.Decimal, qty uint64) {
	if p.engine == nil {
		return
	}
	clientID := fmt.Sprintf("mm-%s", uuid.New().String())
	if _, err := p.engine.SubmitMaker(engine.SubmitRequest{
		ClientID: clientID,
		Symbol:   symbol,
		Side:     side,
		Type:     common.Limit,
		Quantity: qty,
		Price:    price,
		OwnerID:  p.makerOwner,
	}); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("failed to post liquidity-provider maker quote")
	}
}

// roundDown2dp rounds toward zero (floor) to two fractional digits — bids
// always round down.
func roundDown2dp(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// roundUp2dp rounds away from zero (ceiling) to two fractional digits —
// asks always round up.
func roundUp2dp(d decimal.Decimal) decimal.Decimal {
	truncated := d.Truncate(2)
	if truncated.Equal(d) {
		return truncated
	}
	step := decimal.New(1, -2)
	return truncated.Add(step)
}

// StartRefresh runs the periodic refresh loop: every refresh interval,
// fetch a fresh reference price for each active symbol and, if it differs
// from the stored last price, call postQuotes again. Re-quoting is additive
// rather than cancel-and-replace, bounded by makerGenerationCap.
func (p *Provider) StartRefresh(t *tomb.Tomb) {
	if p.refreshEvery <= 0 {
		return
	}
	t.Go(func() error {
		ticker := time.NewTicker(p.refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-t.Dying():
				return nil
			case <-ticker.C:
				p.refreshActive()
			}
		}
	})
}

func (p *Provider) refreshActive() {
	p.mu.Lock()
	symbols := make([]string, 0, len(p.active))
	for s, active := range p.active {
		if active {
			symbols = append(symbols, s)
		}
	}
	p.mu.Unlock()

	for _, symbol := range symbols {
		price, ok := p.prices.Refresh(symbol)
		if !ok {
			continue
		}

		p.mu.Lock()
		last, known := p.lastPrice[symbol]
		changed := !known || !last.Equal(price)
		p.mu.Unlock()
		if !changed {
			continue
		}

		profile := p.profiles.Get(symbol)
		p.postQuotes(symbol, price, profile)

		p.mu.Lock()
		p.lastPrice[symbol] = price
		p.mu.Unlock()
	}
}

// Active reports whether symbol has been seeded, for the inspection API.
func (p *Provider) Active(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[symbol]
}

// LastPrice returns the last reference price used to seed symbol, for the
// inspection API.
func (p *Provider) LastPrice(symbol string) (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.lastPrice[symbol]
	return price, ok
}
