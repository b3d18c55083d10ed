package liquidity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/common"
	"fenrir/internal/engine"
)

type fakePriceSource struct {
	price decimal.Decimal
	ok    bool
}

func (f *fakePriceSource) Get(symbol string) (decimal.Decimal, bool)     { return f.price, f.ok }
func (f *fakePriceSource) Refresh(symbol string) (decimal.Decimal, bool) { return f.price, f.ok }

func newTestProvider(prices PriceSource) (*Provider, *engine.Engine) {
	p := NewProvider(Config{
		Prices:        prices,
		Profiles:      NewProfileCache(nil),
		FallbackPrice: decimal.RequireFromString("100.00"),
	})
	e := engine.New()
	p.Attach(e)
	e.SetLiquidityProvider(p)
	return p, e
}

func TestProvider_SeedsBothSidesOnFirstTouch(t *testing.T) {
	_, e := newTestProvider(&fakePriceSource{price: decimal.RequireFromString("50.00"), ok: true})

	_, err := e.Submit(engine.SubmitRequest{
		ClientID: "c1", Symbol: "AAPL", Side: common.Buy, Type: common.Limit,
		Quantity: 10, Price: decimal.RequireFromString("50.00"), OwnerID: "tester",
	})
	require.NoError(t, err)

	b, ok := e.Book("AAPL")
	require.True(t, ok)

	bids := b.TopN(common.Buy, 100)
	asks := b.TopN(common.Sell, 100)
	assert.NotEmpty(t, bids, "unknown-tier profile should have seeded resting bids")
	assert.NotEmpty(t, asks, "unknown-tier profile should have seeded resting asks")

	for _, o := range bids {
		if o.ClientID == "c1" {
			continue
		}
		assert.True(t, o.Price.LessThan(decimal.RequireFromString("50.00")), "maker bids must be below the reference price")
	}
	for _, o := range asks {
		assert.True(t, o.Price.GreaterThan(decimal.RequireFromString("50.00")), "maker asks must be above the reference price")
	}
}

func TestProvider_IdempotentAcrossRepeatedSubmits(t *testing.T) {
	p, e := newTestProvider(&fakePriceSource{price: decimal.RequireFromString("50.00"), ok: true})

	_, err := e.Submit(engine.SubmitRequest{
		ClientID: "c1", Symbol: "AAPL", Side: common.Buy, Type: common.Limit,
		Quantity: 10, Price: decimal.RequireFromString("50.00"), OwnerID: "tester",
	})
	require.NoError(t, err)

	b, _ := e.Book("AAPL")
	countAfterFirst := len(b.TopN(common.Buy, 1000)) + len(b.TopN(common.Sell, 1000))

	_, err = e.Submit(engine.SubmitRequest{
		ClientID: "c2", Symbol: "AAPL", Side: common.Buy, Type: common.Limit,
		Quantity: 10, Price: decimal.RequireFromString("50.00"), OwnerID: "tester",
	})
	require.NoError(t, err)

	countAfterSecond := len(b.TopN(common.Buy, 1000)) + len(b.TopN(common.Sell, 1000))
	assert.Equal(t, countAfterFirst+1, countAfterSecond, "second submit adds only its own order; no re-seeding")
	assert.True(t, p.Active("AAPL"))
}

func TestProvider_ReferencePriceFallsBackToIncomingLimitThenFallback(t *testing.T) {
	p, _ := newTestProvider(&fakePriceSource{ok: false})

	price := p.referencePrice("AAPL", true, decimal.RequireFromString("42.00"))
	assert.Equal(t, "42", price.String())

	price = p.referencePrice("AAPL", false, decimal.Decimal{})
	assert.Equal(t, "100", price.String())
}

func TestProvider_RefreshSkipsUnchangedPrice(t *testing.T) {
	source := &fakePriceSource{price: decimal.RequireFromString("50.00"), ok: true}
	p, e := newTestProvider(source)

	p.Setup("AAPL")
	b, _ := e.Book("AAPL")
	countBefore := len(b.TopN(common.Buy, 1000)) + len(b.TopN(common.Sell, 1000))

	p.refreshActive()
	countAfter := len(b.TopN(common.Buy, 1000)) + len(b.TopN(common.Sell, 1000))
	assert.Equal(t, countBefore, countAfter, "unchanged reference price must not re-quote")
}

func TestProvider_RefreshRepostsOnPriceChange(t *testing.T) {
	source := &fakePriceSource{price: decimal.RequireFromString("50.00"), ok: true}
	p, e := newTestProvider(source)

	p.Setup("AAPL")
	b, _ := e.Book("AAPL")
	countBefore := len(b.TopN(common.Buy, 1000)) + len(b.TopN(common.Sell, 1000))

	// A small move, so the new fan does not cross (and trade away) the
	// previous generation's quotes.
	source.price = decimal.RequireFromString("50.01")
	p.refreshActive()

	countAfter := len(b.TopN(common.Buy, 1000)) + len(b.TopN(common.Sell, 1000))
	assert.Greater(t, countAfter, countBefore)

	last, ok := p.LastPrice("AAPL")
	require.True(t, ok)
	assert.Equal(t, "50.01", last.String())
}

func TestRoundDownAndRoundUp2dp(t *testing.T) {
	assert.Equal(t, "99.99", roundDown2dp(decimal.RequireFromString("99.999")).String())
	assert.Equal(t, "100.01", roundUp2dp(decimal.RequireFromString("100.001")).String())
	assert.Equal(t, "100", roundUp2dp(decimal.RequireFromString("100.00")).String())
}

func TestStartRefresh_StopsOnTombKill(t *testing.T) {
	p := NewProvider(Config{
		Prices:          &fakePriceSource{ok: false},
		Profiles:        NewProfileCache(nil),
		FallbackPrice:   decimal.RequireFromString("100.00"),
		RefreshInterval: time.Millisecond,
	})
	var tb tomb.Tomb
	p.StartRefresh(&tb)
	tb.Kill(nil)
	require.NoError(t, tb.Wait())
}
