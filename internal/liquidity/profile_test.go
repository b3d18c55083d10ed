package liquidity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fenrir/internal/common"
)

func TestTierFromMarketCap(t *testing.T) {
	cases := []struct {
		name      string
		marketCap string
		want      common.Tier
	}{
		{"mega", "600000000000", common.TierMegaCap},
		{"mega boundary", "500000000000", common.TierMegaCap},
		{"large", "60000000000", common.TierLargeCap},
		{"mid", "15000000000", common.TierMidCap},
		{"small", "1000000000", common.TierSmallCap},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tierFromMarketCap(decimal.RequireFromString(tc.marketCap))
			assert.Equal(t, tc.want, got)
		})
	}
}

type fakeProfileFetcher struct {
	marketCap decimal.Decimal
	err       error
	calls     int
}

func (f *fakeProfileFetcher) FetchMarketCap(symbol string) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.marketCap, nil
}

func TestProfileCache_CachesIndefinitely(t *testing.T) {
	fetcher := &fakeProfileFetcher{marketCap: decimal.RequireFromString("600000000000")}
	c := NewProfileCache(fetcher)

	p1 := c.Get("AAPL")
	assert.Equal(t, common.TierMegaCap, p1.Tier)
	assert.Equal(t, 1, fetcher.calls)

	p2 := c.Get("AAPL")
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, fetcher.calls, "second Get must hit the cache, never re-fetch")
}

func TestProfileCache_UnknownTierOnFetchFailure(t *testing.T) {
	fetcher := &fakeProfileFetcher{err: assertErr{}}
	c := NewProfileCache(fetcher)

	p := c.Get("AAPL")
	assert.Equal(t, common.TierUnknown, p.Tier)
}

func TestProfileCache_NilFetcherYieldsUnknownTier(t *testing.T) {
	c := NewProfileCache(nil)
	p := c.Get("AAPL")
	assert.Equal(t, common.TierUnknown, p.Tier)
}

type assertErr struct{}

func (assertErr) Error() string { return "fetch failed" }
