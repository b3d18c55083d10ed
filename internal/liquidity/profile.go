// Package liquidity implements the liquidity profile cache and the
// liquidity provider that seeds a cold book with maker quotes.
package liquidity

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/common"
)

// Profile is a per-symbol liquidity classification.
type Profile struct {
	Symbol             string
	Tier               common.Tier
	MarketCapUSD       decimal.Decimal
	BaseSpreadBps      int64
	LevelIncrementBps  int64
	BaseQty            uint64
	QtyMultiplier      uint64
	Levels             int
}

// tierParams maps tier → (spread-bps, level-increment-bps, base-qty,
// qty-multiplier, levels).
var tierParams = map[common.Tier]struct {
	spreadBps, incrementBps int64
	baseQty, qtyMultiplier  uint64
	levels                  int
}{
	common.TierMegaCap:   {1, 1, 1000, 2, 5},
	common.TierLargeCap:  {2, 2, 500, 2, 5},
	common.TierMidCap:    {5, 3, 200, 2, 5},
	common.TierSmallCap:  {10, 5, 100, 2, 5},
	common.TierUnknown:   {10, 5, 100, 2, 5},
}

func newProfile(symbol string, tier common.Tier, marketCap decimal.Decimal) Profile {
	p := tierParams[tier]
	return Profile{
		Symbol:            symbol,
		Tier:              tier,
		MarketCapUSD:      marketCap,
		BaseSpreadBps:     p.spreadBps,
		LevelIncrementBps: p.incrementBps,
		BaseQty:           p.baseQty,
		QtyMultiplier:     p.qtyMultiplier,
		Levels:            p.levels,
	}
}

// Tier thresholds: mega >= 500e9, large >= 50e9, mid >= 10e9, else small.
var (
	megaCapThreshold = decimal.New(500, 9)
	largeCapThreshold = decimal.New(50, 9)
	midCapThreshold   = decimal.New(10, 9)
)

func tierFromMarketCap(marketCap decimal.Decimal) common.Tier {
	switch {
	case marketCap.GreaterThanOrEqual(megaCapThreshold):
		return common.TierMegaCap
	case marketCap.GreaterThanOrEqual(largeCapThreshold):
		return common.TierLargeCap
	case marketCap.GreaterThanOrEqual(midCapThreshold):
		return common.TierMidCap
	default:
		return common.TierSmallCap
	}
}

// ProfileFetcher performs the blocking remote fetch of company metadata
// used to classify a symbol's tier.
type ProfileFetcher interface {
	FetchMarketCap(symbol string) (decimal.Decimal, error)
}

// ProfileCache caches Profile values indefinitely per symbol, on the
// assumption that a symbol's fundamentals are stable for a trading session.
type ProfileCache struct {
	store   *gocache.Cache
	fetcher ProfileFetcher
}

// NewProfileCache constructs an indefinite profile cache. A nil fetcher, or
// a failed fetch, makes every miss resolve to the unknown tier.
func NewProfileCache(fetcher ProfileFetcher) *ProfileCache {
	return &ProfileCache{
		store:   gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		fetcher: fetcher,
	}
}

// Get returns the cached profile for symbol, fetching and classifying it on
// first touch.
func (c *ProfileCache) Get(symbol string) Profile {
	if v, ok := c.store.Get(symbol); ok {
		return v.(Profile)
	}

	var marketCap decimal.Decimal
	tier := common.TierUnknown
	if c.fetcher != nil {
		if cap, err := c.fetcher.FetchMarketCap(symbol); err == nil {
			marketCap = cap
			tier = tierFromMarketCap(cap)
		}
	}

	profile := newProfile(symbol, tier, marketCap)
	c.store.Set(symbol, profile, gocache.NoExpiration)
	return profile
}

// HTTPProfileFetcher fetches company-profile market-capitalisation data
// over HTTP+JSON.
type HTTPProfileFetcher struct {
	http   *resty.Client
	apiKey string
}

func NewHTTPProfileFetcher(baseURL, apiKey string) *HTTPProfileFetcher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetHeader("Accept", "application/json")
	return &HTTPProfileFetcher{http: client, apiKey: apiKey}
}

type profileResponse struct {
	Symbol       string `json:"symbol"`
	MarketCapUSD string `json:"marketCapUsd"`
}

func (f *HTTPProfileFetcher) FetchMarketCap(symbol string) (decimal.Decimal, error) {
	var out profileResponse
	resp, err := f.http.R().
		SetHeader("X-Api-Key", f.apiKey).
		SetQueryParam("symbol", symbol).
		SetResult(&out).
		Get("/profile")
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("liquidity: profile request: %w", err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		log.Warn().Str("symbol", symbol).Msg("liquidity: profile service rate limited (429)")
		return decimal.Decimal{}, fmt.Errorf("liquidity: rate limited (429) for %s", symbol)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("liquidity: profile status %d for %s", resp.StatusCode(), symbol)
	}
	return decimal.NewFromString(out.MarketCapUSD)
}
