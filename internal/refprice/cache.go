// Package refprice implements the reference-price cache: a TTL-bounded
// symbol→price mapping with blocking fill-on-miss against an external
// quote service.
package refprice

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Fetcher performs the blocking remote lookup of a symbol's last price.
// Implemented by HTTPFetcher for production use and trivially fakeable in
// tests.
type Fetcher interface {
	FetchPrice(symbol string) (decimal.Decimal, error)
}

// Cache is the TTL-bounded reference-price cache. Prices are stored at two
// fractional digits to avoid binary floating-point drift in later
// comparisons.
type Cache struct {
	store   *gocache.Cache
	fetcher Fetcher
	ttl     time.Duration
}

// New constructs a reference-price cache with the given TTL and fetcher. A
// nil fetcher is valid and makes every miss fail closed — used when no
// quote-service credentials are configured.
func New(ttl time.Duration, fetcher Fetcher) *Cache {
	return &Cache{
		// go-cache's cleanup interval only reaps expired entries out-of-band;
		// Get already re-validates expiry, so 2×ttl is just housekeeping.
		store:   gocache.New(ttl, 2*ttl),
		fetcher: fetcher,
		ttl:     ttl,
	}
}

// Get returns the cached price for symbol if it is present and unexpired.
// Otherwise it performs a blocking fetch: on success the entry is stored
// and the price returned; on failure the cache is left untouched and
// (zero, false) is returned — a remote-fetch failure is logged, never
// raised to the caller as an error.
func (c *Cache) Get(symbol string) (decimal.Decimal, bool) {
	if v, ok := c.store.Get(symbol); ok {
		return v.(decimal.Decimal).Round(2), true
	}

	if c.fetcher == nil {
		return decimal.Zero, false
	}

	price, err := c.fetcher.FetchPrice(symbol)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("reference price fetch failed")
		return decimal.Zero, false
	}
	if !price.GreaterThan(decimal.Zero) {
		log.Debug().Str("symbol", symbol).Msg("reference price fetch returned non-positive price")
		return decimal.Zero, false
	}

	rounded := price.Round(2)
	c.store.Set(symbol, rounded, c.ttl)
	return rounded, true
}

// Refresh evicts any cached entry for symbol and then performs Get, forcing
// a fresh remote fetch.
func (c *Cache) Refresh(symbol string) (decimal.Decimal, bool) {
	c.store.Delete(symbol)
	return c.Get(symbol)
}
