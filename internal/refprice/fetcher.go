package refprice

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// FetchTimeout is the per-request timeout for the external quote service.
const FetchTimeout = 5 * time.Second

type quoteResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// HTTPFetcher fetches last-price quotes from the external reference-price
// service over HTTP+JSON, wrapped in a gobreaker.CircuitBreaker so a run of
// remote failures fails fast instead of blocking every subsequent submit on
// the 5s timeout.
type HTTPFetcher struct {
	http    *resty.Client
	apiKey  string
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPFetcher builds a fetcher against baseURL. An empty apiKey is valid
// at construction time but callers should prefer not constructing a fetcher
// at all in that case (cmd/fenrir does this) so that a credential-less
// deployment never attempts a network call.
func NewHTTPFetcher(baseURL, apiKey string) *HTTPFetcher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(FetchTimeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "refprice-quote",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &HTTPFetcher{http: client, apiKey: apiKey, breaker: breaker}
}

// FetchPrice implements Fetcher.
func (f *HTTPFetcher) FetchPrice(symbol string) (decimal.Decimal, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		var out quoteResponse
		resp, err := f.http.R().
			SetHeader("X-Api-Key", f.apiKey).
			SetQueryParam("symbol", symbol).
			SetResult(&out).
			Get("/quote")
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("refprice: quote request: %w", err)
		}
		if resp.StatusCode() == http.StatusTooManyRequests {
			log.Warn().Str("symbol", symbol).Msg("refprice: quote service rate limited (429)")
			return decimal.Decimal{}, fmt.Errorf("refprice: rate limited (429) for %s", symbol)
		}
		if resp.StatusCode() != http.StatusOK {
			return decimal.Decimal{}, fmt.Errorf("refprice: quote status %d for %s", resp.StatusCode(), symbol)
		}
		price, err := decimal.NewFromString(out.Price)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("refprice: parse price %q: %w", out.Price, err)
		}
		return price, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return result.(decimal.Decimal), nil
}
