// Package inspect implements a read-only inspection API: book depth and
// liquidity-provider state over HTTP.
package inspect

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

const defaultDepth = 10

// BookSource resolves a symbol's order book, without creating one as a side
// effect — identical contract to *engine.Engine.Book.
type BookSource interface {
	Book(symbol string) (*book.OrderBook, bool)
}

// LiquiditySource reports liquidity-provider activity state for a symbol —
// identical contract to *liquidity.Provider's Active/LastPrice.
type LiquiditySource interface {
	Active(symbol string) bool
	LastPrice(symbol string) (decimal.Decimal, bool)
}

// Handler serves the inspection endpoints.
type Handler struct {
	books     BookSource
	liquidity LiquiditySource
}

// NewHandler constructs a Handler. liquidity may be nil when the liquidity
// provider is disabled; GET /liquidity/{symbol} then always reports
// inactive.
func NewHandler(books BookSource, liquidity LiquiditySource) *Handler {
	return &Handler{books: books, liquidity: liquidity}
}

// RegisterRoutes wires the inspection endpoints onto router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/books/{symbol}", h.handleBook).Methods(http.MethodGet)
	router.HandleFunc("/liquidity/{symbol}", h.handleLiquidity).Methods(http.MethodGet)
}

type priceLevel struct {
	Price    string `json:"price"`
	Quantity uint64 `json:"quantity"`
	ClientID string `json:"clientId"`
}

type bookResponse struct {
	Symbol string       `json:"symbol"`
	Bids   []priceLevel `json:"bids"`
	Asks   []priceLevel `json:"asks"`
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	depth := defaultDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			depth = parsed
		}
	}

	b, ok := h.books.Book(symbol)
	if !ok {
		http.Error(w, "unknown symbol", http.StatusNotFound)
		return
	}

	b.Mu.Lock()
	bids := toLevels(b.TopN(common.Buy, depth))
	asks := toLevels(b.TopN(common.Sell, depth))
	b.Mu.Unlock()

	writeJSON(w, bookResponse{Symbol: symbol, Bids: bids, Asks: asks})
}

func toLevels(orders []*book.Order) []priceLevel {
	out := make([]priceLevel, len(orders))
	for i, o := range orders {
		out[i] = priceLevel{Price: o.Price.String(), Quantity: o.Remaining, ClientID: o.ClientID}
	}
	return out
}

type liquidityResponse struct {
	Symbol    string `json:"symbol"`
	Active    bool   `json:"active"`
	LastPrice string `json:"lastPrice,omitempty"`
}

func (h *Handler) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if h.liquidity == nil {
		writeJSON(w, liquidityResponse{Symbol: symbol, Active: false})
		return
	}

	resp := liquidityResponse{Symbol: symbol, Active: h.liquidity.Active(symbol)}
	if price, ok := h.liquidity.LastPrice(symbol); ok {
		resp.LastPrice = price.String()
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("inspect: failed to encode response")
	}
}
