// Package domain defines the core types shared across stockwatch: watchlists
// and their stock memberships, and the market data returned by quote
// providers.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWatchlistName is the label given to the synthesized default watchlist.
const DefaultWatchlistName = "My Watchlist"

// ---------------------------------------------------------------------------
// Watchlists
// ---------------------------------------------------------------------------

// Membership is one ticker tracked inside one watchlist.
type Membership struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	AddedAt int64  `json:"addedAt"` // Unix ms, stamped on insertion
}

// Watchlist is a named, ordered collection of memberships. Symbols are
// unique within Stocks and insertion order is preserved.
type Watchlist struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Stocks    []Membership `json:"stocks"`
	CreatedAt int64        `json:"createdAt"` // Unix ms
}

// IndexOf returns the position of symbol in w.Stocks, or -1.
func (w Watchlist) IndexOf(symbol string) int {
	for i, m := range w.Stocks {
		if m.Symbol == symbol {
			return i
		}
	}
	return -1
}

// Contains reports whether w tracks symbol.
func (w Watchlist) Contains(symbol string) bool {
	return w.IndexOf(symbol) >= 0
}

// Symbols returns the tracked symbols in insertion order.
func (w Watchlist) Symbols() []string {
	out := make([]string, len(w.Stocks))
	for i, m := range w.Stocks {
		out[i] = m.Symbol
	}
	return out
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Mover is one entry of a top gainers / losers / most active board.
type Mover struct {
	Symbol        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	ChangeAmount  decimal.Decimal `json:"change_amount"`
	ChangePercent decimal.Decimal `json:"change_percentage"`
	Volume        int64           `json:"volume"`
}

// TopMovers groups the market movers boards.
type TopMovers struct {
	LastUpdated time.Time `json:"last_updated"`
	Gainers     []Mover   `json:"top_gainers"`
	Losers      []Mover   `json:"top_losers"`
	MostActive  []Mover   `json:"most_actively_traded"`
}

// Overview holds descriptive company / security details.
type Overview struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Exchange     string `json:"exchange"`
	AssetClass   string `json:"assetClass"`
	Status       string `json:"status"`
	Tradable     bool   `json:"tradable"`
	Shortable    bool   `json:"shortable"`
	Marginable   bool   `json:"marginable"`
	Fractionable bool   `json:"fractionable"`
	Description  string `json:"description,omitempty"`
	Sector       string `json:"sector,omitempty"`
	Industry     string `json:"industry,omitempty"`
}

// DailyBar is one day of OHLCV price history.
type DailyBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// SymbolMatch is one symbol search result.
type SymbolMatch struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Exchange   string  `json:"exchange"`
	AssetClass string  `json:"assetClass"`
	Score      float64 `json:"matchScore"`
}
