package quotes

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"stockwatch/internal/domain"
)

//go:embed fallback.json
var fallbackJSON []byte

// Dataset is a complete set of canned quote data.
type Dataset struct {
	TopMovers       domain.TopMovers     `json:"topMovers"`
	CompanyOverview domain.Overview      `json:"companyOverview"`
	SymbolSearch    []domain.SymbolMatch `json:"symbolSearch"`
	DailyPrices     []domain.DailyBar    `json:"dailyPrices"`
}

// BundledDataset returns the dataset compiled into the binary.
func BundledDataset() (Dataset, error) {
	var d Dataset
	if err := json.Unmarshal(fallbackJSON, &d); err != nil {
		return Dataset{}, fmt.Errorf("decoding bundled dataset: %w", err)
	}
	return d, nil
}

var _ Provider = (*Fallback)(nil)

// Fallback never fails. It serves the inner provider's data when it can and
// otherwise the last good response for the same request, or the bundled
// dataset when there is none. A nil inner provider always serves the
// dataset.
type Fallback struct {
	inner Provider
	data  Dataset
	log   *slog.Logger

	mu       sync.Mutex
	movers   *domain.TopMovers
	overview map[string]domain.Overview
	series   map[string][]domain.DailyBar
	search   map[string][]domain.SymbolMatch
}

// NewFallback wraps inner with the given dataset.
func NewFallback(inner Provider, data Dataset, log *slog.Logger) *Fallback {
	if log == nil {
		log = slog.Default()
	}
	return &Fallback{
		inner:    inner,
		data:     data,
		log:      log,
		overview: make(map[string]domain.Overview),
		series:   make(map[string][]domain.DailyBar),
		search:   make(map[string][]domain.SymbolMatch),
	}
}

// TopMovers implements Provider.
func (f *Fallback) TopMovers(ctx context.Context) (domain.TopMovers, error) {
	if f.inner != nil {
		m, err := f.inner.TopMovers(ctx)
		if err == nil {
			f.mu.Lock()
			f.movers = &m
			f.mu.Unlock()
			return m, nil
		}
		f.log.Warn("fetching top movers, serving fallback", "error", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.movers != nil {
		return *f.movers, nil
	}
	return f.data.TopMovers, nil
}

// Overview implements Provider.
func (f *Fallback) Overview(ctx context.Context, symbol string) (domain.Overview, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if f.inner != nil {
		o, err := f.inner.Overview(ctx, symbol)
		if err == nil {
			f.mu.Lock()
			f.overview[symbol] = o
			f.mu.Unlock()
			return o, nil
		}
		f.log.Warn("fetching overview, serving fallback", "symbol", symbol, "error", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.overview[symbol]; ok {
		return o, nil
	}
	return f.data.CompanyOverview, nil
}

// DailySeries implements Provider.
func (f *Fallback) DailySeries(ctx context.Context, symbol string) ([]domain.DailyBar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if f.inner != nil {
		bars, err := f.inner.DailySeries(ctx, symbol)
		if err == nil {
			f.mu.Lock()
			f.series[symbol] = bars
			f.mu.Unlock()
			return bars, nil
		}
		f.log.Warn("fetching daily series, serving fallback", "symbol", symbol, "error", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if bars, ok := f.series[symbol]; ok {
		return bars, nil
	}
	return f.data.DailyPrices, nil
}

// SearchSymbol implements Provider.
func (f *Fallback) SearchSymbol(ctx context.Context, keywords string) ([]domain.SymbolMatch, error) {
	key := strings.ToLower(strings.TrimSpace(keywords))
	if f.inner != nil {
		m, err := f.inner.SearchSymbol(ctx, keywords)
		if err == nil {
			f.mu.Lock()
			f.search[key] = m
			f.mu.Unlock()
			return m, nil
		}
		f.log.Warn("searching symbols, serving fallback", "keywords", keywords, "error", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.search[key]; ok {
		return m, nil
	}
	return f.data.SymbolSearch, nil
}
