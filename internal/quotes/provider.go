// Package quotes is the quote-data collaborator: top movers, company
// overviews, daily price history and symbol search, served by Alpaca with a
// TTL cache, a Parquet archive for daily series and a bundled fallback
// dataset.
package quotes

import (
	"context"
	"errors"

	"stockwatch/internal/domain"
)

// ErrNoData is returned when a provider has nothing for the request.
var ErrNoData = errors.New("quotes: no data")

// Provider fetches market data. DailySeries returns bars newest first.
type Provider interface {
	TopMovers(ctx context.Context) (domain.TopMovers, error)
	Overview(ctx context.Context, symbol string) (domain.Overview, error)
	DailySeries(ctx context.Context, symbol string) ([]domain.DailyBar, error)
	SearchSymbol(ctx context.Context, keywords string) ([]domain.SymbolMatch, error)
}
