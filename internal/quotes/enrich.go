package quotes

import (
	"context"

	"github.com/sourcegraph/conc/iter"

	"stockwatch/internal/domain"
)

// EnrichedStock is a watchlist membership with its overview and latest bar.
type EnrichedStock struct {
	domain.Membership
	Overview  *domain.Overview `json:"overview,omitempty"`
	LastClose *float64         `json:"lastClose,omitempty"`
	Change    *Change          `json:"change,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Enrich fetches the overview and daily series of every stock in w, at most
// workers requests at a time. Results keep the watchlist order; a failed
// lookup is reported in Error rather than failing the whole call.
func Enrich(ctx context.Context, p Provider, w domain.Watchlist, workers int) []EnrichedStock {
	if workers < 1 {
		workers = 1
	}
	mapper := iter.Mapper[domain.Membership, EnrichedStock]{MaxGoroutines: workers}
	return mapper.Map(w.Stocks, func(m *domain.Membership) EnrichedStock {
		out := EnrichedStock{Membership: *m}
		if err := ctx.Err(); err != nil {
			out.Error = err.Error()
			return out
		}

		o, err := p.Overview(ctx, m.Symbol)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.Overview = &o

		bars, err := p.DailySeries(ctx, m.Symbol)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		if len(bars) > 0 {
			last := bars[0].Close
			out.LastClose = &last
			if ch, ok := DailyChange(bars); ok {
				out.Change = &ch
			}
		}
		return out
	})
}
