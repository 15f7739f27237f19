package quotes

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stockwatch/internal/domain"
)

// Windows are the history ranges, in trading days, offered by the detail
// view.
var Windows = []int{7, 30, 90}

// Change is the move between two closes.
type Change struct {
	Amount   decimal.Decimal `json:"amount"`
	Percent  decimal.Decimal `json:"percent"`
	Positive bool            `json:"positive"`
}

// History is a window of a daily series in chronological order.
type History struct {
	Symbol string            `json:"symbol"`
	Days   int               `json:"days"`
	Bars   []domain.DailyBar `json:"bars"`
	// Change compares the last two closes of the window.
	Change *Change `json:"change,omitempty"`
}

// ValidWindow reports whether days is one of Windows.
func ValidWindow(days int) bool {
	for _, w := range Windows {
		if w == days {
			return true
		}
	}
	return false
}

// Window takes the newest days bars of a newest-first series and returns
// them oldest first.
func Window(symbol string, newestFirst []domain.DailyBar, days int) (History, error) {
	if days <= 0 {
		return History{}, fmt.Errorf("quotes: window must be positive, got %d", days)
	}
	n := min(days, len(newestFirst))
	bars := make([]domain.DailyBar, n)
	for i := 0; i < n; i++ {
		bars[n-1-i] = newestFirst[i]
	}
	h := History{Symbol: domain.NormalizeSymbol(symbol), Days: days, Bars: bars}
	if ch, ok := DailyChange(newestFirst[:n]); ok {
		h.Change = &ch
	}
	return h, nil
}

// DailyChange compares the two newest closes of a newest-first series.
func DailyChange(newestFirst []domain.DailyBar) (Change, bool) {
	if len(newestFirst) < 2 || newestFirst[1].Close == 0 {
		return Change{}, false
	}
	cur := decimal.NewFromFloat(newestFirst[0].Close)
	prev := decimal.NewFromFloat(newestFirst[1].Close)
	amount := cur.Sub(prev)
	return Change{
		Amount:   amount.Round(4),
		Percent:  amount.Div(prev).Mul(decimal.NewFromInt(100)).Round(2),
		Positive: amount.Sign() >= 0,
	}, true
}
