package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockwatch/internal/domain"
	"stockwatch/internal/quotes"
	"stockwatch/internal/store"
	"stockwatch/internal/watchlist"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts ...Option) (*watchlist.Store, http.Handler) {
	t.Helper()
	var tick int64
	clock := func() time.Time {
		tick++
		return time.Unix(1_700_000_000+tick, 0)
	}
	var n int
	ids := func() string {
		n++
		return fmt.Sprintf("wl-%d", n)
	}
	st, err := watchlist.New(context.Background(), store.NewMemKV(),
		watchlist.WithClock(clock),
		watchlist.WithIDGenerator(ids),
		watchlist.WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close(context.Background()) })

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return st, NewServer(st, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type watchlistResp struct {
	Watchlist WatchlistBody `json:"watchlist"`
	Outcome   string        `json:"outcome"`
}

type listResp struct {
	Watchlists         []WatchlistBody `json:"watchlists"`
	DefaultWatchlistID string          `json:"defaultWatchlistId"`
}

func TestListFreshStore(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/v1/watchlists", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[listResp](t, w)
	require.Len(t, got.Watchlists, 1)
	require.Equal(t, domain.DefaultWatchlistName, got.Watchlists[0].Name)
	require.True(t, got.Watchlists[0].IsDefault)
	require.Equal(t, got.Watchlists[0].ID, got.DefaultWatchlistID)
	require.NotNil(t, got.Watchlists[0].Stocks)
}

func TestCreateAddAndMembership(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/watchlists", map[string]string{"name": "  Tech  "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tech := decode[watchlistResp](t, w).Watchlist
	require.Equal(t, "Tech", tech.Name)
	require.False(t, tech.IsDefault)

	w = do(t, h, http.MethodPost, "/api/v1/watchlists/"+tech.ID+"/stocks", map[string]string{"symbol": "aapl", "name": "Apple Inc"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[watchlistResp](t, w)
	require.Equal(t, "applied", got.Outcome)
	require.Len(t, got.Watchlist.Stocks, 1)
	require.Equal(t, "AAPL", got.Watchlist.Stocks[0].Symbol)
	require.NotZero(t, got.Watchlist.Stocks[0].AddedAt)

	// A second add is a no-op, not an error.
	w = do(t, h, http.MethodPost, "/api/v1/watchlists/"+tech.ID+"/stocks", map[string]string{"symbol": "AAPL"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "unchanged", decode[watchlistResp](t, w).Outcome)

	w = do(t, h, http.MethodGet, "/api/v1/symbols/aapl/membership", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var m struct {
		Symbol       string   `json:"symbol"`
		InAny        bool     `json:"inAny"`
		WatchlistIDs []string `json:"watchlistIds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.Equal(t, "AAPL", m.Symbol)
	require.True(t, m.InAny)
	require.Equal(t, []string{tech.ID}, m.WatchlistIDs)

	w = do(t, h, http.MethodGet, "/api/v1/symbols/MSFT/membership", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.False(t, m.InAny)
	require.Empty(t, m.WatchlistIDs)
}

func TestCreateRejectsBadNames(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/watchlists", map[string]string{"name": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/watchlists", map[string]string{"name": "Tech"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, h, http.MethodPost, "/api/v1/watchlists", map[string]string{"name": "TECH"})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	long := bytes.Repeat([]byte("x"), maxNameLen+1)
	w = do(t, h, http.MethodPost, "/api/v1/watchlists", map[string]string{"name": string(long)})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenameAndDelete(t *testing.T) {
	st, h := newTestServer(t)
	a := st.CreateWatchlist("A").WatchlistID
	st.CreateWatchlist("B")

	w := do(t, h, http.MethodPatch, "/api/v1/watchlists/"+a, map[string]string{"name": "b"})
	require.Equal(t, http.StatusConflict, w.Code)

	// Renaming to its own name in another case is allowed.
	w = do(t, h, http.MethodPatch, "/api/v1/watchlists/"+a, map[string]string{"name": "a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "a", decode[watchlistResp](t, w).Watchlist.Name)

	w = do(t, h, http.MethodPatch, "/api/v1/watchlists/missing", map[string]string{"name": "x"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/watchlists/"+a, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = do(t, h, http.MethodGet, "/api/v1/watchlists/"+a, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodDelete, "/api/v1/watchlists/"+a, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	def := st.State().DefaultWatchlistID
	w = do(t, h, http.MethodDelete, "/api/v1/watchlists/"+def, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, 2, st.State().Len())
}

func TestDefaultRoutes(t *testing.T) {
	st, h := newTestServer(t)
	b := st.CreateWatchlist("B").WatchlistID

	w := do(t, h, http.MethodPut, "/api/v1/watchlists/default", map[string]string{"id": b})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, decode[watchlistResp](t, w).Watchlist.IsDefault)

	w = do(t, h, http.MethodPut, "/api/v1/watchlists/default", map[string]string{"id": "missing"})
	require.Equal(t, http.StatusNotFound, w.Code)

	do(t, h, http.MethodPost, "/api/v1/stocks", map[string]string{"symbol": "TSLA"})
	do(t, h, http.MethodPost, "/api/v1/stocks", map[string]string{"symbol": "NVDA"})

	w = do(t, h, http.MethodGet, "/api/v1/watchlists/default", nil)
	require.Equal(t, http.StatusOK, w.Code)
	def := decode[watchlistResp](t, w).Watchlist
	require.Equal(t, b, def.ID)
	require.Len(t, def.Stocks, 2)

	w = do(t, h, http.MethodDelete, "/api/v1/watchlists/default/stocks", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Empty(t, decode[watchlistResp](t, w).Watchlist.Stocks)
}

func TestToggleAndRemove(t *testing.T) {
	st, h := newTestServer(t)
	id := st.State().DefaultWatchlistID
	path := "/api/v1/watchlists/" + id + "/toggle"

	w := do(t, h, http.MethodPost, path, map[string]string{"symbol": "IBM"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, decode[watchlistResp](t, w).Watchlist.Stocks, 1)

	w = do(t, h, http.MethodPost, path, map[string]string{"symbol": "ibm"})
	require.Empty(t, decode[watchlistResp](t, w).Watchlist.Stocks)

	w = do(t, h, http.MethodPost, path, map[string]string{"symbol": " "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	st.AddToWatchlist(id, domain.Membership{Symbol: "GE"})
	w = do(t, h, http.MethodDelete, "/api/v1/watchlists/"+id+"/stocks/ge", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "applied", decode[watchlistResp](t, w).Outcome)

	w = do(t, h, http.MethodDelete, "/api/v1/watchlists/missing/stocks/GE", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLegacyRoutes(t *testing.T) {
	st, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/stocks", map[string]string{"symbol": "msft", "name": "Microsoft"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/v1/legacy/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items struct {
		Items []struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items.Items, 1)
	require.Equal(t, "MSFT", items.Items[0].Symbol)
	require.Equal(t, "Microsoft", items.Items[0].Name)

	w = do(t, h, http.MethodDelete, "/api/v1/stocks/MSFT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, st.Selectors().LegacyMirror())
}

func TestQuoteRoutes(t *testing.T) {
	data, err := quotes.BundledDataset()
	require.NoError(t, err)
	st, h := newTestServer(t, WithQuotes(quotes.NewFallback(nil, data, quietLogger())))

	w := do(t, h, http.MethodGet, "/api/v1/quotes/movers", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "top_gainers")

	w = do(t, h, http.MethodGet, "/api/v1/quotes/overview/IBM", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), data.CompanyOverview.Name)

	w = do(t, h, http.MethodGet, "/api/v1/quotes/daily/IBM?days=7", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var hist quotes.History
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Equal(t, 7, hist.Days)
	require.Len(t, hist.Bars, min(7, len(data.DailyPrices)))
	require.True(t, hist.Bars[0].Date.Before(hist.Bars[len(hist.Bars)-1].Date))

	w = do(t, h, http.MethodGet, "/api/v1/quotes/daily/IBM?days=15", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/quotes/search?q=micro", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "bestMatches")

	id := st.State().DefaultWatchlistID
	st.AddToWatchlist(id, domain.Membership{Symbol: "IBM"})
	w = do(t, h, http.MethodGet, "/api/v1/watchlists/"+id+"/quotes", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var enriched struct {
		Stocks []quotes.EnrichedStock `json:"stocks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enriched))
	require.Len(t, enriched.Stocks, 1)
	require.Equal(t, "IBM", enriched.Stocks[0].Symbol)
}

func TestQuoteRoutesDisabledWithoutProvider(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/api/v1/quotes/movers", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocsServed(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "list-watchlists")
}

func TestEventStream(t *testing.T) {
	st, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() (string, StreamEvent) {
		var name string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				var e StreamEvent
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
				return name, e
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return "", StreamEvent{}
	}

	name, snap := next()
	require.Equal(t, "snapshot", name)
	require.Len(t, snap.Watchlists, 1)
	require.Equal(t, st.State().DefaultWatchlistID, snap.DefaultID)

	res := st.CreateWatchlist("Tech")
	name, evt := next()
	require.Equal(t, "create_watchlist", name)
	require.Equal(t, res.WatchlistID, evt.WatchlistID)
	require.Equal(t, st.State().Version, evt.Version)
}
