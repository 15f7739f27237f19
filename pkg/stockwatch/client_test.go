package stockwatch

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"stockwatch/internal/httpapi"
	"stockwatch/internal/store"
	"stockwatch/internal/watchlist"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := watchlist.New(context.Background(), store.NewMemKV(), watchlist.WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close(context.Background()) })

	srv := httptest.NewServer(httpapi.NewServer(st, httpapi.WithLogger(log)).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL).WithHTTPClient(srv.Client())
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	lists, def, err := c.ListWatchlists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Equal(t, lists[0].ID, def)

	tech, err := c.CreateWatchlist(ctx, "Tech")
	require.NoError(t, err)
	require.Equal(t, "Tech", tech.Name)

	tech, err = c.AddStock(ctx, tech.ID, "nvda", "NVIDIA")
	require.NoError(t, err)
	require.Len(t, tech.Stocks, 1)
	require.Equal(t, "NVDA", tech.Stocks[0].Symbol)

	_, err = c.AddStock(ctx, "", "NVDA", "")
	require.NoError(t, err)
	items, err := c.LegacyItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "NVDA", items[0].Name)

	m, err := c.Membership(ctx, "NVDA")
	require.NoError(t, err)
	require.True(t, m.InAny)
	require.ElementsMatch(t, []string{def, tech.ID}, m.WatchlistIDs)

	renamed, err := c.RenameWatchlist(ctx, tech.ID, "Chips")
	require.NoError(t, err)
	require.Equal(t, "Chips", renamed.Name)

	_, err = c.SetDefault(ctx, tech.ID)
	require.NoError(t, err)
	got, err := c.GetWatchlist(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, tech.ID, got.ID)

	tech, err = c.RemoveStock(ctx, tech.ID, "NVDA")
	require.NoError(t, err)
	require.Empty(t, tech.Stocks)

	require.NoError(t, c.DeleteWatchlist(ctx, def))
	_, err = c.GetWatchlist(ctx, def)
	require.True(t, IsNotFound(err), "err = %v", err)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, def, err := c.ListWatchlists(ctx)
	require.NoError(t, err)
	err = c.DeleteWatchlist(ctx, def)
	require.True(t, IsConflict(err), "err = %v", err)

	_, err = c.CreateWatchlist(ctx, "my watchlist")
	require.True(t, IsConflict(err), "err = %v", err)

	_, err = c.RenameWatchlist(ctx, "missing", "x")
	require.True(t, IsNotFound(err), "err = %v", err)

	var apiErr *APIError
	_, err = c.CreateWatchlist(ctx, " ")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.Status)
	require.NotEmpty(t, apiErr.Detail)
}
