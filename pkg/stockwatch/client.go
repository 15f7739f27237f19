// Package stockwatch is a Go SDK for the stockwatch-server REST API.
package stockwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Membership is one stock in a watchlist.
type Membership struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	AddedAt int64  `json:"addedAt"`
}

// Watchlist is a named list of stocks.
type Watchlist struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Stocks    []Membership `json:"stocks"`
	CreatedAt int64        `json:"createdAt"`
	IsDefault bool         `json:"isDefault"`
}

// SymbolMembership reports which watchlists hold a symbol.
type SymbolMembership struct {
	Symbol       string   `json:"symbol"`
	InAny        bool     `json:"inAny"`
	WatchlistIDs []string `json:"watchlistIds"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("stockwatch: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("stockwatch: %d %s", e.Status, e.Title)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the server, such as a
// duplicate name or an attempt to delete the default watchlist.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// Client provides a Go SDK for interacting with the stockwatch-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new stockwatch API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type watchlistEnvelope struct {
	Watchlist Watchlist `json:"watchlist"`
	Outcome   string    `json:"outcome"`
}

// ListWatchlists returns all watchlists, oldest first, and the default id.
func (c *Client) ListWatchlists(ctx context.Context) ([]Watchlist, string, error) {
	var out struct {
		Watchlists         []Watchlist `json:"watchlists"`
		DefaultWatchlistID string      `json:"defaultWatchlistId"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/watchlists", nil, &out); err != nil {
		return nil, "", err
	}
	return out.Watchlists, out.DefaultWatchlistID, nil
}

// GetWatchlist returns one watchlist. Use "default" for the default one.
func (c *Client) GetWatchlist(ctx context.Context, id string) (Watchlist, error) {
	var out watchlistEnvelope
	err := c.do(ctx, http.MethodGet, "/api/v1/watchlists/"+url.PathEscape(id), nil, &out)
	return out.Watchlist, err
}

// CreateWatchlist creates a watchlist named name.
func (c *Client) CreateWatchlist(ctx context.Context, name string) (Watchlist, error) {
	var out watchlistEnvelope
	err := c.do(ctx, http.MethodPost, "/api/v1/watchlists", map[string]string{"name": name}, &out)
	return out.Watchlist, err
}

// RenameWatchlist renames watchlist id.
func (c *Client) RenameWatchlist(ctx context.Context, id, name string) (Watchlist, error) {
	var out watchlistEnvelope
	err := c.do(ctx, http.MethodPatch, "/api/v1/watchlists/"+url.PathEscape(id), map[string]string{"name": name}, &out)
	return out.Watchlist, err
}

// DeleteWatchlist deletes watchlist id. The default watchlist cannot be
// deleted.
func (c *Client) DeleteWatchlist(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/watchlists/"+url.PathEscape(id), nil, nil)
}

// SetDefault makes watchlist id the default.
func (c *Client) SetDefault(ctx context.Context, id string) (Watchlist, error) {
	var out watchlistEnvelope
	err := c.do(ctx, http.MethodPut, "/api/v1/watchlists/default", map[string]string{"id": id}, &out)
	return out.Watchlist, err
}

// AddStock adds symbol to watchlist id. An empty id targets the default
// watchlist.
func (c *Client) AddStock(ctx context.Context, id, symbol, name string) (Watchlist, error) {
	path := "/api/v1/stocks"
	if id != "" {
		path = "/api/v1/watchlists/" + url.PathEscape(id) + "/stocks"
	}
	var out watchlistEnvelope
	body := map[string]string{"symbol": symbol}
	if name != "" {
		body["name"] = name
	}
	err := c.do(ctx, http.MethodPost, path, body, &out)
	return out.Watchlist, err
}

// RemoveStock removes symbol from watchlist id. An empty id targets the
// default watchlist.
func (c *Client) RemoveStock(ctx context.Context, id, symbol string) (Watchlist, error) {
	path := "/api/v1/stocks/" + url.PathEscape(symbol)
	if id != "" {
		path = "/api/v1/watchlists/" + url.PathEscape(id) + "/stocks/" + url.PathEscape(symbol)
	}
	var out watchlistEnvelope
	err := c.do(ctx, http.MethodDelete, path, nil, &out)
	return out.Watchlist, err
}

// Membership reports which watchlists contain symbol.
func (c *Client) Membership(ctx context.Context, symbol string) (SymbolMembership, error) {
	var out SymbolMembership
	err := c.do(ctx, http.MethodGet, "/api/v1/symbols/"+url.PathEscape(symbol)+"/membership", nil, &out)
	return out, err
}

// LegacyItems returns the flat list of the default watchlist's stocks.
func (c *Client) LegacyItems(ctx context.Context) ([]Membership, error) {
	var out struct {
		Items []Membership `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/legacy/items", nil, &out)
	return out.Items, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		_ = json.Unmarshal(data, apiErr)
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
