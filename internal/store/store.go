// Package store defines the storage interfaces used by stockwatch: a
// key-value store for serialized application state and an archive for daily
// price history.
package store

import (
	"context"
	"errors"
	"time"

	"stockwatch/internal/domain"
)

// ErrNotFound is returned by KV.Load when no value is stored under the key.
var ErrNotFound = errors.New("store: key not found")

// KV persists opaque serialized state under string keys.
type KV interface {
	// Load returns the value stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores data under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error
}

// SeriesStore persists and retrieves daily price history.
type SeriesStore interface {
	// WriteSeries merges bars into the archive, keyed by (symbol, date).
	WriteSeries(ctx context.Context, bars []domain.DailyBar) error

	// ReadSeries returns archived bars for symbol, oldest first, along with
	// the time the archive for symbol was last written.
	ReadSeries(ctx context.Context, symbol string) ([]domain.DailyBar, time.Time, error)
}
