package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockwatch/internal/domain"
)

// Compile-time interface check.
var _ SeriesStore = (*ParquetStore)(nil)

// ParquetStore implements SeriesStore using one Parquet file per symbol.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// DailyBarRecord is the Parquet schema for daily bar data.
type DailyBarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// WriteSeries writes bars grouped by symbol, merging with what is already on
// disk. Each symbol has a single file at:
//
//	<DataDir>/daily/<SYMBOL>.parquet
func (s *ParquetStore) WriteSeries(_ context.Context, bars []domain.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	groups := make(map[string][]DailyBarRecord)
	for _, b := range bars {
		sym := strings.ToUpper(b.Symbol)
		groups[sym] = append(groups[sym], DailyBarRecord{
			Symbol:    sym,
			Timestamp: b.Date.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for sym, records := range groups {
		path := s.seriesPath(sym)
		existing, _ := readParquetFile[DailyBarRecord](path)
		merged := mergeDailyRecords(existing, records)
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing series for %s: %w", sym, err)
		}
	}
	return nil
}

// ReadSeries reads the archived bars for symbol, oldest first. A symbol with
// no archive returns no bars and a zero time.
func (s *ParquetStore) ReadSeries(_ context.Context, symbol string) ([]domain.DailyBar, time.Time, error) {
	path := s.seriesPath(symbol)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}

	records, err := readParquetFile[DailyBarRecord](path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading series for %s: %w", symbol, err)
	}

	bars := make([]domain.DailyBar, 0, len(records))
	for _, r := range records {
		bars = append(bars, domain.DailyBar{
			Symbol: r.Symbol,
			Date:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return bars, info.ModTime(), nil
}

// seriesPath returns the filesystem path for a symbol's Parquet file.
func (s *ParquetStore) seriesPath(symbol string) string {
	return filepath.Join(s.DataDir, "daily", strings.ToUpper(symbol)+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeDailyRecords deduplicates records by (symbol, timestamp), preferring
// incoming records over existing ones. Results are sorted by timestamp.
func mergeDailyRecords(existing, incoming []DailyBarRecord) []DailyBarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]DailyBarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]DailyBarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
