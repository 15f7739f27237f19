package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/domain"
)

// exerciseKV runs the shared KV contract against any backend.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Load(ctx, "watchlist")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Save(ctx, "watchlist", []byte(`{"v":1}`)))
	got, err := kv.Load(ctx, "watchlist")
	require.NoError(t, err)
	require.Equal(t, `{"v":1}`, string(got))

	require.NoError(t, kv.Save(ctx, "watchlist", []byte(`{"v":2}`)))
	got, err = kv.Load(ctx, "watchlist")
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, string(got))

	// Keys are independent.
	_, err = kv.Load(ctx, "settings")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemKV(t *testing.T) {
	kv := NewMemKV()
	exerciseKV(t, kv)
	require.Equal(t, 2, kv.Saves())
}

func TestMemKVInjectedFailures(t *testing.T) {
	kv := NewMemKV()
	boom := errors.New("disk full")
	kv.SetFailures(nil, boom)

	err := kv.Save(context.Background(), "watchlist", []byte("x"))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, kv.Saves())

	kv.SetFailures(boom, nil)
	_, err = kv.Load(context.Background(), "watchlist")
	require.ErrorIs(t, err, boom)
}

func TestMemKVReturnsCopies(t *testing.T) {
	kv := NewMemKV()
	data := []byte("abc")
	require.NoError(t, kv.Save(context.Background(), "k", data))
	data[0] = 'z'

	got, err := kv.Load(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestFileKV(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := NewFileKVFs(fs, "/state")
	exerciseKV(t, kv)

	exists, err := afero.Exists(fs, "/state/watchlist.json")
	require.NoError(t, err)
	require.True(t, exists)

	// No temp files are left behind.
	entries, err := afero.ReadDir(fs, "/state")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileKVOnDisk(t *testing.T) {
	exerciseKV(t, NewFileKV(filepath.Join(t.TempDir(), "state")))
}

func TestFileKVRejectsBadKeys(t *testing.T) {
	kv := NewFileKVFs(afero.NewMemMapFs(), "/state")
	err := kv.Save(context.Background(), "../escape", []byte("x"))
	require.Error(t, err)
	_, err = kv.Load(context.Background(), "a/b")
	require.Error(t, err)
}

func TestSQLiteKV(t *testing.T) {
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "db", "stockwatch.db"))
	require.NoError(t, err)
	defer kv.Close()

	exerciseKV(t, kv)
}

func TestSQLiteKVReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockwatch.db")
	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Save(context.Background(), "watchlist", []byte("persisted")))
	require.NoError(t, kv.Close())

	// Migrations are idempotent and the data survives.
	kv, err = NewSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()
	got, err := kv.Load(context.Background(), "watchlist")
	require.NoError(t, err)
	require.Equal(t, "persisted", string(got))
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	p := ps.seriesPath("aapl")
	want := filepath.Join("/data", "daily", "AAPL.parquet")
	if p != want {
		t.Errorf("seriesPath mismatch:\n  got  %s\n  want %s", p, want)
	}
	if !strings.Contains(p, "AAPL") {
		t.Errorf("seriesPath should contain upper-cased symbol: %s", p)
	}
}

func TestParquetStoreWriteReadSeries(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.DailyBar{
		{Symbol: "AAPL", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 185.5, High: 187.0, Low: 185.0, Close: 186.0, Volume: 45000000},
		{Symbol: "AAPL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 185.0, High: 186.5, Low: 184.0, Close: 185.5, Volume: 50000000},
	}
	if err := ps.WriteSeries(ctx, bars); err != nil {
		t.Fatalf("WriteSeries: %v", err)
	}

	got, written, err := ps.ReadSeries(ctx, "AAPL")
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if written.IsZero() {
		t.Error("ReadSeries returned zero write time for existing archive")
	}
	if len(got) != 2 {
		t.Fatalf("ReadSeries returned %d bars, want 2", len(got))
	}
	// Oldest first.
	if got[0].Close != 185.5 {
		t.Errorf("first bar Close = %v, want 185.5", got[0].Close)
	}
	if got[1].Close != 186.0 {
		t.Errorf("second bar Close = %v, want 186.0", got[1].Close)
	}
}

func TestParquetStoreMergeSeries(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := ps.WriteSeries(ctx, []domain.DailyBar{{Symbol: "MSFT", Date: day, Close: 403.0}}); err != nil {
		t.Fatalf("WriteSeries (first): %v", err)
	}
	// Same day is replaced, next day is appended.
	second := []domain.DailyBar{
		{Symbol: "MSFT", Date: day, Close: 404.0},
		{Symbol: "MSFT", Date: day.AddDate(0, 0, 1), Close: 410.0},
	}
	if err := ps.WriteSeries(ctx, second); err != nil {
		t.Fatalf("WriteSeries (second): %v", err)
	}

	got, _, err := ps.ReadSeries(ctx, "MSFT")
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadSeries returned %d bars, want 2", len(got))
	}
	if got[0].Close != 404.0 {
		t.Errorf("merged bar Close = %v, want 404.0", got[0].Close)
	}
}

func TestParquetStoreMissingSymbol(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	got, written, err := ps.ReadSeries(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if len(got) != 0 || !written.IsZero() {
		t.Errorf("ReadSeries(NOPE) = %d bars, %v; want none, zero time", len(got), written)
	}
}

func TestOpenKV(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{BackendFile, BackendSQLite, BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			kv, closer, err := OpenKV(backend, filepath.Join(dir, "data"), filepath.Join(dir, "db", "kv.db"))
			require.NoError(t, err)
			defer closer.Close()
			exerciseKV(t, kv)
		})
	}

	_, _, err := OpenKV("etcd", dir, "")
	require.Error(t, err)
}
