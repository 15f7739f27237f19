package quotes

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"stockwatch/internal/domain"
	"stockwatch/internal/store"
)

var _ Provider = (*Cache)(nil)

// TTLs holds the staleness bound of each request kind.
type TTLs struct {
	Movers   time.Duration
	Overview time.Duration
	Daily    time.Duration
	Search   time.Duration
}

// DefaultTTLs matches how long the client treats each kind of data as fresh.
var DefaultTTLs = TTLs{
	Movers:   time.Hour,
	Overview: 24 * time.Hour,
	Daily:    6 * time.Hour,
	Search:   time.Hour,
}

type entry[T any] struct {
	val     T
	fetched time.Time
}

// ttlMap is a mutex-guarded map of timestamped values.
type ttlMap[T any] struct {
	mu sync.Mutex
	m  map[string]entry[T]
}

func (t *ttlMap[T]) get(key string, now time.Time, ttl time.Duration) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.m[key]
	if !ok || now.Sub(e.fetched) >= ttl {
		var zero T
		return zero, false
	}
	return e.val, true
}

func (t *ttlMap[T]) put(key string, val T, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[string]entry[T])
	}
	t.m[key] = entry[T]{val: val, fetched: at}
}

// Cache serves successful provider responses until their TTL expires. Daily
// series are also written to an optional archive, which is consulted before
// the provider on a cold cache. Errors are never cached.
type Cache struct {
	inner   Provider
	ttl     TTLs
	archive store.SeriesStore
	now     func() time.Time
	log     *slog.Logger

	movers   ttlMap[domain.TopMovers]
	overview ttlMap[domain.Overview]
	series   ttlMap[[]domain.DailyBar]
	search   ttlMap[[]domain.SymbolMatch]
}

// NewCache wraps inner. archive may be nil.
func NewCache(inner Provider, ttl TTLs, archive store.SeriesStore, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		inner:   inner,
		ttl:     ttl,
		archive: archive,
		now:     time.Now,
		log:     log,
	}
}

// TopMovers implements Provider.
func (c *Cache) TopMovers(ctx context.Context) (domain.TopMovers, error) {
	if m, ok := c.movers.get("", c.now(), c.ttl.Movers); ok {
		return m, nil
	}
	m, err := c.inner.TopMovers(ctx)
	if err != nil {
		return domain.TopMovers{}, err
	}
	c.movers.put("", m, c.now())
	return m, nil
}

// Overview implements Provider.
func (c *Cache) Overview(ctx context.Context, symbol string) (domain.Overview, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if o, ok := c.overview.get(symbol, c.now(), c.ttl.Overview); ok {
		return o, nil
	}
	o, err := c.inner.Overview(ctx, symbol)
	if err != nil {
		return domain.Overview{}, err
	}
	c.overview.put(symbol, o, c.now())
	return o, nil
}

// DailySeries implements Provider.
func (c *Cache) DailySeries(ctx context.Context, symbol string) ([]domain.DailyBar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	now := c.now()
	if bars, ok := c.series.get(symbol, now, c.ttl.Daily); ok {
		return bars, nil
	}

	if bars, written, ok := c.fromArchive(ctx, symbol); ok && now.Sub(written) < c.ttl.Daily {
		c.series.put(symbol, bars, written)
		return bars, nil
	}

	bars, err := c.inner.DailySeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.series.put(symbol, bars, c.now())
	if c.archive != nil {
		if err := c.archive.WriteSeries(ctx, bars); err != nil {
			c.log.Warn("archiving daily series", "symbol", symbol, "error", err)
		}
	}
	return bars, nil
}

// fromArchive returns the archived series newest first, trimmed to
// seriesLength.
func (c *Cache) fromArchive(ctx context.Context, symbol string) ([]domain.DailyBar, time.Time, bool) {
	if c.archive == nil {
		return nil, time.Time{}, false
	}
	oldestFirst, written, err := c.archive.ReadSeries(ctx, symbol)
	if err != nil {
		c.log.Warn("reading archived series", "symbol", symbol, "error", err)
		return nil, time.Time{}, false
	}
	if len(oldestFirst) == 0 {
		return nil, time.Time{}, false
	}
	bars := make([]domain.DailyBar, 0, min(len(oldestFirst), seriesLength))
	for i := len(oldestFirst) - 1; i >= 0 && len(bars) < seriesLength; i-- {
		bars = append(bars, oldestFirst[i])
	}
	return bars, written, true
}

// SearchSymbol implements Provider.
func (c *Cache) SearchSymbol(ctx context.Context, keywords string) ([]domain.SymbolMatch, error) {
	key := strings.ToLower(strings.TrimSpace(keywords))
	if m, ok := c.search.get(key, c.now(), c.ttl.Search); ok {
		return m, nil
	}
	m, err := c.inner.SearchSymbol(ctx, keywords)
	if err != nil {
		return nil, err
	}
	c.search.put(key, m, c.now())
	return m, nil
}

// Warm loads the daily series of symbols concurrently, at most workers at a
// time. Failures are logged; the number of symbols loaded is returned.
func (c *Cache) Warm(ctx context.Context, symbols []string, workers int) int {
	if workers < 1 {
		workers = 1
	}
	p := pool.NewWithResults[bool]().WithContext(ctx).WithMaxGoroutines(workers)
	for _, sym := range symbols {
		p.Go(func(ctx context.Context) (bool, error) {
			if _, err := c.DailySeries(ctx, sym); err != nil {
				c.log.Debug("warming daily series", "symbol", sym, "error", err)
				return false, nil
			}
			return true, nil
		})
	}
	results, _ := p.Wait()
	n := 0
	for _, ok := range results {
		if ok {
			n++
		}
	}
	return n
}
