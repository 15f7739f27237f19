package watchlist

import (
	"sync"

	"stockwatch/internal/domain"
)

// StateSource is anything holding a current State, such as a Store or a
// remote mirror.
type StateSource interface {
	State() *State
}

// ListWatchlists returns the watchlists of s ascending by CreatedAt, ties
// broken by insertion order.
func ListWatchlists(s *State) []domain.Watchlist {
	ids := s.sortedIDs()
	out := make([]domain.Watchlist, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Watchlists[id])
	}
	return out
}

// SymbolIndex maps each symbol to the set of watchlist ids containing it.
type SymbolIndex map[string]map[string]struct{}

// IndexSymbols builds the SymbolIndex of s.
func IndexSymbols(s *State) SymbolIndex {
	idx := make(SymbolIndex)
	for id, w := range s.Watchlists {
		for _, m := range w.Stocks {
			set, ok := idx[m.Symbol]
			if !ok {
				set = make(map[string]struct{}, 1)
				idx[m.Symbol] = set
			}
			set[id] = struct{}{}
		}
	}
	return idx
}

// memoKey identifies the inputs a cached value was computed from.
type memoKey struct {
	state       *State
	watchlists  uint64
	defaultVers uint64
}

// memo caches one value until its key changes.
type memo[T any] struct {
	mu  sync.Mutex
	ok  bool
	key memoKey
	val T
}

func (m *memo[T]) get(key memoKey, compute func() T) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ok || m.key != key {
		m.val = compute()
		m.key = key
		m.ok = true
	}
	return m.val
}

// Selectors are memoized read-only projections over a StateSource. A result
// is recomputed only when the versions it depends on change; otherwise the
// cached value (same backing array or map) is returned. Results must not be
// modified.
type Selectors struct {
	src StateSource

	list   memo[[]domain.Watchlist]
	index  memo[SymbolIndex]
	mirror memo[[]domain.Membership]
}

// NewSelectors binds selectors to src.
func NewSelectors(src StateSource) *Selectors {
	return &Selectors{src: src}
}

// ListWatchlists returns all watchlists ascending by CreatedAt.
func (sel *Selectors) ListWatchlists() []domain.Watchlist {
	s := sel.src.State()
	return sel.list.get(watchlistsKey(s), func() []domain.Watchlist {
		return ListWatchlists(s)
	})
}

// WatchlistByID returns the watchlist with the given id.
func (sel *Selectors) WatchlistByID(id string) (domain.Watchlist, bool) {
	return sel.src.State().Watchlist(id)
}

// DefaultWatchlist returns the default watchlist, or false before the state
// is initialized.
func (sel *Selectors) DefaultWatchlist() (domain.Watchlist, bool) {
	return sel.src.State().Default()
}

// IsSymbolInAnyWatchlist reports whether any watchlist contains symbol.
func (sel *Selectors) IsSymbolInAnyWatchlist(symbol string) bool {
	return len(sel.symbolIndex()[domain.NormalizeSymbol(symbol)]) > 0
}

var noIDs = map[string]struct{}{}

// WatchlistIDsContainingSymbol returns the ids of the watchlists containing
// symbol.
func (sel *Selectors) WatchlistIDsContainingSymbol(symbol string) map[string]struct{} {
	if ids, ok := sel.symbolIndex()[domain.NormalizeSymbol(symbol)]; ok {
		return ids
	}
	return noIDs
}

// LegacyMirror returns the flat membership list equal to the default
// watchlist's stocks.
func (sel *Selectors) LegacyMirror() []domain.Membership {
	s := sel.src.State()
	key := watchlistsKey(s)
	key.defaultVers = s.DefaultVersion
	return sel.mirror.get(key, s.LegacyMirror)
}

func (sel *Selectors) symbolIndex() SymbolIndex {
	s := sel.src.State()
	return sel.index.get(watchlistsKey(s), func() SymbolIndex {
		return IndexSymbols(s)
	})
}

// watchlistsKey keys on the watchlist map version. The state pointer is kept
// only when no change has been recorded yet, so two unrelated unversioned
// states never share a cache entry.
func watchlistsKey(s *State) memoKey {
	if s.WatchlistsVersion == 0 {
		return memoKey{state: s}
	}
	return memoKey{watchlists: s.WatchlistsVersion}
}
