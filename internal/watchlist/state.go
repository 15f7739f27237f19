// Package watchlist holds the canonical watchlist state: an immutable State
// value, the Actions that change it, a pure reducer, a Store that owns the
// current State and persists it, and memoized Selectors over it.
//
// State values are never mutated once published. Reduce copies whatever it
// changes (the watchlist map, a watchlist's stock slice) and returns a new
// State; everything else is shared with the previous value.
package watchlist

import (
	"sort"

	"stockwatch/internal/domain"
)

// State is one immutable snapshot of the watchlist data.
type State struct {
	// Watchlists maps watchlist id to watchlist.
	Watchlists map[string]domain.Watchlist

	// DefaultWatchlistID names the watchlist used when an operation does not
	// name one. It always resolves once the state is initialized.
	DefaultWatchlistID string

	// Version increases on every applied change.
	Version uint64

	// WatchlistsVersion increases when Watchlists changes.
	WatchlistsVersion uint64

	// DefaultVersion increases when DefaultWatchlistID changes.
	DefaultVersion uint64

	// order is the insertion order of watchlist ids. It breaks CreatedAt
	// ties when listing.
	order []string
}

// emptyState returns a State with no watchlists.
func emptyState() *State {
	return &State{Watchlists: map[string]domain.Watchlist{}}
}

// Empty returns a State holding no watchlists, as seen before the default
// is initialized.
func Empty() *State {
	return emptyState()
}

// Initialized reports whether the default watchlist resolves.
func (s *State) Initialized() bool {
	if s == nil || s.DefaultWatchlistID == "" {
		return false
	}
	_, ok := s.Watchlists[s.DefaultWatchlistID]
	return ok
}

// Len returns the number of watchlists.
func (s *State) Len() int {
	return len(s.Watchlists)
}

// Watchlist returns the watchlist with the given id.
func (s *State) Watchlist(id string) (domain.Watchlist, bool) {
	w, ok := s.Watchlists[id]
	return w, ok
}

// Default returns the default watchlist.
func (s *State) Default() (domain.Watchlist, bool) {
	if s.DefaultWatchlistID == "" {
		return domain.Watchlist{}, false
	}
	return s.Watchlist(s.DefaultWatchlistID)
}

// LegacyMirror returns the flat membership list kept for callers that
// predate multiple watchlists. It is the default watchlist's stocks.
func (s *State) LegacyMirror() []domain.Membership {
	w, ok := s.Default()
	if !ok {
		return []domain.Membership{}
	}
	return w.Stocks
}

// IDs returns the watchlist ids in insertion order.
func (s *State) IDs() []string {
	return append([]string(nil), s.order...)
}

// clone returns a shallow copy of s with its own watchlist map and order
// slice, safe to modify before publishing.
func (s *State) clone() *State {
	n := *s
	n.Watchlists = make(map[string]domain.Watchlist, len(s.Watchlists)+1)
	for id, w := range s.Watchlists {
		n.Watchlists[id] = w
	}
	n.order = append(make([]string, 0, len(s.order)+1), s.order...)
	return &n
}

// oldestID returns the id of the watchlist with the smallest CreatedAt, or
// "" when there are none.
func (s *State) oldestID() string {
	ids := s.sortedIDs()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// sortedIDs returns ids ordered by CreatedAt, ties broken by insertion order.
func (s *State) sortedIDs() []string {
	ids := s.IDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return s.Watchlists[ids[i]].CreatedAt < s.Watchlists[ids[j]].CreatedAt
	})
	return ids
}

// WithOrder returns a copy of s whose insertion order lists ids first, in
// the given sequence. Unknown ids are skipped; watchlists not named follow in
// their current order.
func (s *State) WithOrder(ids []string) *State {
	n := s.clone()
	n.order = n.order[:0]
	seen := make(map[string]struct{}, len(s.order))
	for _, id := range append(append([]string(nil), ids...), s.order...) {
		if _, ok := s.Watchlists[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		n.order = append(n.order, id)
	}
	return n
}
