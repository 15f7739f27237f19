package watchlist

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"stockwatch/internal/domain"
)

// Outcome reports what an Action did to the State. Lookup misses are not
// errors: the State is left untouched and the Outcome says why.
type Outcome int

const (
	// Unchanged means the action was valid but had nothing to do.
	Unchanged Outcome = iota
	// Applied means a new State was produced.
	Applied
	// NotFound means the referenced watchlist does not exist.
	NotFound
	// Forbidden means the action targeted the default watchlist for deletion.
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Applied:
		return "applied"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Result is returned for every dispatched Action.
type Result struct {
	Outcome Outcome
	// WatchlistID is the watchlist the action resolved to, including the id
	// generated by ActCreateWatchlist and ActInitializeDefault.
	WatchlistID string
}

// Changed reports whether the action produced a new State.
func (r Result) Changed() bool { return r.Outcome == Applied }

// Env supplies the non-deterministic inputs of the reducer.
type Env struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultEnv uses the wall clock and random UUIDs.
func DefaultEnv() Env {
	return Env{Now: time.Now, NewID: uuid.NewString}
}

func (e Env) nowMillis() int64 {
	return e.Now().UnixMilli()
}

// Reduce applies a to s and returns the resulting State. When the outcome is
// not Applied the returned State is s itself. s is never modified.
func Reduce(s *State, a Action, env Env) (*State, Result) {
	if s == nil {
		s = emptyState()
	}

	switch a.Type {
	case ActInitializeDefault:
		return reduceInitialize(s, env)
	case ActCreateWatchlist:
		return reduceCreate(s, a, env)
	case ActRenameWatchlist:
		return reduceRename(s, a)
	case ActDeleteWatchlist:
		return reduceDelete(s, a)
	case ActAddStock:
		return reduceAdd(s, a, env)
	case ActRemoveStock:
		return reduceRemove(s, a)
	case ActToggleStock:
		id := s.target(a.WatchlistID)
		w, ok := s.Watchlists[id]
		if ok && w.Contains(domain.NormalizeSymbol(a.Stock.Symbol)) {
			return reduceRemove(s, a)
		}
		return reduceAdd(s, a, env)
	case ActSetDefault:
		return reduceSetDefault(s, a)
	case ActClearDefault:
		return reduceClear(s)
	}
	return s, Result{Outcome: Unchanged}
}

// target resolves an optional watchlist id to the default.
func (s *State) target(id string) string {
	if id == "" {
		return s.DefaultWatchlistID
	}
	return id
}

// commit bumps the versions of a cloned state.
func commit(n *State, watchlists, def bool) *State {
	n.Version++
	if watchlists {
		n.WatchlistsVersion++
	}
	if def {
		n.DefaultVersion++
	}
	return n
}

func reduceInitialize(s *State, env Env) (*State, Result) {
	if len(s.Watchlists) == 0 {
		n := s.clone()
		w := newWatchlist(n, domain.DefaultWatchlistName, env)
		n.Watchlists[w.ID] = w
		n.order = append(n.order, w.ID)
		n.DefaultWatchlistID = w.ID
		return commit(n, true, true), Result{Outcome: Applied, WatchlistID: w.ID}
	}
	if s.Initialized() {
		return s, Result{Outcome: Unchanged, WatchlistID: s.DefaultWatchlistID}
	}

	// Watchlists exist but the default dangles: adopt the oldest.
	n := s.clone()
	n.DefaultWatchlistID = n.oldestID()
	return commit(n, false, true), Result{Outcome: Applied, WatchlistID: n.DefaultWatchlistID}
}

func reduceCreate(s *State, a Action, env Env) (*State, Result) {
	n := s.clone()
	w := newWatchlist(n, a.Name, env)
	n.Watchlists[w.ID] = w
	n.order = append(n.order, w.ID)
	return commit(n, true, false), Result{Outcome: Applied, WatchlistID: w.ID}
}

func reduceRename(s *State, a Action) (*State, Result) {
	w, ok := s.Watchlists[a.WatchlistID]
	if !ok {
		return s, Result{Outcome: NotFound, WatchlistID: a.WatchlistID}
	}
	if w.Name == a.Name {
		return s, Result{Outcome: Unchanged, WatchlistID: w.ID}
	}
	n := s.clone()
	w.Name = a.Name
	n.Watchlists[w.ID] = w
	return commit(n, true, false), Result{Outcome: Applied, WatchlistID: w.ID}
}

func reduceDelete(s *State, a Action) (*State, Result) {
	if a.WatchlistID == s.DefaultWatchlistID {
		return s, Result{Outcome: Forbidden, WatchlistID: a.WatchlistID}
	}
	if _, ok := s.Watchlists[a.WatchlistID]; !ok {
		return s, Result{Outcome: NotFound, WatchlistID: a.WatchlistID}
	}
	n := s.clone()
	delete(n.Watchlists, a.WatchlistID)
	order := n.order[:0]
	for _, id := range n.order {
		if id != a.WatchlistID {
			order = append(order, id)
		}
	}
	n.order = order
	return commit(n, true, false), Result{Outcome: Applied, WatchlistID: a.WatchlistID}
}

func reduceAdd(s *State, a Action, env Env) (*State, Result) {
	id := s.target(a.WatchlistID)
	w, ok := s.Watchlists[id]
	if !ok {
		return s, Result{Outcome: NotFound, WatchlistID: id}
	}
	sym := domain.NormalizeSymbol(a.Stock.Symbol)
	if sym == "" || w.Contains(sym) {
		return s, Result{Outcome: Unchanged, WatchlistID: id}
	}

	name := strings.TrimSpace(a.Stock.Name)
	if name == "" {
		name = sym
	}
	stocks := make([]domain.Membership, len(w.Stocks), len(w.Stocks)+1)
	copy(stocks, w.Stocks)
	w.Stocks = append(stocks, domain.Membership{Symbol: sym, Name: name, AddedAt: env.nowMillis()})

	n := s.clone()
	n.Watchlists[id] = w
	return commit(n, true, false), Result{Outcome: Applied, WatchlistID: id}
}

func reduceRemove(s *State, a Action) (*State, Result) {
	id := s.target(a.WatchlistID)
	w, ok := s.Watchlists[id]
	if !ok {
		return s, Result{Outcome: NotFound, WatchlistID: id}
	}
	idx := w.IndexOf(domain.NormalizeSymbol(a.Stock.Symbol))
	if idx < 0 {
		return s, Result{Outcome: Unchanged, WatchlistID: id}
	}

	stocks := make([]domain.Membership, 0, len(w.Stocks)-1)
	stocks = append(stocks, w.Stocks[:idx]...)
	w.Stocks = append(stocks, w.Stocks[idx+1:]...)

	n := s.clone()
	n.Watchlists[id] = w
	return commit(n, true, false), Result{Outcome: Applied, WatchlistID: id}
}

func reduceSetDefault(s *State, a Action) (*State, Result) {
	if _, ok := s.Watchlists[a.WatchlistID]; !ok {
		return s, Result{Outcome: NotFound, WatchlistID: a.WatchlistID}
	}
	if a.WatchlistID == s.DefaultWatchlistID {
		return s, Result{Outcome: Unchanged, WatchlistID: a.WatchlistID}
	}
	n := s.clone()
	n.DefaultWatchlistID = a.WatchlistID
	return commit(n, false, true), Result{Outcome: Applied, WatchlistID: a.WatchlistID}
}

func reduceClear(s *State) (*State, Result) {
	w, ok := s.Default()
	if !ok {
		return s, Result{Outcome: NotFound, WatchlistID: s.DefaultWatchlistID}
	}
	if len(w.Stocks) == 0 {
		return s, Result{Outcome: Unchanged, WatchlistID: w.ID}
	}
	w.Stocks = []domain.Membership{}
	n := s.clone()
	n.Watchlists[w.ID] = w
	return commit(n, true, false), Result{Outcome: Applied, WatchlistID: w.ID}
}

// newWatchlist builds an empty watchlist with an id unused in s.
func newWatchlist(s *State, name string, env Env) domain.Watchlist {
	id := env.NewID()
	for _, taken := s.Watchlists[id]; taken || id == ""; _, taken = s.Watchlists[id] {
		id = env.NewID()
	}
	return domain.Watchlist{
		ID:        id,
		Name:      name,
		Stocks:    []domain.Membership{},
		CreatedAt: env.nowMillis(),
	}
}
