package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stockwatch/internal/domain"
	"stockwatch/internal/store"
)

// DefaultKey is the KV key the state is persisted under.
const DefaultKey = "watchlist"

// Event is delivered to subscribers after every applied action.
type Event struct {
	Version     uint64
	Action      ActionType
	WatchlistID string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for CreatedAt and AddedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.env.Now = now }
}

// WithIDGenerator sets the watchlist id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.env.NewID = newID }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithKey sets the KV key the state is persisted under.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// Store owns the current State. Dispatches are serialized; reads are a
// lock-free snapshot load.
type Store struct {
	mu    sync.Mutex
	state atomic.Pointer[State]
	env   Env
	key   string
	log   *slog.Logger

	persist   *persister
	selectors *Selectors

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// New builds a Store rehydrated from kv. A missing, unreadable or malformed
// blob is logged and replaced by a fresh state holding one empty default
// watchlist.
func New(ctx context.Context, kv store.KV, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("watchlist: nil KV")
	}
	s := &Store{
		env:  DefaultEnv(),
		key:  DefaultKey,
		log:  slog.Default(),
		subs: make(map[int]chan Event),
	}
	for _, o := range opts {
		o(s)
	}

	s.state.Store(s.rehydrate(ctx, kv))
	s.persist = newPersister(kv, s.key, s.log)
	s.selectors = NewSelectors(s)
	s.Dispatch(InitializeDefault())
	return s, nil
}

func (s *Store) rehydrate(ctx context.Context, kv store.KV) *State {
	data, err := kv.Load(ctx, s.key)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Info("no persisted watchlist state, starting fresh", "key", s.key)
		return emptyState()
	}
	if err != nil {
		s.log.Warn("loading watchlist state, starting fresh", "key", s.key, "error", err)
		return emptyState()
	}
	st, err := Decode(data, s.env)
	if err != nil {
		s.log.Warn("decoding watchlist state, starting fresh", "key", s.key, "error", err)
		return emptyState()
	}
	s.log.Info("loaded watchlist state", "watchlists", st.Len())
	return st
}

// State returns the current snapshot. It must not be modified.
func (s *Store) State() *State {
	return s.state.Load()
}

// Selectors returns the memoized selectors bound to this store.
func (s *Store) Selectors() *Selectors {
	return s.selectors
}

// Dispatch applies a. Applied actions publish a new State, queue a
// persistence write and notify subscribers.
func (s *Store) Dispatch(a Action) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, res := Reduce(s.state.Load(), a, s.env)
	if !res.Changed() {
		s.log.Debug("watchlist action not applied", "action", a.Type, "outcome", res.Outcome, "id", res.WatchlistID)
		return res
	}
	s.state.Store(next)

	data, err := Encode(next)
	if err != nil {
		s.log.Error("encoding watchlist state", "error", err)
	} else {
		s.persist.enqueue(data)
	}

	s.broadcast(Event{Version: next.Version, Action: a.Type, WatchlistID: res.WatchlistID})
	return res
}

// InitializeDefault synthesizes the default watchlist if none exists and
// repairs a dangling default.
func (s *Store) InitializeDefault() Result {
	return s.Dispatch(InitializeDefault())
}

// CreateWatchlist adds an empty watchlist. The new id is in the Result.
func (s *Store) CreateWatchlist(name string) Result {
	return s.Dispatch(CreateWatchlist(name))
}

// RenameWatchlist renames watchlist id.
func (s *Store) RenameWatchlist(id, name string) Result {
	return s.Dispatch(RenameWatchlist(id, name))
}

// DeleteWatchlist removes watchlist id. The default cannot be deleted.
func (s *Store) DeleteWatchlist(id string) Result {
	return s.Dispatch(DeleteWatchlist(id))
}

// AddToWatchlist adds m to watchlist id, or to the default when id is "".
func (s *Store) AddToWatchlist(id string, m domain.Membership) Result {
	return s.Dispatch(AddStock(id, m))
}

// RemoveFromWatchlist removes symbol from watchlist id, or from the default
// when id is "".
func (s *Store) RemoveFromWatchlist(id, symbol string) Result {
	return s.Dispatch(RemoveStock(id, symbol))
}

// ToggleMembership removes m.Symbol from watchlist id if present and adds m
// otherwise.
func (s *Store) ToggleMembership(id string, m domain.Membership) Result {
	return s.Dispatch(ToggleStock(id, m))
}

// SetDefaultWatchlist makes watchlist id the default.
func (s *Store) SetDefaultWatchlist(id string) Result {
	return s.Dispatch(SetDefault(id))
}

// ClearDefaultWatchlist empties the default watchlist.
func (s *Store) ClearDefaultWatchlist() Result {
	return s.Dispatch(ClearDefault())
}

// Flush waits until every change applied before the call has been handed to
// the KV.
func (s *Store) Flush(ctx context.Context) error {
	return s.persist.flush(ctx)
}

// Close flushes pending writes, stops the writer and closes all subscriber
// channels. Dispatch keeps working on the in-memory state afterwards.
func (s *Store) Close(ctx context.Context) error {
	err := s.persist.close(ctx)

	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
	return err
}

// Subscribe returns a channel that receives events. bufSize controls the
// channel buffer; slow consumers have events dropped.
func (s *Store) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.subsMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

func (s *Store) broadcast(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
