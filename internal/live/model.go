// Package live streams the watchlist state over gRPC. A Server publishes a
// store's snapshots; a Client keeps a local Mirror in step with them so
// remote readers can run the same selectors as the owning process.
package live

import (
	"reflect"
	"sync"
	"sync/atomic"

	"stockwatch/internal/watchlist"
)

// Snapshot is one published state of a remote store.
type Snapshot struct {
	// Version is the remote store's version. It restarts when the remote
	// process does.
	Version uint64
	// Action and WatchlistID describe the change that produced the
	// snapshot; both are empty for the initial one.
	Action      string
	WatchlistID string
	State       *watchlist.State
}

// Mirror holds the latest State received from a remote store. It implements
// watchlist.StateSource.
//
// Mirror keeps its own version counters rather than the remote ones: a
// remote restart starts from zero again and would otherwise collide with
// memoized selector results.
type Mirror struct {
	mu     sync.Mutex
	seq    uint64
	state  atomic.Pointer[watchlist.State]
	remote atomic.Uint64

	selectors *watchlist.Selectors

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Snapshot
}

// NewMirror returns a Mirror holding an empty state.
func NewMirror() *Mirror {
	m := &Mirror{subs: make(map[int]chan Snapshot)}
	m.state.Store(watchlist.Empty())
	m.selectors = watchlist.NewSelectors(m)
	return m
}

// State returns the current mirrored state.
func (m *Mirror) State() *watchlist.State {
	return m.state.Load()
}

// Selectors returns memoized selectors over the mirror.
func (m *Mirror) Selectors() *watchlist.Selectors {
	return m.selectors
}

// RemoteVersion returns the remote version of the last applied snapshot.
func (m *Mirror) RemoteVersion() uint64 {
	return m.remote.Load()
}

// Apply replaces the mirrored state with snap.State and notifies
// subscribers. It returns false, and notifies no one, when the content is
// identical to what the mirror already holds.
func (m *Mirror) Apply(snap Snapshot) bool {
	if snap.State == nil {
		return false
	}
	m.mu.Lock()
	prev := m.state.Load()
	m.remote.Store(snap.Version)

	sameLists := reflect.DeepEqual(prev.Watchlists, snap.State.Watchlists)
	sameDefault := prev.DefaultWatchlistID == snap.State.DefaultWatchlistID
	if sameLists && sameDefault {
		m.mu.Unlock()
		return false
	}

	m.seq++
	n := *snap.State
	next := &n
	next.Version = m.seq
	next.WatchlistsVersion = prev.WatchlistsVersion
	next.DefaultVersion = prev.DefaultVersion
	if !sameLists {
		next.WatchlistsVersion = m.seq
	}
	if !sameDefault {
		next.DefaultVersion = m.seq
	}
	m.state.Store(next)
	m.mu.Unlock()

	m.broadcast(snap)
	return true
}

// Subscribe creates a channel receiving every applied snapshot. Slow
// consumers have snapshots dropped.
func (m *Mirror) Subscribe(bufSize int) (id int, ch <-chan Snapshot) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id = m.nextSubID
	m.nextSubID++
	c := make(chan Snapshot, bufSize)
	m.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Mirror) Unsubscribe(id int) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if ch, ok := m.subs[id]; ok {
		close(ch)
		delete(m.subs, id)
	}
}

func (m *Mirror) broadcast(snap Snapshot) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
