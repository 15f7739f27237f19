package watchlist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stockwatch/internal/store"
)

const saveTimeout = 10 * time.Second

// persister writes encoded snapshots to a KV from a single goroutine. Only
// the latest pending snapshot is written; intermediate ones are skipped.
type persister struct {
	kv  store.KV
	key string
	log *slog.Logger

	mu      sync.Mutex
	pending []byte

	wake    chan struct{}
	flushes chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newPersister(kv store.KV, key string, log *slog.Logger) *persister {
	p := &persister{
		kv:      kv,
		key:     key,
		log:     log,
		wake:    make(chan struct{}, 1),
		flushes: make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue replaces the pending snapshot and wakes the writer. It never blocks.
func (p *persister) enqueue(data []byte) {
	p.mu.Lock()
	p.pending = data
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// flush returns once everything enqueued before the call has been written
// (or has failed and been logged).
func (p *persister) flush(ctx context.Context) error {
	req := make(chan struct{})
	select {
	case p.flushes <- req:
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close writes any pending snapshot and stops the writer.
func (p *persister) close(ctx context.Context) error {
	p.once.Do(func() { close(p.stop) })
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.write()
		case req := <-p.flushes:
			p.write()
			close(req)
		case <-p.stop:
			p.write()
			return
		}
	}
}

func (p *persister) write() {
	p.mu.Lock()
	data := p.pending
	p.pending = nil
	p.mu.Unlock()
	if data == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := p.kv.Save(ctx, p.key, data); err != nil {
		// In-memory state stays authoritative.
		p.log.Error("persisting watchlist state", "key", p.key, "error", err)
		return
	}
	p.log.Debug("persisted watchlist state", "key", p.key, "bytes", len(data))
}
