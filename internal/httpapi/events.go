package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"stockwatch/internal/watchlist"
)

// StreamEvent is the wire format for server-sent events.
type StreamEvent struct {
	Type        string          `json:"type"` // "snapshot" or an action name
	Version     uint64          `json:"version"`
	WatchlistID string          `json:"watchlistId,omitempty"`
	Watchlists  []WatchlistBody `json:"watchlists,omitempty"` // snapshot only
	DefaultID   string          `json:"defaultWatchlistId,omitempty"`
}

// handleEvents streams a snapshot followed by one event per applied change
// as SSE. The stream ends when the client leaves or the store closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, ch := s.store.Subscribe(64)
	defer s.store.Unsubscribe(id)

	if err := writeEvent(w, s.snapshotEvent()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			out := StreamEvent{
				Type:        evt.Action.String(),
				Version:     evt.Version,
				WatchlistID: evt.WatchlistID,
			}
			if err := writeEvent(w, out); err != nil {
				s.log.Warn("writing event", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) snapshotEvent() StreamEvent {
	st := s.store.State()
	list := watchlist.ListWatchlists(st)
	out := StreamEvent{
		Type:       "snapshot",
		Version:    st.Version,
		DefaultID:  st.DefaultWatchlistID,
		Watchlists: make([]WatchlistBody, 0, len(list)),
	}
	for _, wl := range list {
		out.Watchlists = append(out.Watchlists, toBody(wl, st.DefaultWatchlistID))
	}
	return out
}

func writeEvent(w http.ResponseWriter, e StreamEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
