package watchlist

import (
	"bytes"
	"encoding/json"
	"fmt"

	"stockwatch/internal/domain"
)

// persisted is the stored JSON layout. Items is the legacy mirror, written
// for older readers and read only when Watchlists is absent.
type persisted struct {
	Watchlists         orderedWatchlists   `json:"watchlists"`
	DefaultWatchlistID string              `json:"defaultWatchlistId"`
	Items              []domain.Membership `json:"items"`
}

// orderedWatchlists is the watchlists object with its keys kept in
// insertion order, on disk and when read back.
type orderedWatchlists struct {
	ids  []string
	byID map[string]domain.Watchlist
}

func (o orderedWatchlists) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, id := range o.ids {
		w, ok := o.byID[id]
		if !ok {
			continue
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(w)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *orderedWatchlists) UnmarshalJSON(data []byte) error {
	o.ids = nil
	o.byID = map[string]domain.Watchlist{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("watchlists: want object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var w domain.Watchlist
		if err := dec.Decode(&w); err != nil {
			return fmt.Errorf("watchlist %q: %w", id, err)
		}
		if _, dup := o.byID[id]; !dup {
			o.ids = append(o.ids, id)
		}
		o.byID[id] = w
	}
	_, err = dec.Token()
	return err
}

// Encode serializes s into the persisted layout.
func Encode(s *State) ([]byte, error) {
	if s == nil {
		s = emptyState()
	}
	p := persisted{
		Watchlists:         orderedWatchlists{ids: s.IDs(), byID: s.Watchlists},
		DefaultWatchlistID: s.DefaultWatchlistID,
		Items:              s.LegacyMirror(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding watchlist state: %w", err)
	}
	return data, nil
}

// Decode parses a persisted blob. A blob holding only legacy items is
// migrated into a synthesized default watchlist. Symbols are normalized and
// duplicates within a watchlist collapse to the first occurrence. The default
// id is returned as stored; callers repair a dangling one with
// InitializeDefault.
func Decode(data []byte, env Env) (*State, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding watchlist state: %w", err)
	}

	s := emptyState()
	for _, key := range p.Watchlists.ids {
		if key == "" {
			continue
		}
		w := p.Watchlists.byID[key]
		w.ID = key
		w.Stocks = dedupe(w.Stocks)
		s.Watchlists[key] = w
		s.order = append(s.order, key)
	}

	if len(s.Watchlists) == 0 && len(p.Items) > 0 {
		w := newWatchlist(s, domain.DefaultWatchlistName, env)
		w.Stocks = dedupe(p.Items)
		s.Watchlists[w.ID] = w
		s.DefaultWatchlistID = w.ID
		s.order = []string{w.ID}
		return s, nil
	}

	s.DefaultWatchlistID = p.DefaultWatchlistID
	return s, nil
}

// dedupe normalizes symbols, drops blanks and keeps the first membership per
// symbol. The result is never nil.
func dedupe(in []domain.Membership) []domain.Membership {
	out := make([]domain.Membership, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, m := range in {
		m.Symbol = domain.NormalizeSymbol(m.Symbol)
		if m.Symbol == "" {
			continue
		}
		if _, dup := seen[m.Symbol]; dup {
			continue
		}
		seen[m.Symbol] = struct{}{}
		if m.Name == "" {
			m.Name = m.Symbol
		}
		out = append(out, m)
	}
	return out
}
