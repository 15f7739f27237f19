package watchlist

import (
	"encoding/json"
	"fmt"
	"testing"

	"stockwatch/internal/domain"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := testEnv()
	s := initialized(t, env)
	s, tech := Reduce(s, CreateWatchlist("Tech"), env)
	s, _ = Reduce(s, AddStock(tech.WatchlistID, domain.Membership{Symbol: "AAPL", Name: "Apple Inc"}), env)
	s, _ = Reduce(s, AddStock("", domain.Membership{Symbol: "MSFT"}), env)

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, env)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.DefaultWatchlistID != s.DefaultWatchlistID {
		t.Errorf("DefaultWatchlistID = %q, want %q", got.DefaultWatchlistID, s.DefaultWatchlistID)
	}
	w, ok := got.Watchlist(tech.WatchlistID)
	if !ok || len(w.Stocks) != 1 || w.Stocks[0] != s.Watchlists[tech.WatchlistID].Stocks[0] {
		t.Errorf("decoded tech = %+v, want %+v", w, s.Watchlists[tech.WatchlistID])
	}
	if ids, want := got.IDs(), s.IDs(); len(ids) != len(want) || ids[0] != want[0] {
		t.Errorf("IDs() = %v, want %v", ids, want)
	}
}

func TestEncodeWritesLegacyItems(t *testing.T) {
	env := testEnv()
	s := initialized(t, env)
	s, _ = Reduce(s, AddStock("", domain.Membership{Symbol: "TSLA", Name: "Tesla"}), env)

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var raw struct {
		Items []domain.Membership `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw.Items) != 1 || raw.Items[0].Symbol != "TSLA" {
		t.Errorf("items = %v, want [TSLA]", raw.Items)
	}
}

func TestDecodeMigratesLegacyItems(t *testing.T) {
	blob := `{"items":[{"symbol":"aapl","name":"Apple Inc","addedAt":100},{"symbol":"AAPL","name":"dup","addedAt":200},{"symbol":"GOOG","addedAt":300}]}`
	s, err := Decode([]byte(blob), testEnv())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	def, ok := s.Default()
	if !ok {
		t.Fatal("migrated state has no default")
	}
	if def.Name != domain.DefaultWatchlistName {
		t.Errorf("Name = %q, want %q", def.Name, domain.DefaultWatchlistName)
	}
	if len(def.Stocks) != 2 {
		t.Fatalf("Stocks = %v, want 2 entries", def.Stocks)
	}
	if def.Stocks[0].Symbol != "AAPL" || def.Stocks[0].Name != "Apple Inc" || def.Stocks[0].AddedAt != 100 {
		t.Errorf("Stocks[0] = %+v, want first AAPL kept", def.Stocks[0])
	}
	if def.Stocks[1].Name != "GOOG" {
		t.Errorf("Stocks[1].Name = %q, want symbol fallback", def.Stocks[1].Name)
	}
}

func TestDecodeRepairsKeysAndNilStocks(t *testing.T) {
	blob := `{"watchlists":{"a":{"id":"wrong","name":"A","stocks":null,"createdAt":1}},"defaultWatchlistId":"gone"}`
	s, err := Decode([]byte(blob), testEnv())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	w, ok := s.Watchlist("a")
	if !ok || w.ID != "a" || w.Stocks == nil {
		t.Fatalf("watchlist a = %+v, %v", w, ok)
	}
	if s.Initialized() {
		t.Error("dangling default reported as initialized")
	}

	s, res := Reduce(s, InitializeDefault(), testEnv())
	if res.Outcome != Applied || s.DefaultWatchlistID != "a" {
		t.Errorf("repair: outcome %v, default %q", res.Outcome, s.DefaultWatchlistID)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("[]"), testEnv()); err == nil {
		t.Error("Decode([]) succeeded")
	}
}

func TestEncodeDecodeKeepsInsertionOrderOnTies(t *testing.T) {
	s := emptyState()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		s.Watchlists[id] = domain.Watchlist{ID: id, Name: id, Stocks: []domain.Membership{}, CreatedAt: 7}
		s.order = append(s.order, id)
	}
	s.DefaultWatchlistID = "zeta"

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, testEnv())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := []string{"zeta", "alpha", "mid"}
	if listed := ids(ListWatchlists(got)); fmt.Sprint(listed) != fmt.Sprint(want) {
		t.Errorf("ListWatchlists after decode = %v, want %v", listed, want)
	}
}

func TestDecodeReadsKeysInStreamOrder(t *testing.T) {
	blob := `{"watchlists":{"b":{"name":"B","stocks":[],"createdAt":3},"a":{"name":"A","stocks":[],"createdAt":3}},"defaultWatchlistId":"b"}`
	s, err := Decode([]byte(blob), testEnv())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := s.IDs(); fmt.Sprint(got) != "[b a]" {
		t.Errorf("IDs() = %v, want [b a]", got)
	}
}

func TestStateWithOrder(t *testing.T) {
	s := emptyState()
	for _, id := range []string{"a", "b", "c"} {
		s.Watchlists[id] = domain.Watchlist{ID: id, Stocks: []domain.Membership{}}
		s.order = append(s.order, id)
	}
	got := s.WithOrder([]string{"c", "gone", "a", "c"})
	if fmt.Sprint(got.IDs()) != "[c a b]" {
		t.Errorf("WithOrder IDs() = %v, want [c a b]", got.IDs())
	}
	if fmt.Sprint(s.IDs()) != "[a b c]" {
		t.Errorf("WithOrder changed the receiver: %v", s.IDs())
	}
}
