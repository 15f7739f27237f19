package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"stockwatch/internal/domain"
	"stockwatch/internal/quotes"
	"stockwatch/internal/watchlist"
)

// WatchlistBody is the wire form of a watchlist.
type WatchlistBody struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Stocks    []domain.Membership `json:"stocks"`
	CreatedAt int64               `json:"createdAt"`
	IsDefault bool                `json:"isDefault"`
}

func toBody(w domain.Watchlist, defaultID string) WatchlistBody {
	stocks := w.Stocks
	if stocks == nil {
		stocks = []domain.Membership{}
	}
	return WatchlistBody{
		ID:        w.ID,
		Name:      w.Name,
		Stocks:    stocks,
		CreatedAt: w.CreatedAt,
		IsDefault: w.ID == defaultID,
	}
}

type watchlistOutput struct {
	Body struct {
		Watchlist WatchlistBody `json:"watchlist"`
		Outcome   string        `json:"outcome"`
	}
}

type listOutput struct {
	Body struct {
		Watchlists         []WatchlistBody `json:"watchlists"`
		DefaultWatchlistID string          `json:"defaultWatchlistId"`
	}
}

type idInput struct {
	ID string `path:"id"`
}

type stockBody struct {
	Symbol string `json:"symbol" minLength:"1" maxLength:"16"`
	Name   string `json:"name,omitempty"`
}

// watchlistResult renders watchlist id after a dispatch.
func (s *Server) watchlistResult(res watchlist.Result) (*watchlistOutput, error) {
	if err := mapOutcome(res); err != nil {
		return nil, err
	}
	st := s.store.State()
	w, ok := st.Watchlist(res.WatchlistID)
	if !ok {
		return nil, huma.Error404NotFound("watchlist " + res.WatchlistID + " not found")
	}
	out := &watchlistOutput{}
	out.Body.Watchlist = toBody(w, st.DefaultWatchlistID)
	out.Body.Outcome = res.Outcome.String()
	return out, nil
}

func (s *Server) registerWatchlistHandlers(api huma.API) {
	sel := s.store.Selectors()

	huma.Register(api, huma.Operation{OperationID: "list-watchlists", Method: http.MethodGet, Path: "/api/v1/watchlists", Summary: "List watchlists, oldest first", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct{}) (*listOutput, error) {
			def, _ := sel.DefaultWatchlist()
			list := sel.ListWatchlists()
			out := &listOutput{}
			out.Body.Watchlists = make([]WatchlistBody, 0, len(list))
			for _, w := range list {
				out.Body.Watchlists = append(out.Body.Watchlists, toBody(w, def.ID))
			}
			out.Body.DefaultWatchlistID = def.ID
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "create-watchlist", Method: http.MethodPost, Path: "/api/v1/watchlists", Summary: "Create a watchlist", Tags: []string{"Watchlists"}, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *struct {
			Body struct {
				Name string `json:"name"`
			}
		}) (*watchlistOutput, error) {
			s.nameMu.Lock()
			defer s.nameMu.Unlock()
			name, err := CheckWatchlistName(s.store.State(), input.Body.Name, "")
			if err != nil {
				return nil, mapErr(err)
			}
			return s.watchlistResult(s.store.CreateWatchlist(name))
		})

	huma.Register(api, huma.Operation{OperationID: "get-default-watchlist", Method: http.MethodGet, Path: "/api/v1/watchlists/default", Summary: "Get the default watchlist", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct{}) (*watchlistOutput, error) {
			w, ok := sel.DefaultWatchlist()
			if !ok {
				return nil, huma.Error404NotFound("no default watchlist")
			}
			out := &watchlistOutput{}
			out.Body.Watchlist = toBody(w, w.ID)
			out.Body.Outcome = watchlist.Unchanged.String()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-default-watchlist", Method: http.MethodPut, Path: "/api/v1/watchlists/default", Summary: "Make a watchlist the default", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct {
			Body struct {
				ID string `json:"id" minLength:"1"`
			}
		}) (*watchlistOutput, error) {
			return s.watchlistResult(s.store.SetDefaultWatchlist(input.Body.ID))
		})

	huma.Register(api, huma.Operation{OperationID: "clear-default-watchlist", Method: http.MethodDelete, Path: "/api/v1/watchlists/default/stocks", Summary: "Remove every stock from the default watchlist", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct{}) (*watchlistOutput, error) {
			return s.watchlistResult(s.store.ClearDefaultWatchlist())
		})

	huma.Register(api, huma.Operation{OperationID: "get-watchlist", Method: http.MethodGet, Path: "/api/v1/watchlists/{id}", Summary: "Get a watchlist", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *idInput) (*watchlistOutput, error) {
			w, ok := sel.WatchlistByID(input.ID)
			if !ok {
				return nil, huma.Error404NotFound("watchlist " + input.ID + " not found")
			}
			out := &watchlistOutput{}
			out.Body.Watchlist = toBody(w, s.store.State().DefaultWatchlistID)
			out.Body.Outcome = watchlist.Unchanged.String()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "rename-watchlist", Method: http.MethodPatch, Path: "/api/v1/watchlists/{id}", Summary: "Rename a watchlist", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct {
			ID   string `path:"id"`
			Body struct {
				Name string `json:"name"`
			}
		}) (*watchlistOutput, error) {
			s.nameMu.Lock()
			defer s.nameMu.Unlock()
			if _, ok := s.store.State().Watchlist(input.ID); !ok {
				return nil, mapOutcome(watchlist.Result{Outcome: watchlist.NotFound, WatchlistID: input.ID})
			}
			name, err := CheckWatchlistName(s.store.State(), input.Body.Name, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return s.watchlistResult(s.store.RenameWatchlist(input.ID, name))
		})

	huma.Register(api, huma.Operation{OperationID: "delete-watchlist", Method: http.MethodDelete, Path: "/api/v1/watchlists/{id}", Summary: "Delete a watchlist other than the default", Tags: []string{"Watchlists"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *idInput) (*struct{}, error) {
			if err := mapOutcome(s.store.DeleteWatchlist(input.ID)); err != nil {
				return nil, err
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "add-stock", Method: http.MethodPost, Path: "/api/v1/watchlists/{id}/stocks", Summary: "Add a stock to a watchlist", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct {
			ID   string `path:"id"`
			Body stockBody
		}) (*watchlistOutput, error) {
			m, err := checkMembership(input.Body.Symbol, input.Body.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			return s.watchlistResult(s.store.AddToWatchlist(input.ID, m))
		})

	huma.Register(api, huma.Operation{OperationID: "toggle-stock", Method: http.MethodPost, Path: "/api/v1/watchlists/{id}/toggle", Summary: "Add a stock, or remove it if already present", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct {
			ID   string `path:"id"`
			Body stockBody
		}) (*watchlistOutput, error) {
			m, err := checkMembership(input.Body.Symbol, input.Body.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			return s.watchlistResult(s.store.ToggleMembership(input.ID, m))
		})

	huma.Register(api, huma.Operation{OperationID: "remove-stock", Method: http.MethodDelete, Path: "/api/v1/watchlists/{id}/stocks/{symbol}", Summary: "Remove a stock from a watchlist", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct {
			ID     string `path:"id"`
			Symbol string `path:"symbol"`
		}) (*watchlistOutput, error) {
			return s.watchlistResult(s.store.RemoveFromWatchlist(input.ID, input.Symbol))
		})

	type membershipOutput struct {
		Body struct {
			Symbol       string   `json:"symbol"`
			InAny        bool     `json:"inAny"`
			WatchlistIDs []string `json:"watchlistIds"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "symbol-membership", Method: http.MethodGet, Path: "/api/v1/symbols/{symbol}/membership", Summary: "Watchlists containing a symbol", Tags: []string{"Watchlists"}},
		func(ctx context.Context, input *struct {
			Symbol string `path:"symbol"`
		}) (*membershipOutput, error) {
			sym := domain.NormalizeSymbol(input.Symbol)
			out := &membershipOutput{}
			out.Body.Symbol = sym
			out.Body.InAny = sel.IsSymbolInAnyWatchlist(sym)
			// Listing order keeps the response stable.
			ids := sel.WatchlistIDsContainingSymbol(sym)
			out.Body.WatchlistIDs = make([]string, 0, len(ids))
			for _, w := range sel.ListWatchlists() {
				if _, ok := ids[w.ID]; ok {
					out.Body.WatchlistIDs = append(out.Body.WatchlistIDs, w.ID)
				}
			}
			return out, nil
		})

	type enrichedOutput struct {
		Body struct {
			Watchlist WatchlistBody          `json:"watchlist"`
			Stocks    []quotes.EnrichedStock `json:"stocks"`
		}
	}
	if s.quotes != nil {
		huma.Register(api, huma.Operation{OperationID: "enrich-watchlist", Method: http.MethodGet, Path: "/api/v1/watchlists/{id}/quotes", Summary: "A watchlist with overview and latest price per stock", Tags: []string{"Watchlists", "Quotes"}},
			func(ctx context.Context, input *idInput) (*enrichedOutput, error) {
				st := s.store.State()
				w, ok := st.Watchlist(input.ID)
				if !ok {
					return nil, huma.Error404NotFound("watchlist " + input.ID + " not found")
				}
				out := &enrichedOutput{}
				out.Body.Watchlist = toBody(w, st.DefaultWatchlistID)
				out.Body.Stocks = quotes.Enrich(ctx, s.quotes, w, s.enrichWorkers)
				return out, nil
			})
	}
}

// registerLegacyHandlers serves callers that only know a single flat list:
// they read and write the default watchlist.
func (s *Server) registerLegacyHandlers(api huma.API) {
	sel := s.store.Selectors()

	type itemsOutput struct {
		Body struct {
			Items []domain.Membership `json:"items"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "legacy-items", Method: http.MethodGet, Path: "/api/v1/legacy/items", Summary: "Flat list of the default watchlist's stocks", Tags: []string{"Legacy"}},
		func(ctx context.Context, input *struct{}) (*itemsOutput, error) {
			out := &itemsOutput{}
			out.Body.Items = sel.LegacyMirror()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "legacy-add-stock", Method: http.MethodPost, Path: "/api/v1/stocks", Summary: "Add a stock to the default watchlist", Tags: []string{"Legacy"}},
		func(ctx context.Context, input *struct {
			Body stockBody
		}) (*watchlistOutput, error) {
			m, err := checkMembership(input.Body.Symbol, input.Body.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			return s.watchlistResult(s.store.AddToWatchlist("", m))
		})

	huma.Register(api, huma.Operation{OperationID: "legacy-remove-stock", Method: http.MethodDelete, Path: "/api/v1/stocks/{symbol}", Summary: "Remove a stock from the default watchlist", Tags: []string{"Legacy"}},
		func(ctx context.Context, input *struct {
			Symbol string `path:"symbol"`
		}) (*watchlistOutput, error) {
			return s.watchlistResult(s.store.RemoveFromWatchlist("", input.Symbol))
		})
}
