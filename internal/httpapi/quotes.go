package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"stockwatch/internal/domain"
	"stockwatch/internal/quotes"
)

func (s *Server) registerQuoteHandlers(api huma.API) {
	type moversOutput struct {
		Body domain.TopMovers
	}
	huma.Register(api, huma.Operation{OperationID: "top-movers", Method: http.MethodGet, Path: "/api/v1/quotes/movers", Summary: "Top gainers, losers and most active", Tags: []string{"Quotes"}},
		func(ctx context.Context, input *struct{}) (*moversOutput, error) {
			m, err := s.quotes.TopMovers(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &moversOutput{Body: m}, nil
		})

	type overviewOutput struct {
		Body domain.Overview
	}
	huma.Register(api, huma.Operation{OperationID: "overview", Method: http.MethodGet, Path: "/api/v1/quotes/overview/{symbol}", Summary: "Company overview", Tags: []string{"Quotes"}},
		func(ctx context.Context, input *struct {
			Symbol string `path:"symbol"`
		}) (*overviewOutput, error) {
			o, err := s.quotes.Overview(ctx, input.Symbol)
			if err != nil {
				return nil, mapErr(err)
			}
			return &overviewOutput{Body: o}, nil
		})

	type historyOutput struct {
		Body quotes.History
	}
	huma.Register(api, huma.Operation{OperationID: "daily-history", Method: http.MethodGet, Path: "/api/v1/quotes/daily/{symbol}", Summary: "Daily closes for the last 7, 30 or 90 sessions", Tags: []string{"Quotes"}},
		func(ctx context.Context, input *struct {
			Symbol string `path:"symbol"`
			Days   int    `query:"days" default:"30"`
		}) (*historyOutput, error) {
			if !quotes.ValidWindow(input.Days) {
				return nil, huma.Error400BadRequest(fmt.Sprintf("days must be one of %v", quotes.Windows))
			}
			bars, err := s.quotes.DailySeries(ctx, input.Symbol)
			if err != nil {
				return nil, mapErr(err)
			}
			h, err := quotes.Window(input.Symbol, bars, input.Days)
			if err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
			return &historyOutput{Body: h}, nil
		})

	type searchOutput struct {
		Body struct {
			BestMatches []domain.SymbolMatch `json:"bestMatches"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "symbol-search", Method: http.MethodGet, Path: "/api/v1/quotes/search", Summary: "Search symbols by ticker or name", Tags: []string{"Quotes"}},
		func(ctx context.Context, input *struct {
			Q string `query:"q" required:"true" minLength:"1"`
		}) (*searchOutput, error) {
			m, err := s.quotes.SearchSymbol(ctx, input.Q)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &searchOutput{}
			out.Body.BestMatches = m
			return out, nil
		})
}
