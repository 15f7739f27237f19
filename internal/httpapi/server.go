// Package httpapi exposes the watchlist store and the quote-data
// collaborator over a REST API built on huma and chi. OpenAPI docs are
// served at /docs.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stockwatch/internal/quotes"
	"stockwatch/internal/watchlist"
)

// Server serves the REST API.
type Server struct {
	store         *watchlist.Store
	quotes        quotes.Provider
	enrichWorkers int
	log           *slog.Logger

	// nameMu makes the name policy check and the dispatch that follows it
	// atomic with respect to other named creates and renames.
	nameMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithQuotes enables the quote routes.
func WithQuotes(p quotes.Provider) Option {
	return func(s *Server) { s.quotes = p }
}

// WithEnrichWorkers bounds concurrent quote lookups when enriching a
// watchlist.
func WithEnrichWorkers(n int) Option {
	return func(s *Server) { s.enrichWorkers = n }
}

// WithLogger sets the request and error logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer creates a Server over store.
func NewServer(store *watchlist.Store, opts ...Option) *Server {
	s := &Server{
		store:         store,
		enrichWorkers: 4,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware)

	router.Get("/api/v1/events", s.handleEvents)

	cfg := huma.DefaultConfig("stockwatch API", "1.0.0")
	api := humachi.New(router, cfg)

	s.registerWatchlistHandlers(api)
	s.registerLegacyHandlers(api)
	if s.quotes != nil {
		s.registerQuoteHandlers(api)
	}
	return router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// mapOutcome turns a non-applied store outcome into an HTTP error. Unchanged
// is not an error.
func mapOutcome(res watchlist.Result) error {
	switch res.Outcome {
	case watchlist.NotFound:
		return huma.Error404NotFound("watchlist " + res.WatchlistID + " not found")
	case watchlist.Forbidden:
		return huma.Error409Conflict("the default watchlist cannot be deleted")
	}
	return nil
}

// mapErr maps policy and collaborator errors to HTTP errors.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmptyName), errors.Is(err, ErrNameTooLong), errors.Is(err, ErrEmptySymbol):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, ErrDuplicateName):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, quotes.ErrNoData):
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error502BadGateway(err.Error())
}
