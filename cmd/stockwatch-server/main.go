package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"stockwatch/internal/config"
	"stockwatch/internal/httpapi"
	"stockwatch/internal/live"
	"stockwatch/internal/quotes"
	"stockwatch/internal/store"
	"stockwatch/internal/util"
	"stockwatch/internal/watchlist"
)

func main() {
	// Load config.
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	logger, logCloser, err := util.NewLogger(util.LogOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		log.Fatalf("setting up logging: %v", err)
	}
	defer logCloser.Close()
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Create the watchlist store.
	kv, kvCloser, err := store.OpenKV(cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer kvCloser.Close()

	wl, err := watchlist.New(ctx, kv,
		watchlist.WithKey(cfg.Watchlist.Key),
		watchlist.WithLogger(logger.With("component", "watchlist")),
	)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := wl.Close(closeCtx); err != nil {
			logger.Error("closing watchlist store", "error", err)
		}
	}()

	provider, err := newQuoteProvider(ctx, cfg, wl, logger.With("component", "quotes"))
	if err != nil {
		return err
	}

	// HTTP server.
	api := httpapi.NewServer(wl,
		httpapi.WithQuotes(provider),
		httpapi.WithEnrichWorkers(cfg.Quotes.EnrichWorkers),
		httpapi.WithLogger(logger.With("component", "http")),
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC sync server.
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	gs := grpc.NewServer()
	live.NewServer(wl, logger.With("component", "sync")).RegisterGRPC(gs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc server listening", "addr", lis.Addr().String())
		return gs.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
		// Watch streams only end when clients leave, so don't wait on them.
		gs.Stop()
		return nil
	})
	return g.Wait()
}

// newQuoteProvider layers Fallback over Cache over Alpaca. Without Alpaca
// credentials only the bundled dataset is served.
func newQuoteProvider(ctx context.Context, cfg *config.Config, wl *watchlist.Store, logger *slog.Logger) (quotes.Provider, error) {
	data, err := quotes.BundledDataset()
	if err != nil {
		return nil, err
	}
	if !cfg.Alpaca.Enabled() {
		logger.Warn("alpaca credentials not set, serving bundled quote data")
		return quotes.NewFallback(nil, data, logger), nil
	}

	alpaca := quotes.NewAlpacaProvider(quotes.AlpacaOptions{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		BaseURL:         cfg.Alpaca.BaseURL,
		DataURL:         cfg.Alpaca.DataURL,
		Feed:            cfg.Alpaca.Feed,
		Universe:        cfg.Quotes.Universe,
		MoversCount:     cfg.Quotes.MoversCount,
		RateLimitPerMin: cfg.Quotes.RateLimitPerMin,
		RateBurst:       cfg.Quotes.RateBurst,
		MaxAttempts:     cfg.Quotes.MaxAttempts,
		RetryDelay:      cfg.Quotes.RetryDelay,
		Log:             logger,
	})
	cache := quotes.NewCache(alpaca, quotes.TTLs{
		Movers:   cfg.Quotes.MoversTTL,
		Overview: cfg.Quotes.OverviewTTL,
		Daily:    cfg.Quotes.DailyTTL,
		Search:   cfg.Quotes.SearchTTL,
	}, store.NewParquetStore(cfg.Storage.DataDir), logger)

	// Prefetch daily series for every watched symbol.
	go func() {
		idx := watchlist.IndexSymbols(wl.State())
		symbols := make([]string, 0, len(idx))
		for sym := range idx {
			symbols = append(symbols, sym)
		}
		n := cache.Warm(ctx, symbols, cfg.Quotes.EnrichWorkers)
		logger.Info("warmed daily series", "symbols", len(symbols), "ok", n)
	}()

	return quotes.NewFallback(cache, data, logger), nil
}
