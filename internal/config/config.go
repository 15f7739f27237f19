// Package config loads stockwatch configuration from a YAML file, an
// optional .env file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockwatch/internal/store"
)

// DefaultPath is read when neither an explicit path nor STOCKWATCH_CONFIG is
// given. A missing file at this path is not an error.
const DefaultPath = "config/stockwatch.yaml"

// Storage backends.
const (
	BackendFile   = store.BackendFile
	BackendSQLite = store.BackendSQLite
	BackendMemory = store.BackendMemory
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockwatch.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Server    Server    `yaml:"server"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Logging   Logging   `yaml:"logging"`
	Quotes    Quotes    `yaml:"quotes"`
	Watchlist Watchlist `yaml:"watchlist"`
}

// Storage selects the persistence backend and its paths.
type Storage struct {
	Backend    string `yaml:"backend"` // file, sqlite or memory
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Enabled reports whether credentials are configured.
func (a Alpaca) Enabled() bool {
	return a.APIKey != "" && a.APISecret != ""
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Quotes configures the quote-data collaborator.
type Quotes struct {
	// Universe is the symbol set scanned for top movers.
	Universe []string `yaml:"universe"`

	MoversTTL   time.Duration `yaml:"movers_ttl"`
	OverviewTTL time.Duration `yaml:"overview_ttl"`
	DailyTTL    time.Duration `yaml:"daily_ttl"`
	SearchTTL   time.Duration `yaml:"search_ttl"`

	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	RateBurst       int           `yaml:"rate_burst"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	EnrichWorkers   int           `yaml:"enrich_workers"`
	MoversCount     int           `yaml:"movers_count"`
}

// Watchlist configures the watchlist store.
type Watchlist struct {
	Key string `yaml:"key"`
}

// DefaultUniverse is scanned for movers when none is configured.
var DefaultUniverse = []string{
	"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA", "AMD", "NFLX", "AVGO",
	"JPM", "V", "MA", "XOM", "UNH", "COST", "WMT", "DIS", "INTC", "PLTR",
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads configuration. An empty path falls back to STOCKWATCH_CONFIG and
// then DefaultPath. A .env file in the working directory is loaded first if
// present; variables already set in the environment win over it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	explicit := true
	if path == "" {
		path = os.Getenv("STOCKWATCH_CONFIG")
	}
	if path == "" {
		path = DefaultPath
		explicit = false
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		slog.Debug("no config file, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Quotes.EnrichWorkers < 1 {
		return fmt.Errorf("config: quotes.enrich_workers must be positive, got %d", c.Quotes.EnrichWorkers)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	// Standard Alpaca env vars, the names the SDK itself reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("STOCKWATCH_KEY"); v != "" {
		cfg.Watchlist.Key = v
	}
}

// applyDefaults fills zero values.
func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFile
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, "stockwatch.db")
	}

	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = "127.0.0.1:9090"
	}

	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	q := &cfg.Quotes
	if len(q.Universe) == 0 {
		q.Universe = append([]string(nil), DefaultUniverse...)
	}
	if q.MoversTTL == 0 {
		q.MoversTTL = time.Hour
	}
	if q.OverviewTTL == 0 {
		q.OverviewTTL = 24 * time.Hour
	}
	if q.DailyTTL == 0 {
		q.DailyTTL = 6 * time.Hour
	}
	if q.SearchTTL == 0 {
		q.SearchTTL = time.Hour
	}
	if q.RateLimitPerMin == 0 {
		q.RateLimitPerMin = 200
	}
	if q.RateBurst == 0 {
		q.RateBurst = 10
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = 3
	}
	if q.RetryDelay == 0 {
		q.RetryDelay = 500 * time.Millisecond
	}
	if q.EnrichWorkers == 0 {
		q.EnrichWorkers = 4
	}
	if q.MoversCount == 0 {
		q.MoversCount = 5
	}

	if cfg.Watchlist.Key == "" {
		cfg.Watchlist.Key = "watchlist"
	}
}
