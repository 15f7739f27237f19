package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STOCKWATCH_CONFIG", "DATA_DIR", "STORAGE_BACKEND", "SQLITE_PATH",
		"HTTP_ADDR", "GRPC_ADDR", "LOG_LEVEL", "LOG_FILE",
		"ALPACA_BASE_URL", "ALPACA_DATA_URL", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"STOCKWATCH_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stockwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  backend: "sqlite"
  data_dir: "/tmp/stockwatch/data"
  sqlite_path: "/tmp/stockwatch/state.db"
server:
  http_addr: "0.0.0.0:8080"
  grpc_addr: "0.0.0.0:9090"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "sip"
logging:
  level: "debug"
  format: "text"
quotes:
  universe: ["AAPL", "MSFT"]
  movers_ttl: "30m"
  enrich_workers: 8
watchlist:
  key: "profile"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendSQLite)
	}
	if cfg.Storage.SQLitePath != "/tmp/stockwatch/state.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/stockwatch/state.db")
	}

	// -- Server --
	if cfg.Server.GRPCAddr != "0.0.0.0:9090" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "0.0.0.0:9090")
	}

	// -- Alpaca --
	if !cfg.Alpaca.Enabled() {
		t.Error("Alpaca.Enabled() = false, want true")
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}

	// -- Logging --
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "text")
	}

	// -- Quotes --
	if len(cfg.Quotes.Universe) != 2 {
		t.Errorf("Quotes.Universe = %v, want 2 symbols", cfg.Quotes.Universe)
	}
	if cfg.Quotes.MoversTTL != 30*time.Minute {
		t.Errorf("Quotes.MoversTTL = %v, want 30m", cfg.Quotes.MoversTTL)
	}
	if cfg.Quotes.OverviewTTL != 24*time.Hour {
		t.Errorf("Quotes.OverviewTTL = %v, want default 24h", cfg.Quotes.OverviewTTL)
	}
	if cfg.Quotes.EnrichWorkers != 8 {
		t.Errorf("Quotes.EnrichWorkers = %d, want 8", cfg.Quotes.EnrichWorkers)
	}

	// -- Watchlist --
	if cfg.Watchlist.Key != "profile" {
		t.Errorf("Watchlist.Key = %q, want %q", cfg.Watchlist.Key, "profile")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendFile)
	}
	if cfg.Storage.SQLitePath != filepath.Join("data", "stockwatch.db") {
		t.Errorf("Storage.SQLitePath = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Watchlist.Key != "watchlist" {
		t.Errorf("Watchlist.Key = %q, want %q", cfg.Watchlist.Key, "watchlist")
	}
	if cfg.Alpaca.Enabled() {
		t.Error("Alpaca.Enabled() = true without credentials")
	}
	if len(cfg.Quotes.Universe) != len(DefaultUniverse) {
		t.Errorf("Quotes.Universe has %d symbols, want %d", len(cfg.Quotes.Universe), len(DefaultUniverse))
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() of a missing explicit file succeeded")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  backend: "file"
  data_dir: "/from/yaml"
alpaca:
  api_key: "yaml-key"
`)
	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("STORAGE_BACKEND", "MEMORY")
	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/from/env")
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendMemory)
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "env-key")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "watchlist:\n  key: \"from-env-path\"\n")
	t.Setenv("STOCKWATCH_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Watchlist.Key != "from-env-path" {
		t.Errorf("Watchlist.Key = %q, want %q", cfg.Watchlist.Key, "from-env-path")
	}
}

func TestValidateBackend(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "storage:\n  backend: \"redis\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted an unknown backend")
	}
}
