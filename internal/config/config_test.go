package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SERVER_PORT", "SERVER_HOST",
		"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_SSL_MODE",
		"ENGINE_SPREAD", "ENGINE_LOT_SIZES", "ENGINE_MAX_POSITIONS", "ENGINE_TP_PIPS",
		"ENGINE_SL_PIPS", "ENGINE_TOLERANCE", "ENGINE_HEDGE_ENABLED",
		"ENGINE_MAX_GROUPS_CONCURRENT", "ENGINE_ORDER_TIMEOUT", "ENGINE_MAX_RETRIES", "ENGINE_RETRY_BACKOFF",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "gridengine" {
		t.Errorf("Database.Name = %q, want gridengine", cfg.Database.Name)
	}
	if cfg.Engine.Spread != 20.0 {
		t.Errorf("Engine.Spread = %v, want 20.0", cfg.Engine.Spread)
	}
	wantLots := []float64{0.01, 0.02, 0.03, 0.04, 0.05}
	if len(cfg.Engine.LotSizes) != len(wantLots) {
		t.Fatalf("Engine.LotSizes = %v, want %v", cfg.Engine.LotSizes, wantLots)
	}
	for i, v := range wantLots {
		if cfg.Engine.LotSizes[i] != v {
			t.Errorf("Engine.LotSizes[%d] = %v, want %v", i, cfg.Engine.LotSizes[i], v)
		}
	}
	if cfg.Engine.MaxPositions != 5 {
		t.Errorf("Engine.MaxPositions = %d, want 5", cfg.Engine.MaxPositions)
	}
	if !cfg.Engine.HedgeEnabled {
		t.Error("Engine.HedgeEnabled = false, want true")
	}
	if cfg.Engine.OrderTimeout != 5*time.Second {
		t.Errorf("Engine.OrderTimeout = %v, want 5s", cfg.Engine.OrderTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	os.Setenv("ENGINE_SPREAD", "35.5")
	os.Setenv("ENGINE_LOT_SIZES", "0.1, 0.2, 0.3")
	os.Setenv("ENGINE_MAX_POSITIONS", "8")
	os.Setenv("ENGINE_HEDGE_ENABLED", "false")
	os.Setenv("ENGINE_ORDER_TIMEOUT", "2s")
	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.Spread != 35.5 {
		t.Errorf("Engine.Spread = %v, want 35.5", cfg.Engine.Spread)
	}
	wantLots := []float64{0.1, 0.2, 0.3}
	if len(cfg.Engine.LotSizes) != len(wantLots) {
		t.Fatalf("Engine.LotSizes = %v, want %v", cfg.Engine.LotSizes, wantLots)
	}
	for i, v := range wantLots {
		if cfg.Engine.LotSizes[i] != v {
			t.Errorf("Engine.LotSizes[%d] = %v, want %v", i, cfg.Engine.LotSizes[i], v)
		}
	}
	if cfg.Engine.MaxPositions != 8 {
		t.Errorf("Engine.MaxPositions = %d, want 8", cfg.Engine.MaxPositions)
	}
	if cfg.Engine.HedgeEnabled {
		t.Error("Engine.HedgeEnabled = true, want false")
	}
	if cfg.Engine.OrderTimeout != 2*time.Second {
		t.Errorf("Engine.OrderTimeout = %v, want 2s", cfg.Engine.OrderTimeout)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadInvalidMaxPositions(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	os.Setenv("ENGINE_MAX_POSITIONS", "0")
	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error for non-positive ENGINE_MAX_POSITIONS")
	}
}

func TestLoadInvalidSpread(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	os.Setenv("ENGINE_SPREAD", "-1")
	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error for non-positive ENGINE_SPREAD")
	}
}

func TestLoadMalformedLotSizesFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	os.Setenv("ENGINE_LOT_SIZES", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Engine.LotSizes) != 5 {
		t.Errorf("Engine.LotSizes = %v, want fallback to 5 defaults", cfg.Engine.LotSizes)
	}
}
