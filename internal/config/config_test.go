package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	// Side-effect imports: register providers referenced from test fixtures.
	_ "daytrader-api/pkg/market/sim"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func Test_Load_fullConfig(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "market.yaml"), `
default: sim
providers:
  sim:
    type: sim
    seed: 42
    timeout: 3s
    symbols: [PETR4, VALE3]
`)
	writeFile(t, filepath.Join(dir, "strategy.yaml"), `
enabled: [momentum]
universe: [PETR4, VALE3]
momentum:
  min_return: 0.005
  notional_brl: 5000
`)
	writeFile(t, filepath.Join(dir, "trader.yaml"), `
Name: daytrader
Env: dev
Symbols: [petr4, vale3]
Session:
  Interval: 120s
  CutoffHour: 14
Market:
  File: market.yaml
Strategy:
  File: strategy.yaml
`)

	cfg, err := Load(filepath.Join(dir, "trader.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Env != "dev" {
		t.Fatalf("Env got %q", cfg.Env)
	}
	if got := cfg.Symbols; len(got) != 2 || got[0] != "PETR4" || got[1] != "VALE3" {
		t.Fatalf("Symbols not normalised, got %v", got)
	}
	if cfg.Session.Interval != 2*time.Minute {
		t.Fatalf("Session.Interval got %s", cfg.Session.Interval)
	}
	if cfg.Session.CutoffHour != 14 {
		t.Fatalf("Session.CutoffHour got %d", cfg.Session.CutoffHour)
	}

	if cfg.Market.Value == nil {
		t.Fatalf("market section not hydrated")
	}
	if cfg.Market.Value.Default != "sim" {
		t.Fatalf("market default got %q", cfg.Market.Value.Default)
	}
	if p := cfg.Market.Value.Providers["sim"]; p == nil || p.Timeout != 3*time.Second {
		t.Fatalf("sim provider timeout not parsed: %+v", p)
	}

	if cfg.Strategy.Value == nil {
		t.Fatalf("strategy section not hydrated")
	}
	if got := cfg.Strategy.Value.Momentum.NotionalBRL; got != 5000 {
		t.Fatalf("momentum notional got %v", got)
	}

	if cfg.BaseDir() != dir {
		t.Fatalf("BaseDir got %q want %q", cfg.BaseDir(), dir)
	}
}

func Test_Load_defaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "trader.yaml"), `
Name: daytrader
`)

	cfg, err := Load(filepath.Join(dir, "trader.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsTestEnv() {
		t.Fatalf("expected test env by default, got %q", cfg.Env)
	}
	if len(cfg.Symbols) == 0 {
		t.Fatalf("expected default symbol universe")
	}
	if cfg.TTL.Short <= 0 || cfg.TTL.Medium <= 0 || cfg.TTL.Long <= 0 {
		t.Fatalf("TTL defaults not applied: %+v", cfg.TTL)
	}
	if cfg.Market.Value != nil {
		t.Fatalf("market section should stay empty without a file")
	}
}

func Test_Load_rejectsBadEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "trader.yaml"), `
Name: daytrader
Env: staging
`)

	_, err := Load(filepath.Join(dir, "trader.yaml"))
	if err == nil || !strings.Contains(err.Error(), "env must be one of") {
		t.Fatalf("expected env validation error, got %v", err)
	}
}

func Test_Load_rejectsBrokenSection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "trader.yaml"), `
Name: daytrader
Market:
  File: missing.yaml
`)

	_, err := Load(filepath.Join(dir, "trader.yaml"))
	if err == nil || !strings.Contains(err.Error(), "load market config") {
		t.Fatalf("expected section hydration error, got %v", err)
	}
}

func Test_envExpansion(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "market.yaml"), `
default: sim
providers:
  sim:
    type: sim
    timeout: ${MKT_TIMEOUT}
`)
	writeFile(t, filepath.Join(dir, "trader.yaml"), `
Name: daytrader
Postgres:
  DSN: ${DAYTRADER_DSN}
Market:
  File: market.yaml
`)

	t.Setenv("MKT_TIMEOUT", "7s")
	t.Setenv("DAYTRADER_DSN", "postgres://test@localhost:5432/daytrader")

	cfg, err := Load(filepath.Join(dir, "trader.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://test@localhost:5432/daytrader" {
		t.Fatalf("DSN not expanded, got %q", cfg.Postgres.DSN)
	}
	if p := cfg.Market.Value.Providers["sim"]; p == nil || p.Timeout != 7*time.Second {
		t.Fatalf("market timeout not expanded, got %+v", p)
	}
}
