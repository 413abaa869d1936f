package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
feed:
  url: https://api.dexscreener.com/latest/dex/search
  interval_ms: 5000
ledger:
  rpc_url: https://api.mainnet-beta.solana.com
trading:
  private_key: "3yZe7d"
  sol_amount: 0.25
sniping:
  min_liquidity: 1000
  max_liquidity: 100000
  min_market_cap: 10000
  max_market_cap: 1000000
  min_price_change: 5
  min_token_age: 1
  min_buy_volume: 50
  min_sell_volume: 20
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Feed.Interval() != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", cfg.Feed.Interval())
	}
	if cfg.Feed.Query != "solana" {
		t.Errorf("Query default = %q, want solana", cfg.Feed.Query)
	}
	if cfg.Trading.SOLAmount != 0.25 {
		t.Errorf("SOLAmount = %v, want 0.25", cfg.Trading.SOLAmount)
	}
	if cfg.Trading.Workers != 4 {
		t.Errorf("Workers default = %d, want 4", cfg.Trading.Workers)
	}
	if cfg.Sniping.MinLiquidity != 1000 || cfg.Sniping.MaxLiquidity != 100000 {
		t.Errorf("liquidity bounds = %v..%v", cfg.Sniping.MinLiquidity, cfg.Sniping.MaxLiquidity)
	}
}

func TestLoad_MissingFeedURL(t *testing.T) {
	path := writeConfig(t, `
trading:
  dry_run: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing feed.url")
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	path := writeConfig(t, `
feed:
  url: https://example.com/feed
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing rpc_url/private_key")
	}
}

func TestLoad_DryRunSkipsCredentials(t *testing.T) {
	path := writeConfig(t, `
feed:
  url: https://example.com/feed
trading:
  dry_run: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Trading.DryRun {
		t.Error("DryRun not set")
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	t.Setenv("SNIPE_RPC_URL", "https://rpc.example.com")
	t.Setenv("SNIPE_PRIVATE_KEY", "4abc")

	path := writeConfig(t, `
feed:
  url: https://example.com/feed
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ledger.RPCURL != "https://rpc.example.com" {
		t.Errorf("RPCURL = %q", cfg.Ledger.RPCURL)
	}
	if cfg.Trading.PrivateKey != "4abc" {
		t.Errorf("PrivateKey = %q", cfg.Trading.PrivateKey)
	}
}

func TestLoad_InvertedBounds(t *testing.T) {
	path := writeConfig(t, `
feed:
  url: https://example.com/feed
trading:
  dry_run: true
sniping:
  min_liquidity: 5000
  max_liquidity: 100
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for min_liquidity > max_liquidity")
	}
}
