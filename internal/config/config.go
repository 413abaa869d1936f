// Package config loads the process configuration from a YAML file with
// environment variable fallbacks for credentials. Configuration is read
// once at startup and treated as immutable afterwards.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level structure of the application configuration.
type Config struct {
	Feed    FeedConfig   `yaml:"feed"`
	Ledger  LedgerConfig `yaml:"ledger"`
	Trading Trading      `yaml:"trading"`
	Sniping Thresholds   `yaml:"sniping"`
}

// FeedConfig holds the market data feed configuration.
type FeedConfig struct {
	URL        string `yaml:"url"`
	Query      string `yaml:"query"`
	IntervalMS int    `yaml:"interval_ms"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

// Interval returns the polling interval, defaulting to 5s.
func (f FeedConfig) Interval() time.Duration {
	if f.IntervalMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(f.IntervalMS) * time.Millisecond
}

// Timeout returns the per-fetch timeout, defaulting to 10s.
func (f FeedConfig) Timeout() time.Duration {
	if f.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(f.TimeoutMS) * time.Millisecond
}

// LedgerConfig holds the ledger client endpoints.
type LedgerConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	WSURL      string `yaml:"ws_url"`
	SwapAPIURL string `yaml:"swap_api_url"`
}

// Trading holds execution-side parameters.
type Trading struct {
	PrivateKey    string  `yaml:"private_key"` // base58, 32-byte seed or 64-byte key
	SOLAmount     float64 `yaml:"sol_amount"`  // position size in SOL
	Workers       int     `yaml:"workers"`     // dispatcher worker pool size
	QueueCapacity int     `yaml:"queue_capacity"`
	DryRun        bool    `yaml:"dry_run"` // paper execution, no transactions sent

	TakeProfitPct float64 `yaml:"take_profit_pct"` // exit when price gain >= pct
	StopLossPct   float64 `yaml:"stop_loss_pct"`   // exit when price loss >= pct
}

// Thresholds holds the candidate filtering parameters.
// All min/max bounds are inclusive.
type Thresholds struct {
	MinLiquidity   float64 `yaml:"min_liquidity"`
	MaxLiquidity   float64 `yaml:"max_liquidity"`
	MinMarketCap   float64 `yaml:"min_market_cap"`
	MaxMarketCap   float64 `yaml:"max_market_cap"`
	MinPriceChange float64 `yaml:"min_price_change"`
	MinTokenAge    float64 `yaml:"min_token_age"` // hours
	MinBuyVolume   float64 `yaml:"min_buy_volume"`
	MinSellVolume  float64 `yaml:"min_sell_volume"`
	MaxSlippagePct float64 `yaml:"max_slippage_pct"`
}

// Load reads a YAML configuration file, applies environment fallbacks and
// defaults, and validates required fields. Any missing required field is an
// error; the caller must treat it as fatal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv fills credentials and endpoints from the environment when the
// file leaves them empty. Keeps secrets out of the config file.
func (c *Config) applyEnv() {
	if c.Trading.PrivateKey == "" {
		c.Trading.PrivateKey = os.Getenv("SNIPE_PRIVATE_KEY")
	}
	if c.Ledger.RPCURL == "" {
		c.Ledger.RPCURL = os.Getenv("SNIPE_RPC_URL")
	}
	if c.Ledger.WSURL == "" {
		c.Ledger.WSURL = os.Getenv("SNIPE_WS_URL")
	}
}

func (c *Config) applyDefaults() {
	if c.Feed.Query == "" {
		c.Feed.Query = "solana"
	}
	if c.Trading.SOLAmount <= 0 {
		c.Trading.SOLAmount = 0.5
	}
	if c.Trading.Workers <= 0 {
		c.Trading.Workers = 4
	}
	if c.Trading.QueueCapacity <= 0 {
		c.Trading.QueueCapacity = 256
	}
}

// Validate checks that all required fields are present.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("config: feed.url is required")
	}
	if !c.Trading.DryRun {
		if c.Ledger.RPCURL == "" {
			return fmt.Errorf("config: ledger.rpc_url is required (or set SNIPE_RPC_URL)")
		}
		if c.Trading.PrivateKey == "" {
			return fmt.Errorf("config: trading.private_key is required (or set SNIPE_PRIVATE_KEY)")
		}
	}
	if c.Sniping.MaxLiquidity > 0 && c.Sniping.MinLiquidity > c.Sniping.MaxLiquidity {
		return fmt.Errorf("config: sniping.min_liquidity exceeds max_liquidity")
	}
	if c.Sniping.MaxMarketCap > 0 && c.Sniping.MinMarketCap > c.Sniping.MaxMarketCap {
		return fmt.Errorf("config: sniping.min_market_cap exceeds max_market_cap")
	}
	return nil
}
