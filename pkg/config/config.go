// Package config loads the bot configuration from a JSON file with
// environment-variable overrides for secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stonkers/stonkers-bot/internal/engine"
	"github.com/stonkers/stonkers-bot/internal/exchange/bybit"
	"github.com/stonkers/stonkers-bot/internal/risk"
	"github.com/stonkers/stonkers-bot/internal/safety"
	"github.com/stonkers/stonkers-bot/internal/strategy"
)

// Mode selects the execution adapter.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Config is the full bot configuration.
type Config struct {
	Mode           string   `json:"mode"`
	Pairs          []string `json:"pairs"`
	InitialBalance float64  `json:"initial_balance"`
	DatabaseDSN    string   `json:"database_dsn"`

	TickIntervalSeconds int `json:"tick_interval_seconds"`

	Engine     engine.Config     `json:"engine"`
	Risk       risk.Config       `json:"risk"`
	Stop       safety.StopConfig `json:"emergency_stop"`
	Strategies []strategy.Config `json:"strategies"`

	Exchange struct {
		APIKey    string `json:"-"`
		APISecret string `json:"-"`
		Category  string `json:"category"`
		Interval  string `json:"interval"`
		Testnet   bool   `json:"testnet"`
		Demo      bool   `json:"demo"`
	} `json:"exchange"`

	Monitoring struct {
		PrometheusPort int `json:"prometheus_port"`
		HealthPort     int `json:"health_port"`
	} `json:"monitoring"`
}

// Load reads the config file, applies defaults, and overlays secrets from
// the environment. Bare names resolve under configs/ with a .json suffix.
func Load(configFile string) (*Config, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if !strings.HasSuffix(configFile, ".json") {
		configFile += ".json"
	}

	raw, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	cfg := &Config{
		Mode:                ModePaper,
		InitialBalance:      10000,
		TickIntervalSeconds: 60,
		Engine:              engine.DefaultConfig(),
		Risk:                risk.DefaultConfig(),
		Stop:                safety.DefaultStopConfig(),
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
	}

	cfg.Engine.Pairs = cfg.Pairs
	cfg.Engine.TickInterval = time.Duration(cfg.TickIntervalSeconds) * time.Second

	// Secrets never live in the config file.
	cfg.Exchange.APIKey = os.Getenv("BYBIT_API_KEY")
	cfg.Exchange.APISecret = os.Getenv("BYBIT_API_SECRET")
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DatabaseDSN = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Mode != ModePaper && c.Mode != ModeLive {
		return fmt.Errorf("mode must be %q or %q, got %q", ModePaper, ModeLive, c.Mode)
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}
	for _, pair := range c.Pairs {
		if !strings.Contains(pair, "/") {
			return fmt.Errorf("pair %q must be in BASE/QUOTE form", pair)
		}
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("initial_balance must be positive, got %.2f", c.InitialBalance)
	}
	if c.TickIntervalSeconds <= 0 {
		return fmt.Errorf("tick_interval_seconds must be positive, got %d", c.TickIntervalSeconds)
	}
	if c.Engine.SlippagePct < 0 || c.Engine.CommissionPct < 0 {
		return fmt.Errorf("slippage and commission must be non-negative")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	if c.Mode == ModeLive && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("live mode requires BYBIT_API_KEY and BYBIT_API_SECRET")
	}
	return nil
}

// BybitConfig assembles the exchange client configuration.
func (c *Config) BybitConfig() bybit.Config {
	return bybit.Config{
		APIKey:    c.Exchange.APIKey,
		APISecret: c.Exchange.APISecret,
		Category:  c.Exchange.Category,
		Interval:  c.Exchange.Interval,
		Testnet:   c.Exchange.Testnet,
		Demo:      c.Exchange.Demo,
	}
}

// BuildStrategies constructs the enabled strategies in configured order.
func (c *Config) BuildStrategies() ([]strategy.Strategy, error) {
	return strategy.BuildAll(c.Strategies)
}
