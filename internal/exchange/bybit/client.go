package bybit

import (
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Client wraps the Bybit v5 API client. It implements exchange.Broker and
// exchange.Feed for the live engine and the reconciler.
type Client struct {
	httpClient *bybit_api.Client
	category   string
	interval   string
	testnet    bool
	demo       bool
}

// Config holds the Bybit client configuration.
type Config struct {
	APIKey    string
	APISecret string
	Category  string // "spot" or "linear", default spot
	Interval  string // kline interval, default "1" (1m)
	Testnet   bool
	Demo      bool // demo trading environment
}

// NewClient creates a Bybit client for the configured environment.
func NewClient(cfg Config) *Client {
	var baseURL string
	if cfg.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if cfg.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	category := cfg.Category
	if category == "" {
		category = "spot"
	}
	interval := cfg.Interval
	if interval == "" {
		interval = "1"
	}

	return &Client{
		httpClient: bybit_api.NewBybitHttpClient(
			cfg.APIKey,
			cfg.APISecret,
			bybit_api.WithBaseURL(baseURL),
		),
		category: category,
		interval: interval,
		testnet:  cfg.Testnet,
		demo:     cfg.Demo,
	}
}

// Environment describes which Bybit environment the client talks to.
func (c *Client) Environment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}

// PairToSymbol converts "BTC/USDT" to the Bybit symbol "BTCUSDT".
func PairToSymbol(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}

// SymbolToPair converts a Bybit symbol like "BTCUSDT" back to "BTC/USDT".
func SymbolToPair(symbol string) string {
	for _, quote := range []string{"USDT", "USDC", "USD", "BTC", "ETH"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return symbol[:len(symbol)-len(quote)] + "/" + quote
		}
	}
	return symbol
}

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
