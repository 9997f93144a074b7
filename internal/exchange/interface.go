package exchange

import (
	"context"
	"time"

	"github.com/stonkers/stonkers-bot/pkg/types"
)

// OrderSide is the direction of a market order.
type OrderSide string

const (
	SideBuy  OrderSide = "Buy"
	SideSell OrderSide = "Sell"
)

// Account is the broker-reported cash and equity.
type Account struct {
	Cash   float64
	Equity float64
}

// BrokerPosition is an open position as the broker reports it.
type BrokerPosition struct {
	Pair          string
	Quantity      float64
	Side          string // "long" or "short"
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
}

// Order is the fill confirmation for a placed market order.
type Order struct {
	OrderID   string
	Pair      string
	Side      OrderSide
	Quantity  float64
	AvgPrice  float64
	CreatedAt time.Time
}

// Broker is the trading contract the live execution adapter and the
// reconciler consume. Read methods may be retried with backoff by callers;
// PlaceMarketOrder and ClosePosition must not be, because a retried market
// order risks a double fill.
type Broker interface {
	GetAccount(ctx context.Context) (*Account, error)
	GetOpenPositions(ctx context.Context) ([]BrokerPosition, error)
	PlaceMarketOrder(ctx context.Context, pair string, qty float64, side OrderSide) (*Order, error)
	ClosePosition(ctx context.Context, pair string) (bool, error)
}

// Feed supplies recent candle windows per pair, oldest first with strictly
// increasing timestamps.
type Feed interface {
	FetchRecentCandles(ctx context.Context, pairs []string, limit int) (map[string][]types.Candle, error)
}
