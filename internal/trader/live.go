package trader

import (
	"context"
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/exchange"
	"github.com/stonkers/stonkers-bot/internal/logger"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/strategy"
)

// LiveTrader executes real orders through the broker. After a successful
// fill it reconstructs a local position mirror from the fill itself, so the
// rest of the engine never needs to know which adapter is active.
type LiveTrader struct {
	broker exchange.Broker
	log    *logger.Logger
}

// NewLiveTrader creates the live adapter.
func NewLiveTrader(broker exchange.Broker, log *logger.Logger) *LiveTrader {
	log.Warning("LIVE TRADING MODE ENABLED - real orders will be placed")
	return &LiveTrader{broker: broker, log: log}
}

// GetAccountValue returns broker-reported equity.
func (t *LiveTrader) GetAccountValue(ctx context.Context) (float64, error) {
	account, err := t.broker.GetAccount(ctx)
	if err != nil {
		return 0, errors.NewBroker("live_trader", "get_account", err)
	}
	return account.Equity, nil
}

// GetCashBalance returns broker-reported free cash.
func (t *LiveTrader) GetCashBalance(ctx context.Context) (float64, error) {
	account, err := t.broker.GetAccount(ctx)
	if err != nil {
		return 0, errors.NewBroker("live_trader", "get_cash", err)
	}
	return account.Cash, nil
}

// ExecuteEntry places a market order and mirrors the fill as a local
// position. Entry price and time come from the fill, not from the signal.
func (t *LiveTrader) ExecuteEntry(ctx context.Context, sig *strategy.Signal, price, qty float64) (*position.Position, error) {
	side := exchange.SideBuy
	if !sig.IsLong() {
		side = exchange.SideSell
	}

	t.log.Trade("placing live order: %s %.6f %s @ ~%.2f", side, qty, sig.Pair, price)

	order, err := t.broker.PlaceMarketOrder(ctx, sig.Pair, qty, side)
	if err != nil {
		return nil, errors.NewBroker("live_trader", "place_entry", err)
	}
	if order == nil {
		return nil, errors.New(errors.CategoryBroker, "live_trader", "place_entry", "broker returned no order")
	}

	fillPrice := order.AvgPrice
	if fillPrice <= 0 {
		fillPrice = price
	}
	fillQty := order.Quantity
	if fillQty <= 0 {
		fillQty = qty
	}
	fillTime := order.CreatedAt
	if fillTime.IsZero() {
		fillTime = time.Now().UTC()
	}

	pos := &position.Position{
		ID:              position.NewID(),
		Pair:            sig.Pair,
		Direction:       directionFor(sig),
		EntryPrice:      fillPrice,
		Quantity:        fillQty,
		EntryTime:       fillTime,
		StrategyName:    sig.StrategyName,
		Status:          position.StatusOpen,
		StopLossPrice:   sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
		SignalID:        sig.ID,
	}
	if err := pos.Validate(); err != nil {
		return nil, err
	}

	t.log.Trade("order %s filled: %s %.6f @ %.2f", order.OrderID, sig.Pair, fillQty, fillPrice)
	return pos, nil
}

// ExecuteExit closes the broker position with the opposing market order.
func (t *LiveTrader) ExecuteExit(ctx context.Context, pos *position.Position, price float64) error {
	side := exchange.SideSell
	if pos.Direction == position.Short {
		side = exchange.SideBuy
	}

	t.log.Trade("closing live position: %s %.6f %s @ ~%.2f", side, pos.Quantity, pos.Pair, price)

	order, err := t.broker.PlaceMarketOrder(ctx, pos.Pair, pos.Quantity, side)
	if err != nil {
		return errors.NewBroker("live_trader", "place_exit", err)
	}
	if order == nil {
		return errors.New(errors.CategoryBroker, "live_trader", "place_exit", "broker returned no order")
	}

	t.log.Trade("close order %s accepted for %s", order.OrderID, pos.Pair)
	return nil
}

// UpdateEquity is a no-op in live mode; the broker tracks equity itself.
func (t *LiveTrader) UpdateEquity(ctx context.Context, unrealizedPnL float64) error {
	return nil
}
