// Package trader contains the execution adapters. The engine is agnostic to
// which adapter is active: paper mode simulates fills against the durable
// cash/equity ledger, live mode delegates to the broker and mirrors its
// fills locally.
package trader

import (
	"context"

	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/strategy"
)

// Adapter fills orders and owns the account view. Paper mode owns the
// cash/equity ledger outright; live mode proxies the broker's numbers.
type Adapter interface {
	GetAccountValue(ctx context.Context) (float64, error)
	GetCashBalance(ctx context.Context) (float64, error)

	// ExecuteEntry fills an entry at the given price and returns the new
	// OPEN position. Entries are all-or-nothing, never partially filled.
	ExecuteEntry(ctx context.Context, sig *strategy.Signal, price, qty float64) (*position.Position, error)

	// ExecuteExit fills the closing leg for an open position. The caller
	// remains responsible for the registry close transition.
	ExecuteExit(ctx context.Context, pos *position.Position, price float64) error

	// UpdateEquity marks the account to market with the summed unrealized
	// P&L of open positions.
	UpdateEquity(ctx context.Context, unrealizedPnL float64) error
}

func directionFor(sig *strategy.Signal) position.Direction {
	if sig.IsLong() {
		return position.Long
	}
	return position.Short
}
