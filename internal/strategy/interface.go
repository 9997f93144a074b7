package strategy

import (
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/regime"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

// Strategy is the capability set the engine requires from a signal source.
// The engine never inspects strategy internals; it only calls Analyze for
// entries and ShouldExit for optional strategy-owned exits.
type Strategy interface {
	// Name identifies the strategy in positions, trades, and logs.
	Name() string

	// Analyze inspects a candle window (oldest first) and returns an entry
	// signal, or nil when no entry condition is met.
	Analyze(candles []types.Candle) (*Signal, error)

	// ShouldExit lets a strategy close its own positions ahead of the risk
	// policy. Implementations without custom exit logic return nil.
	ShouldExit(pos *position.Position, candles []types.Candle, currentPrice float64) *ExitSignal
}

// RegimeAware is optionally implemented by strategies that condition their
// signals on market regime. The engine pushes the latest classification to
// implementers at the start of every tick.
type RegimeAware interface {
	ObserveRegime(pair string, r regime.Regime)
}
