package position

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stonkers/stonkers-bot/internal/errors"
)

// Status is the lifecycle state of a position. OPEN is initial, CLOSED is
// terminal; there is no other transition.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Direction is the trade direction.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Position is a tracked trade with explicit lifecycle. Entry times are
// captured at actual execution, not from the originating signal. Closed
// values are produced by Close; exit fields are never mutated in place.
type Position struct {
	ID           string
	Pair         string
	Direction    Direction
	EntryPrice   float64
	Quantity     float64
	EntryTime    time.Time
	StrategyName string
	Status       Status
	ExitPrice    float64
	ExitTime     time.Time
	ExitReason   string

	// Optional per-signal overrides. Zero means no override.
	StopLossPrice   float64
	TakeProfitPrice float64

	// Back-reference to the originating signal, if any.
	SignalID string
}

// NewID returns a fresh position identifier.
func NewID() string {
	return "pos_" + uuid.New().String()[:8]
}

// ExternalID returns an identifier for positions adopted from the broker.
func ExternalID() string {
	return "ext_" + uuid.New().String()[:8]
}

// Validate checks the position invariants:
// OPEN positions have no exit fields, CLOSED positions have both and
// exit time >= entry time, and all prices and the quantity are positive.
func (p *Position) Validate() error {
	if p.Pair == "" {
		return errors.NewInvariant("position", "validate", "pair is required")
	}
	if p.Direction != Long && p.Direction != Short {
		return errors.NewInvariant("position", "validate", fmt.Sprintf("invalid direction %q", p.Direction))
	}
	if p.EntryPrice <= 0 {
		return errors.NewInvariant("position", "validate", "entry price must be positive")
	}
	if p.Quantity <= 0 {
		return errors.NewInvariant("position", "validate", "quantity must be positive")
	}
	if p.EntryTime.IsZero() {
		return errors.NewInvariant("position", "validate", "entry time is required")
	}
	if p.StopLossPrice < 0 || p.TakeProfitPrice < 0 {
		return errors.NewInvariant("position", "validate", "stop/take-profit overrides must be positive")
	}

	switch p.Status {
	case StatusOpen:
		if p.ExitPrice != 0 || !p.ExitTime.IsZero() {
			return errors.NewInvariant("position", "validate", "open position cannot have exit fields")
		}
	case StatusClosed:
		if p.ExitPrice <= 0 || p.ExitTime.IsZero() {
			return errors.NewInvariant("position", "validate", "closed position must have exit price and time")
		}
		if p.ExitTime.Before(p.EntryTime) {
			return errors.NewInvariant("position", "validate", "exit time cannot be before entry time")
		}
	default:
		return errors.NewInvariant("position", "validate", fmt.Sprintf("unknown status %q", p.Status))
	}

	return nil
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Close returns a new CLOSED copy of the position. The receiver is left
// unchanged. Closing twice is an invariant violation, not a no-op; callers
// must guard with a registry lookup.
func (p *Position) Close(exitPrice float64, reason string, at time.Time) (*Position, error) {
	if p.Status == StatusClosed {
		return nil, errors.NewInvariant("position", "close",
			fmt.Sprintf("position %s is already closed", p.ID))
	}
	if exitPrice <= 0 {
		return nil, errors.NewInvariant("position", "close", "exit price must be positive")
	}
	if at.Before(p.EntryTime) {
		at = p.EntryTime
	}

	closed := *p
	closed.Status = StatusClosed
	closed.ExitPrice = exitPrice
	closed.ExitTime = at
	closed.ExitReason = reason
	return &closed, nil
}

// UnrealizedPnL returns the mark-to-market P&L of an open position at the
// given price.
func (p *Position) UnrealizedPnL(currentPrice float64) (float64, error) {
	if p.Status == StatusClosed {
		return 0, errors.NewInvariant("position", "unrealized_pnl",
			"cannot compute unrealized P&L for closed position")
	}
	if p.Direction == Long {
		return (currentPrice - p.EntryPrice) * p.Quantity, nil
	}
	return (p.EntryPrice - currentPrice) * p.Quantity, nil
}

// UnrealizedPnLPct returns the unrealized P&L as a percentage of the entry
// notional.
func (p *Position) UnrealizedPnLPct(currentPrice float64) (float64, error) {
	pnl, err := p.UnrealizedPnL(currentPrice)
	if err != nil {
		return 0, err
	}
	return pnl / (p.EntryPrice * p.Quantity) * 100, nil
}

// RealizedPnL returns the realized P&L of a closed position.
func (p *Position) RealizedPnL() (float64, error) {
	if p.Status != StatusClosed {
		return 0, errors.NewInvariant("position", "realized_pnl",
			"cannot compute realized P&L for open position")
	}
	if p.Direction == Long {
		return (p.ExitPrice - p.EntryPrice) * p.Quantity, nil
	}
	return (p.EntryPrice - p.ExitPrice) * p.Quantity, nil
}

// Notional returns the entry notional value of the position.
func (p *Position) Notional() float64 {
	return p.EntryPrice * p.Quantity
}

// Duration returns how long a closed position was held.
func (p *Position) Duration() (time.Duration, error) {
	if p.Status != StatusClosed {
		return 0, errors.NewInvariant("position", "duration",
			"cannot compute duration for open position")
	}
	return p.ExitTime.Sub(p.EntryTime), nil
}
