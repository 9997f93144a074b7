package position

import "time"

// Trade is the append-only record written exactly once when a position
// closes. It is derived state; the position row stays the source of truth
// for lifecycle queries.
type Trade struct {
	ID           string
	Pair         string
	StrategyName string
	Direction    Direction
	EntryPrice   float64
	ExitPrice    float64
	Quantity     float64
	EntryTime    time.Time
	ExitTime     time.Time
	PnL          float64
	Fees         float64
	ExitReason   string
}

// TradeFromClosed builds the trade record for a closed position. Fees are
// passed in by the caller because only the execution path knows the
// commission schedule.
func TradeFromClosed(p *Position, fees float64) (*Trade, error) {
	pnl, err := p.RealizedPnL()
	if err != nil {
		return nil, err
	}
	return &Trade{
		ID:           p.ID,
		Pair:         p.Pair,
		StrategyName: p.StrategyName,
		Direction:    p.Direction,
		EntryPrice:   p.EntryPrice,
		ExitPrice:    p.ExitPrice,
		Quantity:     p.Quantity,
		EntryTime:    p.EntryTime,
		ExitTime:     p.ExitTime,
		PnL:          pnl - fees,
		Fees:         fees,
		ExitReason:   p.ExitReason,
	}, nil
}
