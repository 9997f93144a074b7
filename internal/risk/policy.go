package risk

import (
	"fmt"
	"sync"

	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/strategy"
)

// Config holds the risk policy parameters. Configuration is explicit and
// passed in at construction, never read from globals.
type Config struct {
	MaxPositions       int     `json:"max_positions"`
	MaxPositionSizePct float64 `json:"max_position_size_pct"` // (0, 1]
	StopLossPct        float64 `json:"stop_loss_pct"`
	TakeProfitPct      float64 `json:"take_profit_pct"`
	TrailingStopPct    float64 `json:"trailing_stop_pct,omitempty"` // 0 disables
	MinSignalStrength  float64 `json:"min_signal_strength"`
	MaxDailyLossPct    float64 `json:"max_daily_loss_pct,omitempty"` // 0 disables
}

// DefaultConfig mirrors the defaults the bot shipped with.
func DefaultConfig() Config {
	return Config{
		MaxPositions:       3,
		MaxPositionSizePct: 0.1,
		StopLossPct:        0.02,
		TakeProfitPct:      0.05,
		TrailingStopPct:    0,
		MinSignalStrength:  0.5,
		MaxDailyLossPct:    0.05,
	}
}

// Policy evaluates admission, sizing, and exit rules. It is stateless except
// for the per-position trailing-stop watermarks.
type Policy struct {
	cfg Config

	mu sync.Mutex
	// Best price seen since entry, keyed by position ID. LONG tracks the
	// max, SHORT the min. Entries are cleared when the position closes so
	// stale IDs cannot leak.
	watermarks map[string]float64
}

// NewPolicy creates a risk policy from config.
func NewPolicy(cfg Config) *Policy {
	return &Policy{
		cfg:        cfg,
		watermarks: make(map[string]float64),
	}
}

// Config returns the active configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// CanOpen runs the admission rules in order; the first failure wins.
func (p *Policy) CanOpen(sig *strategy.Signal, openCount int, hasPositionForPair bool) (bool, string) {
	if hasPositionForPair {
		return false, fmt.Sprintf("already have open position for %s", sig.Pair)
	}
	if openCount >= p.cfg.MaxPositions {
		return false, fmt.Sprintf("max open positions (%d) reached", p.cfg.MaxPositions)
	}
	if sig.Strength < p.cfg.MinSignalStrength {
		return false, fmt.Sprintf("signal strength too weak (%.2f < %.2f)", sig.Strength, p.cfg.MinSignalStrength)
	}
	return true, "risk checks passed"
}

// CheckDailyLimit reports whether trading may continue given today's equity
// move. Evaluated by the engine before it looks for new entries.
func (p *Policy) CheckDailyLimit(accountValue, startOfDayEquity float64) (bool, string) {
	if p.cfg.MaxDailyLossPct <= 0 || startOfDayEquity <= 0 {
		return true, ""
	}
	lossPct := (startOfDayEquity - accountValue) / startOfDayEquity
	if lossPct >= p.cfg.MaxDailyLossPct {
		return false, fmt.Sprintf("daily loss limit hit: -%.2f%%", lossPct*100)
	}
	return true, ""
}

// SizePosition returns the quantity for a new entry. Pure function:
// quantity = accountValue * maxPositionSizePct / entryPrice.
func (p *Policy) SizePosition(accountValue, entryPrice float64) float64 {
	if entryPrice <= 0 || accountValue <= 0 {
		return 0
	}
	return accountValue * p.cfg.MaxPositionSizePct / entryPrice
}

// ObservePrice updates the trailing high-water mark for a position. Must be
// called every tick before ShouldClose so the retracement check sees the
// freshest extreme.
func (p *Policy) ObservePrice(pos *position.Position, currentPrice float64) {
	if p.cfg.TrailingStopPct <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mark, ok := p.watermarks[pos.ID]
	if !ok {
		p.watermarks[pos.ID] = currentPrice
		return
	}
	if pos.Direction == position.Long && currentPrice > mark {
		p.watermarks[pos.ID] = currentPrice
	}
	if pos.Direction == position.Short && currentPrice < mark {
		p.watermarks[pos.ID] = currentPrice
	}
}

// ClearPositionState drops the trailing watermark for a closed position.
func (p *Policy) ClearPositionState(positionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.watermarks, positionID)
}

// ShouldClose evaluates the exit rules in strict priority order:
//
//  1. per-signal stop-loss / take-profit price overrides,
//  2. trailing stop retracement from the high-water mark,
//  3. generic percentage stop-loss / take-profit against entry.
//
// All threshold comparisons are inclusive: a boundary price triggers the
// exit, it does not hold.
func (p *Policy) ShouldClose(pos *position.Position, currentPrice float64) (bool, string) {
	// Per-signal price overrides beat the generic percentage rules.
	if pos.StopLossPrice > 0 {
		if pos.Direction == position.Long && currentPrice <= pos.StopLossPrice {
			return true, fmt.Sprintf("stop loss hit at signal level %.2f", pos.StopLossPrice)
		}
		if pos.Direction == position.Short && currentPrice >= pos.StopLossPrice {
			return true, fmt.Sprintf("stop loss hit at signal level %.2f", pos.StopLossPrice)
		}
	}
	if pos.TakeProfitPrice > 0 {
		if pos.Direction == position.Long && currentPrice >= pos.TakeProfitPrice {
			return true, fmt.Sprintf("take profit hit at signal level %.2f", pos.TakeProfitPrice)
		}
		if pos.Direction == position.Short && currentPrice <= pos.TakeProfitPrice {
			return true, fmt.Sprintf("take profit hit at signal level %.2f", pos.TakeProfitPrice)
		}
	}

	if closed, reason := p.trailingStop(pos, currentPrice); closed {
		return true, reason
	}

	// A per-signal price replaces the matching generic rule entirely: a
	// wider-than-config stop must not be tightened back by the percentage.
	pnlPct, err := pos.UnrealizedPnLPct(currentPrice)
	if err != nil {
		return false, ""
	}
	if pos.StopLossPrice <= 0 && pnlPct <= -p.cfg.StopLossPct*100 {
		return true, fmt.Sprintf("stop loss hit: %.2f%%", pnlPct)
	}
	if pos.TakeProfitPrice <= 0 && pnlPct >= p.cfg.TakeProfitPct*100 {
		return true, fmt.Sprintf("take profit hit: %.2f%%", pnlPct)
	}

	return false, ""
}

func (p *Policy) trailingStop(pos *position.Position, currentPrice float64) (bool, string) {
	if p.cfg.TrailingStopPct <= 0 {
		return false, ""
	}

	p.mu.Lock()
	mark, ok := p.watermarks[pos.ID]
	p.mu.Unlock()
	if !ok {
		return false, ""
	}

	if pos.Direction == position.Long {
		trigger := mark * (1 - p.cfg.TrailingStopPct)
		if currentPrice <= trigger {
			return true, fmt.Sprintf("trailing stop hit: retraced %.2f%% from %.2f",
				p.cfg.TrailingStopPct*100, mark)
		}
		return false, ""
	}

	trigger := mark * (1 + p.cfg.TrailingStopPct)
	if currentPrice >= trigger {
		return true, fmt.Sprintf("trailing stop hit: retraced %.2f%% from %.2f",
			p.cfg.TrailingStopPct*100, mark)
	}
	return false, ""
}
