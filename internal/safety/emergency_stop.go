package safety

import (
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/logger"
	"github.com/stonkers/stonkers-bot/internal/position"
)

// StopConfig holds the trip thresholds for the emergency stop.
type StopConfig struct {
	MaxDailyLossPct      float64 `json:"max_daily_loss_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// DefaultStopConfig returns conservative trip thresholds.
func DefaultStopConfig() StopConfig {
	return StopConfig{
		MaxDailyLossPct:      0.05,
		MaxConsecutiveLosses: 5,
	}
}

// tradeHistory is the slice of storage the stop monitors.
type tradeHistory interface {
	TradesClosedSince(since time.Time) ([]*position.Trade, error)
	RecentTrades(limit int) ([]*position.Trade, error)
}

// positionBook is the slice of the registry the stop liquidates through.
type positionBook interface {
	AllOpen() map[string]*position.Position
	Close(pair string, exitPrice float64, reason string, fees float64) (*position.Position, error)
}

// streakScanLimit bounds the history read when counting the losing streak.
const streakScanLimit = 50

// EmergencyStop monitors realized trades and halts trading when losses
// exceed the configured thresholds. Tripping is terminal: the stop never
// resets within a process lifetime.
type EmergencyStop struct {
	cfg     StopConfig
	history tradeHistory
	book    positionBook
	log     *logger.Logger

	tripped    bool
	tripReason string
	trippedAt  time.Time
}

// NewEmergencyStop creates an armed (untripped) stop.
func NewEmergencyStop(cfg StopConfig, history tradeHistory, book positionBook, log *logger.Logger) *EmergencyStop {
	return &EmergencyStop{
		cfg:     cfg,
		history: history,
		book:    book,
		log:     log,
	}
}

// Tripped reports whether the stop has fired.
func (es *EmergencyStop) Tripped() bool {
	return es.tripped
}

// TripReason returns the reason the stop fired, or "" when armed.
func (es *EmergencyStop) TripReason() string {
	return es.tripReason
}

// Check evaluates both triggers against recorded trades and, on the first
// breach, trips the stop and force-liquidates every open position. Returns
// true when the stop is (or was already) tripped. dayStartEquity anchors
// the daily loss percentage.
func (es *EmergencyStop) Check(dayStartEquity float64) (bool, error) {
	if es.tripped {
		return true, nil
	}

	dailyLoss, err := es.dailyLossPct(dayStartEquity)
	if err != nil {
		return false, err
	}
	if es.cfg.MaxDailyLossPct > 0 && dailyLoss >= es.cfg.MaxDailyLossPct {
		return true, es.trip("daily loss limit breached")
	}

	streak, err := es.losingStreak()
	if err != nil {
		return false, err
	}
	if es.cfg.MaxConsecutiveLosses > 0 && streak >= es.cfg.MaxConsecutiveLosses {
		return true, es.trip("consecutive loss limit breached")
	}

	return false, nil
}

// dailyLossPct sums realized P&L for trades closed since UTC midnight and
// returns the loss as a positive fraction of day-start equity.
func (es *EmergencyStop) dailyLossPct(dayStartEquity float64) (float64, error) {
	if dayStartEquity <= 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	trades, err := es.history.TradesClosedSince(midnight)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryEmergency, "safety", "daily_loss")
	}

	var pnl float64
	for _, t := range trades {
		pnl += t.PnL
	}
	if pnl >= 0 {
		return 0, nil
	}
	return -pnl / dayStartEquity, nil
}

// losingStreak counts consecutive losing trades scanning most-recent-first,
// stopping at the first winner or break-even trade.
func (es *EmergencyStop) losingStreak() (int, error) {
	trades, err := es.history.RecentTrades(streakScanLimit)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryEmergency, "safety", "losing_streak")
	}

	streak := 0
	for _, t := range trades {
		if t.PnL >= 0 {
			break
		}
		streak++
	}
	return streak, nil
}

// trip fires the stop and force-liquidates every open position. Liquidation
// exits at the position's entry price: no live mark price is available on
// this path, so realized P&L on forced exits is an approximation.
func (es *EmergencyStop) trip(reason string) error {
	es.tripped = true
	es.tripReason = reason
	es.trippedAt = time.Now().UTC()

	if es.log != nil {
		es.log.Error("EMERGENCY STOP: %s, liquidating all open positions", reason)
	}

	var firstErr error
	for pair, p := range es.book.AllOpen() {
		closed, err := es.book.Close(pair, p.EntryPrice, "EMERGENCY STOP: "+reason, 0)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.Wrap(err, errors.CategoryEmergency, "safety", "liquidate "+pair)
			}
			if es.log != nil {
				es.log.LogError("emergency liquidation of "+pair, err)
			}
			continue
		}
		if es.log != nil {
			es.log.LogPositionClosed(closed.Pair, string(closed.Direction),
				closed.EntryPrice, closed.ExitPrice, 0, closed.ExitReason)
		}
	}
	return firstErr
}
