package strategy

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/stonkers/stonkers-bot/internal/indicators"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

func init() {
	Register("sma_momentum", func(params map[string]float64) (Strategy, error) {
		s := NewSMAMomentum()
		if v, ok := params["fast_period"]; ok {
			s.fastPeriod = int(v)
		}
		if v, ok := params["slow_period"]; ok {
			s.slowPeriod = int(v)
		}
		if v, ok := params["min_strength"]; ok {
			s.minStrength = v
		}
		if s.fastPeriod <= 0 || s.slowPeriod <= s.fastPeriod {
			return nil, fmt.Errorf("sma_momentum: need 0 < fast_period < slow_period, got %d/%d",
				s.fastPeriod, s.slowPeriod)
		}
		return s, nil
	})
}

// SMAMomentum is a minimal moving-average momentum strategy. It exists so the
// engine ships with one working signal source; anything implementing Strategy
// plugs in the same way.
type SMAMomentum struct {
	fastPeriod  int
	slowPeriod  int
	minStrength float64
}

// NewSMAMomentum creates the strategy with default periods.
func NewSMAMomentum() *SMAMomentum {
	return &SMAMomentum{
		fastPeriod:  10,
		slowPeriod:  30,
		minStrength: 0.3,
	}
}

func (s *SMAMomentum) Name() string {
	return "sma_momentum"
}

// Analyze signals a LONG entry when the fast SMA sits above the slow SMA and
// the spread between them is wide enough to clear the strength floor.
func (s *SMAMomentum) Analyze(candles []types.Candle) (*Signal, error) {
	if len(candles) < s.slowPeriod+1 {
		return nil, nil
	}

	fast, err := indicators.SMA(candles, s.fastPeriod)
	if err != nil {
		return nil, nil
	}
	slow, err := indicators.SMA(candles, s.slowPeriod)
	if err != nil {
		return nil, nil
	}
	last := candles[len(candles)-1]

	if fast <= slow {
		return nil, nil
	}

	// Spread as a fraction of price, saturated at 2% for full strength.
	spread := (fast - slow) / slow
	strength := math.Min(spread/0.02, 1.0)
	if strength < s.minStrength {
		return nil, nil
	}

	return &Signal{
		ID:           "sig_" + uuid.New().String()[:8],
		Pair:         last.Pair,
		Type:         EntryLong,
		Strength:     strength,
		StrategyName: s.Name(),
		Reasoning: fmt.Sprintf("fast SMA %.2f above slow SMA %.2f (spread %.2f%%)",
			fast, slow, spread*100),
		Timestamp: last.Timestamp,
		Indicators: map[string]float64{
			"sma_fast": fast,
			"sma_slow": slow,
		},
	}, nil
}

// ShouldExit defers to the risk policy; momentum positions have no custom
// exit logic.
func (s *SMAMomentum) ShouldExit(pos *position.Position, candles []types.Candle, currentPrice float64) *ExitSignal {
	return nil
}
