package strategy

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/stonkers/stonkers-bot/internal/indicators"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/regime"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

func init() {
	Register("rsi_reversal", func(params map[string]float64) (Strategy, error) {
		s := NewRSIReversal()
		if v, ok := params["period"]; ok {
			s.period = int(v)
		}
		if v, ok := params["oversold"]; ok {
			s.oversold = v
		}
		if v, ok := params["overbought"]; ok {
			s.overbought = v
		}
		if s.period <= 1 || s.oversold >= s.overbought {
			return nil, fmt.Errorf("rsi_reversal: need period > 1 and oversold < overbought, got %d/%.0f/%.0f",
				s.period, s.oversold, s.overbought)
		}
		return s, nil
	})
}

// RSIReversal is a mean-reversion strategy: it buys oversold dips and exits
// once RSI recovers into overbought territory. It only trades ranging
// markets; reversal entries in a strong downtrend are catching knives.
type RSIReversal struct {
	period     int
	oversold   float64
	overbought float64

	mu      sync.RWMutex
	regimes map[string]regime.Regime
}

// NewRSIReversal creates the strategy with the standard 14-period RSI.
func NewRSIReversal() *RSIReversal {
	return &RSIReversal{
		period:     14,
		oversold:   30,
		overbought: 70,
		regimes:    make(map[string]regime.Regime),
	}
}

func (s *RSIReversal) Name() string {
	return "rsi_reversal"
}

// ObserveRegime caches the latest regime classification for a pair.
func (s *RSIReversal) ObserveRegime(pair string, r regime.Regime) {
	s.mu.Lock()
	s.regimes[pair] = r
	s.mu.Unlock()
}

func (s *RSIReversal) currentRegime(pair string) regime.Regime {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.regimes[pair]; ok {
		return r
	}
	return regime.Regime{Type: regime.Unknown}
}

// Analyze signals a LONG entry when RSI drops below the oversold floor in a
// ranging market. Strength scales with how deep the oversold reading is.
func (s *RSIReversal) Analyze(candles []types.Candle) (*Signal, error) {
	if len(candles) < s.period+1 {
		return nil, nil
	}
	last := candles[len(candles)-1]

	if r := s.currentRegime(last.Pair); r.Type == regime.TrendingDown {
		return nil, nil
	}

	rsi, err := indicators.RSI(candles, s.period)
	if err != nil {
		return nil, nil
	}
	if rsi >= s.oversold {
		return nil, nil
	}

	strength := math.Min((s.oversold-rsi)/s.oversold, 1.0)
	return &Signal{
		ID:           "sig_" + uuid.New().String()[:8],
		Pair:         last.Pair,
		Type:         EntryLong,
		Strength:     strength,
		StrategyName: s.Name(),
		Reasoning:    fmt.Sprintf("RSI %.1f below oversold threshold %.0f", rsi, s.oversold),
		Timestamp:    last.Timestamp,
		Indicators: map[string]float64{
			"rsi": rsi,
		},
	}, nil
}

// ShouldExit closes the position once RSI recovers into overbought
// territory. Stop-loss and trailing exits stay with the risk policy.
func (s *RSIReversal) ShouldExit(pos *position.Position, candles []types.Candle, currentPrice float64) *ExitSignal {
	if len(candles) < s.period+1 {
		return nil
	}

	rsi, err := indicators.RSI(candles, s.period)
	if err != nil {
		return nil
	}
	if rsi >= s.overbought {
		return &ExitSignal{
			Reason:       fmt.Sprintf("RSI %.1f recovered above %.0f", rsi, s.overbought),
			StrategyName: s.Name(),
		}
	}
	return nil
}
