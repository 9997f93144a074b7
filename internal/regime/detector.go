// Package regime classifies the current market state per pair so strategy
// collaborators can condition their entries on it. Classification is a pure
// read over candle data; it never touches position or risk state.
package regime

import (
	"math"
	"sync"

	"github.com/stonkers/stonkers-bot/internal/indicators"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

// Type is the market regime classification.
type Type string

const (
	TrendingUp   Type = "TRENDING_UP"
	TrendingDown Type = "TRENDING_DOWN"
	Ranging      Type = "RANGING"
	Unknown      Type = "UNKNOWN"
)

// Regime is one classification with its confidence in [0,1].
type Regime struct {
	Type       Type
	Confidence float64
}

// Detector classifies regimes from EMA separation and normalized volatility
// and caches the latest result per pair.
type Detector struct {
	fastPeriod     int
	slowPeriod     int
	atrPeriod      int
	trendThreshold float64 // min EMA separation as a fraction of price

	mu    sync.RWMutex
	cache map[string]Regime
}

// NewDetector creates a detector with the standard 20/50 EMA pair.
func NewDetector() *Detector {
	return &Detector{
		fastPeriod:     20,
		slowPeriod:     50,
		atrPeriod:      14,
		trendThreshold: 0.005,
		cache:          make(map[string]Regime),
	}
}

// Refresh classifies the pair from its candle window and caches the result.
// Windows too short to classify yield Unknown.
func (d *Detector) Refresh(pair string, candles []types.Candle) Regime {
	r := d.classify(candles)

	d.mu.Lock()
	d.cache[pair] = r
	d.mu.Unlock()
	return r
}

// Current returns the cached regime for the pair, Unknown if never refreshed.
func (d *Detector) Current(pair string) Regime {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if r, ok := d.cache[pair]; ok {
		return r
	}
	return Regime{Type: Unknown}
}

func (d *Detector) classify(candles []types.Candle) Regime {
	fast, err := indicators.EMA(candles, d.fastPeriod)
	if err != nil {
		return Regime{Type: Unknown}
	}
	slow, err := indicators.EMA(candles, d.slowPeriod)
	if err != nil {
		return Regime{Type: Unknown}
	}

	last := candles[len(candles)-1].Close
	if last <= 0 {
		return Regime{Type: Unknown}
	}

	separation := (fast - slow) / last
	confidence := math.Min(math.Abs(separation)/(d.trendThreshold*4), 1.0)

	switch {
	case separation >= d.trendThreshold:
		return Regime{Type: TrendingUp, Confidence: confidence}
	case separation <= -d.trendThreshold:
		return Regime{Type: TrendingDown, Confidence: confidence}
	default:
		return Regime{Type: Ranging, Confidence: 1 - confidence}
	}
}
