// Package indicators provides the technical calculations shared by the
// strategies and the regime detector. All functions take a candle window
// ordered oldest first and operate on closing prices unless noted.
package indicators

import (
	"errors"
	"math"

	"github.com/stonkers/stonkers-bot/pkg/types"
)

// ErrInsufficientData is returned when the candle window is shorter than
// the indicator's period.
var ErrInsufficientData = errors.New("insufficient data for indicator calculation")

// SMA returns the simple moving average of the last period closes.
func SMA(candles []types.Candle, period int) (float64, error) {
	if period <= 0 || len(candles) < period {
		return 0, ErrInsufficientData
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// EMA returns the exponential moving average of the last period closes,
// seeded with an SMA over the first period values.
func EMA(candles []types.Candle, period int) (float64, error) {
	if period <= 0 || len(candles) < period {
		return 0, ErrInsufficientData
	}

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += candles[i].Close
	}
	ema := seed / float64(period)

	multiplier := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}

// RSI returns the relative strength index over the given period using
// Wilder's smoothing.
func RSI(candles []types.Candle, period int) (float64, error) {
	if period <= 0 || len(candles) < period+1 {
		return 0, ErrInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// ATR returns the average true range over the given period.
func ATR(candles []types.Candle, period int) (float64, error) {
	if period <= 0 || len(candles) < period+1 {
		return 0, ErrInsufficientData
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := high - low
		if hc := math.Abs(high - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period), nil
}
