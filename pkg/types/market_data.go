package types

import "time"

// Candle is one OHLCV bar for a trading pair. Timestamps are UTC and
// strictly increasing within a feed.
type Candle struct {
	Pair      string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// LatestClose returns the close of the newest candle, or false when the
// window is empty.
func LatestClose(candles []Candle) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}
	return candles[len(candles)-1].Close, true
}
