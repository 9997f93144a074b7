package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stonkers/stonkers-bot/pkg/types"
)

func trend(n int, start, step float64) []types.Candle {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, n)
	price := start
	for i := range out {
		out[i] = types.Candle{
			Pair:      "BTC/USD",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     price,
		}
		price += step
	}
	return out
}

// TestRefresh_Classification tests the three classifications plus the
// short-window fallback
func TestRefresh_Classification(t *testing.T) {
	d := NewDetector()

	up := d.Refresh("BTC/USD", trend(80, 100, 1))
	assert.Equal(t, TrendingUp, up.Type)
	assert.Greater(t, up.Confidence, 0.0)

	down := d.Refresh("BTC/USD", trend(80, 200, -1))
	assert.Equal(t, TrendingDown, down.Type)

	ranging := d.Refresh("BTC/USD", trend(80, 100, 0))
	assert.Equal(t, Ranging, ranging.Type)

	unknown := d.Refresh("BTC/USD", trend(10, 100, 1))
	assert.Equal(t, Unknown, unknown.Type)
	assert.Zero(t, unknown.Confidence)
}

// TestCurrent_CacheSemantics tests per-pair caching and the unknown default
func TestCurrent_CacheSemantics(t *testing.T) {
	d := NewDetector()

	assert.Equal(t, Unknown, d.Current("BTC/USD").Type)

	d.Refresh("BTC/USD", trend(80, 100, 1))
	assert.Equal(t, TrendingUp, d.Current("BTC/USD").Type)
	assert.Equal(t, Unknown, d.Current("ETH/USD").Type, "pairs classify independently")

	// The cache holds the latest classification, not the first.
	d.Refresh("BTC/USD", trend(80, 200, -1))
	assert.Equal(t, TrendingDown, d.Current("BTC/USD").Type)
}
