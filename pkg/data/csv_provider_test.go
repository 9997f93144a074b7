package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonkers/stonkers-bot/pkg/types"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadCSV_UnixMillis tests the download-format timestamp column
func TestLoadCSV_UnixMillis(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1717200000000,100,101,99,100.5,1234
1717200060000,100.5,102,100,101.5,2345
`)

	candles, err := LoadCSV(path, "BTC/USD")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, "BTC/USD", candles[0].Pair)
	assert.Equal(t, time.UnixMilli(1717200000000).UTC(), candles[0].Timestamp)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 2345.0, candles[1].Volume)
}

// TestLoadCSV_DateFormats tests the human-readable timestamp fallbacks
func TestLoadCSV_DateFormats(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-06-01 00:00:00,100,101,99,100,10
2024-06-01 00:01:00,100,101,99,100,10
`)

	candles, err := LoadCSV(path, "ETH/USD")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 1, 0, 0, time.UTC), candles[1].Timestamp)
}

// TestLoadCSV_SkipsMalformedRows tests row-level tolerance
func TestLoadCSV_SkipsMalformedRows(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1717200000000,100,101,99,100,10
not-a-time,100,101,99,100,10
1717200060000,abc,101,99,100,10
1717200120000,-5,101,99,100,10
1717200180000,100,101,99,100,10
`)

	candles, err := LoadCSV(path, "BTC/USD")
	require.NoError(t, err)
	assert.Len(t, candles, 2, "malformed rows are dropped, valid ones survive")
}

// TestLoadCSV_MissingFile tests the open error path
func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), "BTC/USD")
	assert.Error(t, err)
}

// TestLoadCSV_RejectsUnorderedSeries tests the post-load series validation
func TestLoadCSV_RejectsUnorderedSeries(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1717200060000,100,101,99,100,10
1717200000000,100,101,99,100,10
`)

	_, err := LoadCSV(path, "BTC/USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly increasing")
}

func validCandle(at time.Time) types.Candle {
	return types.Candle{
		Pair: "BTC/USD", Timestamp: at,
		Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10,
	}
}

// TestValidateSeries tests each integrity rule separately
func TestValidateSeries(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	good := []types.Candle{validCandle(base), validCandle(base.Add(time.Minute))}
	require.NoError(t, ValidateSeries(good))

	assert.Error(t, ValidateSeries(nil), "empty series is invalid")

	bad := validCandle(base)
	bad.Close = 0
	assert.Error(t, ValidateSeries([]types.Candle{bad}))

	bad = validCandle(base)
	bad.High, bad.Low = 99, 101
	assert.Error(t, ValidateSeries([]types.Candle{bad}))

	bad = validCandle(base)
	bad.Close = 200 // above the high
	assert.Error(t, ValidateSeries([]types.Candle{bad}))

	bad = validCandle(base)
	bad.Open = 50 // below the low
	assert.Error(t, ValidateSeries([]types.Candle{bad}))

	// Equal timestamps are not strictly increasing.
	dup := []types.Candle{validCandle(base), validCandle(base)}
	assert.Error(t, ValidateSeries(dup))
}
