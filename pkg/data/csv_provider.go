// Package data loads historical candle series for backtests.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/stonkers/stonkers-bot/pkg/types"
)

// csvDateFormats are tried in order when parsing the timestamp column.
var csvDateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadCSV reads one pair's candle history from a CSV file with a header row
// and columns timestamp,open,high,low,close,volume. Malformed rows are
// logged and skipped; the surviving series must pass ValidateSeries.
func LoadCSV(filename, pair string) ([]types.Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open candle file %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", filename, err)
	}

	var candles []types.Candle
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading %s at line %d: %w", filename, lineNum, err)
		}
		lineNum++

		if len(record) < 6 {
			log.Printf("⚠️ insufficient columns at line %d, skipping", lineNum)
			continue
		}

		timestamp, err := parseTimestamp(record[0])
		if err != nil {
			log.Printf("⚠️ invalid timestamp %q at line %d, skipping: %v", record[0], lineNum, err)
			continue
		}

		var prices [5]float64
		bad := false
		for i := 0; i < 5; i++ {
			prices[i], err = strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				log.Printf("⚠️ invalid value %q at line %d, skipping: %v", record[i+1], lineNum, err)
				bad = true
				break
			}
		}
		if bad {
			continue
		}

		c := types.Candle{
			Pair:      pair,
			Timestamp: timestamp,
			Open:      prices[0],
			High:      prices[1],
			Low:       prices[2],
			Close:     prices[3],
			Volume:    prices[4],
		}
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			log.Printf("⚠️ non-positive price at line %d, skipping", lineNum)
			continue
		}
		candles = append(candles, c)
	}

	if err := ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("invalid series in %s: %w", filename, err)
	}
	return candles, nil
}

func parseTimestamp(s string) (time.Time, error) {
	// A bare integer is treated as a unix millisecond timestamp.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	var lastErr error
	for _, layout := range csvDateFormats {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ValidateSeries checks candle integrity: positive prices, a high/low range
// that brackets open and close, and strictly increasing timestamps.
func ValidateSeries(candles []types.Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("no candles provided")
	}

	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("candle %d: prices must be positive", i)
		}
		if c.High < c.Low {
			return fmt.Errorf("candle %d: high %.4f below low %.4f", i, c.High, c.Low)
		}
		if c.High < c.Open || c.High < c.Close {
			return fmt.Errorf("candle %d: high %.4f must bracket open %.4f and close %.4f", i, c.High, c.Open, c.Close)
		}
		if c.Low > c.Open || c.Low > c.Close {
			return fmt.Errorf("candle %d: low %.4f must bracket open %.4f and close %.4f", i, c.Low, c.Open, c.Close)
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("candle %d: timestamps must be strictly increasing", i)
		}
	}
	return nil
}
