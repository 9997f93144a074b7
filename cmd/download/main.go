// Command download fetches recent candle history from Bybit and writes the
// per-pair CSV files the backtest command consumes.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stonkers/stonkers-bot/internal/exchange/bybit"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

func main() {
	pairsFlag := flag.String("pairs", "BTC/USDT", "comma-separated pairs (BASE/QUOTE)")
	interval := flag.String("interval", "60", "kline interval (1, 5, 15, 60, 240, D)")
	category := flag.String("category", "spot", "market category (spot, linear)")
	limit := flag.Int("limit", 1000, "number of candles per pair (max 1000)")
	outDir := flag.String("out", "data", "output directory")
	envFile := flag.String("env", ".env", "env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ could not load %s: %v", *envFile, err)
	}

	pairs := strings.Split(*pairsFlag, ",")
	for i := range pairs {
		pairs[i] = strings.TrimSpace(pairs[i])
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
		Category:  *category,
		Interval:  *interval,
	})

	candles, err := client.FetchRecentCandles(context.Background(), pairs, *limit)
	if err != nil {
		log.Fatalf("❌ download failed: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("❌ failed to create %s: %v", *outDir, err)
	}

	for pair, series := range candles {
		filename := filepath.Join(*outDir, strings.ReplaceAll(pair, "/", "_")+".csv")
		if err := writeCSV(filename, series); err != nil {
			log.Fatalf("❌ failed to write %s: %v", filename, err)
		}
		fmt.Printf("✅ %s: %d candles -> %s\n", pair, len(series), filename)
	}
}

func writeCSV(filename string, series []types.Candle) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range series {
		row := []string{
			strconv.FormatInt(c.Timestamp.UnixMilli(), 10),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
