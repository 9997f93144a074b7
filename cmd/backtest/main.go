package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stonkers/stonkers-bot/internal/engine"
	"github.com/stonkers/stonkers-bot/internal/logger"
	"github.com/stonkers/stonkers-bot/internal/registry"
	"github.com/stonkers/stonkers-bot/internal/risk"
	"github.com/stonkers/stonkers-bot/internal/safety"
	"github.com/stonkers/stonkers-bot/internal/storage"
	"github.com/stonkers/stonkers-bot/internal/trader"
	"github.com/stonkers/stonkers-bot/pkg/config"
	"github.com/stonkers/stonkers-bot/pkg/data"
	"github.com/stonkers/stonkers-bot/pkg/reporting"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

func main() {
	configFile := flag.String("config", "backtest", "config file (bare names resolve under configs/)")
	dataDir := flag.String("data", "data", "directory with per-pair candle CSVs (BTC/USD -> BTC_USD.csv)")
	output := flag.String("output", "", "optional Excel report path")
	envFile := flag.String("env", ".env", "env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ could not load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}

	if err := run(cfg, *dataDir, *output); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(cfg *config.Config, dataDir, output string) error {
	history, err := loadHistory(cfg.Pairs, dataDir)
	if err != nil {
		return err
	}

	sessionLog, err := logger.NewLogger(cfg.Pairs)
	if err != nil {
		return fmt.Errorf("failed to create session logger: %w", err)
	}
	defer sessionLog.Close()

	store := storage.NewMemoryStore()
	book, err := registry.New(store)
	if err != nil {
		return err
	}
	paper, err := trader.NewPaperTrader(store, cfg.InitialBalance)
	if err != nil {
		return err
	}

	strategies, err := cfg.BuildStrategies()
	if err != nil {
		return err
	}
	strategyNames := make([]string, len(strategies))
	for i, s := range strategies {
		strategyNames[i] = s.Name()
	}
	reporting.PrintStartupInfo(cfg.Pairs, "backtest", "replay", strategyNames)

	policy := risk.NewPolicy(cfg.Risk)
	stop := safety.NewEmergencyStop(cfg.Stop, store, book, sessionLog)
	orch := engine.New(cfg.Engine, strategies, policy, book, paper, stop, store,
		sessionLog, cfg.InitialBalance)

	bt := engine.NewBacktest(orch, store, cfg.InitialBalance)
	result, err := bt.Run(context.Background(), history)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	reporting.PrintBacktestResult(result)

	if output != "" {
		if err := reporting.WriteBacktestXLSX(store.AllTrades(), result.EquityCurve, output); err != nil {
			return fmt.Errorf("failed to write Excel report: %w", err)
		}
		fmt.Printf("📄 report written to %s\n", output)
	}
	return nil
}

// loadHistory reads one CSV per pair from the data directory.
func loadHistory(pairs []string, dataDir string) (map[string][]types.Candle, error) {
	history := make(map[string][]types.Candle, len(pairs))
	for _, pair := range pairs {
		filename := strings.ReplaceAll(pair, "/", "_") + ".csv"
		candles, err := data.LoadCSV(filepath.Join(dataDir, filename), pair)
		if err != nil {
			return nil, err
		}
		history[pair] = candles
	}
	return history, nil
}
