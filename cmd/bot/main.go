package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/stonkers/stonkers-bot/internal/engine"
	"github.com/stonkers/stonkers-bot/internal/exchange/bybit"
	"github.com/stonkers/stonkers-bot/internal/logger"
	"github.com/stonkers/stonkers-bot/internal/monitoring"
	"github.com/stonkers/stonkers-bot/internal/notifications"
	"github.com/stonkers/stonkers-bot/internal/reconcile"
	"github.com/stonkers/stonkers-bot/internal/registry"
	"github.com/stonkers/stonkers-bot/internal/risk"
	"github.com/stonkers/stonkers-bot/internal/safety"
	"github.com/stonkers/stonkers-bot/internal/storage"
	"github.com/stonkers/stonkers-bot/internal/trader"
	"github.com/stonkers/stonkers-bot/pkg/config"
	"github.com/stonkers/stonkers-bot/pkg/reporting"
)

func main() {
	configFile := flag.String("config", "bot", "config file (bare names resolve under configs/)")
	envFile := flag.String("env", ".env", "env file with exchange credentials")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ could not load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}

	if err := run(cfg); err != nil && err != context.Canceled {
		log.Fatalf("❌ %v", err)
	}
}

func run(cfg *config.Config) error {
	sessionLog, err := logger.NewLogger(cfg.Pairs)
	if err != nil {
		return fmt.Errorf("failed to create session logger: %w", err)
	}
	defer sessionLog.Close()

	store, err := storageFor(cfg)
	if err != nil {
		return err
	}

	book, err := registry.New(store)
	if err != nil {
		return fmt.Errorf("failed to load position registry: %w", err)
	}

	strategies, err := cfg.BuildStrategies()
	if err != nil {
		return err
	}
	strategyNames := make([]string, len(strategies))
	for i, s := range strategies {
		strategyNames[i] = s.Name()
	}

	client := bybit.NewClient(cfg.BybitConfig())

	var adapter trader.Adapter
	var reconciler *reconcile.Reconciler
	environment := "simulated"
	if cfg.Mode == config.ModeLive {
		adapter = trader.NewLiveTrader(client, sessionLog)
		reconciler = reconcile.New(client, book, store, sessionLog)
		environment = client.Environment()
	} else {
		paper, err := trader.NewPaperTrader(store, cfg.InitialBalance)
		if err != nil {
			return fmt.Errorf("failed to seed paper ledger: %w", err)
		}
		adapter = paper
	}

	reporting.PrintStartupInfo(cfg.Pairs, cfg.Mode, environment, strategyNames)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dayStartEquity, err := adapter.GetAccountValue(ctx)
	if err != nil {
		return fmt.Errorf("failed to read starting equity: %w", err)
	}

	policy := risk.NewPolicy(cfg.Risk)
	stop := safety.NewEmergencyStop(cfg.Stop, store, book, sessionLog)

	orch := engine.New(cfg.Engine, strategies, policy, book, adapter, stop, store,
		sessionLog, dayStartEquity)

	health := monitoring.NewHealthChecker()
	orch.SetHealthChecker(health)
	startMonitoring(cfg, health)

	limiter := safety.NewRateLimiter(10, 5)
	runner := engine.NewRunner(orch, client, limiter, reconciler, sessionLog)
	runner.CloseOnShutdown = cfg.Mode == config.ModePaper

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		notifier := notifications.NewTelegramNotifier(token, os.Getenv("TELEGRAM_CHAT_ID"))
		orch.SetNotifier(notifier)
		if err := notifier.NotifySessionStart(cfg.Mode, cfg.Pairs); err != nil {
			log.Printf("⚠️ startup notification: %v", err)
		}
	}

	sessionLog.Info("bot started: mode=%s pairs=%v strategies=%v", cfg.Mode, cfg.Pairs, strategyNames)
	err = runner.Run(ctx)

	reporting.PrintOpenPositions(book.AllOpen(), orch.LastPrices())
	return err
}

// storageFor opens the configured Postgres store, or an in-process store
// when no DSN is configured (paper sessions without a database).
func storageFor(cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseDSN == "" {
		if cfg.Mode == config.ModeLive {
			return nil, fmt.Errorf("live mode requires a database_dsn or DATABASE_URL")
		}
		log.Println("⚠️ no database configured, using in-memory state")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func startMonitoring(cfg *config.Config, health *monitoring.HealthChecker) {
	if cfg.Monitoring.PrometheusPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", monitoring.NewMetricsHandler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("⚠️ metrics server: %v", err)
			}
		}()
	}
	if cfg.Monitoring.HealthPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
			mux := http.NewServeMux()
			mux.Handle("/health", health)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("⚠️ health server: %v", err)
			}
		}()
	}
}
