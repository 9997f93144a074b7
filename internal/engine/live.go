package engine

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/exchange"
	"github.com/stonkers/stonkers-bot/internal/logger"
	"github.com/stonkers/stonkers-bot/internal/reconcile"
	"github.com/stonkers/stonkers-bot/internal/safety"
)

// Runner drives the orchestrator against a live candle feed at a fixed
// interval, reconciling against the broker at startup and periodically.
type Runner struct {
	orch       *Orchestrator
	feed       exchange.Feed
	limiter    *safety.RateLimiter
	reconciler *reconcile.Reconciler
	log        *logger.Logger

	reconcileInterval time.Duration

	// CloseOnShutdown force-closes remaining positions when the context is
	// cancelled. Paper sessions set this; live sessions leave positions to
	// the broker and only report.
	CloseOnShutdown bool
}

// NewRunner wires the live loop. reconciler may be nil (paper mode).
func NewRunner(orch *Orchestrator, feed exchange.Feed, limiter *safety.RateLimiter,
	reconciler *reconcile.Reconciler, log *logger.Logger) *Runner {
	return &Runner{
		orch:              orch,
		feed:              feed,
		limiter:           limiter,
		reconciler:        reconciler,
		log:               log,
		reconcileInterval: 15 * time.Minute,
	}
}

// Run blocks until the context is cancelled or the emergency stop trips.
// Shutdown makes a best-effort final equity report rather than guaranteeing
// a clean position close.
func (r *Runner) Run(ctx context.Context) error {
	if r.reconciler != nil {
		if _, err := r.reconciler.Run(ctx); err != nil {
			// Startup reconciliation failing is not fatal: trade on local
			// state and retry on the periodic schedule.
			r.log.LogError("startup reconciliation", err)
		}
	}

	ticker := time.NewTicker(r.orch.cfg.TickInterval)
	defer ticker.Stop()

	var reconcileTimer <-chan time.Time
	if r.reconciler != nil {
		t := time.NewTicker(r.reconcileInterval)
		defer t.Stop()
		reconcileTimer = t.C
	}

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()

		case <-reconcileTimer:
			if _, err := r.reconciler.Run(ctx); err != nil {
				r.log.LogError("periodic reconciliation", err)
			}

		case <-ticker.C:
			if err := r.tick(ctx); err != nil {
				if err == ErrHalted {
					r.log.Error("trading halted: %s", r.orch.stop.TripReason())
					if r.orch.notifier != nil {
						if nerr := r.orch.notifier.NotifyHalt(r.orch.stop.TripReason()); nerr != nil {
							r.log.LogError("halt notification", nerr)
						}
					}
					r.orch.FinalEquityReport(ctx)
					return err
				}
				var ee *errors.EngineError
				if stderrors.As(err, &ee) && ee.IsFatal() {
					r.log.LogError("fatal tick error, stopping", err)
					r.orch.FinalEquityReport(ctx)
					return err
				}
				r.log.LogError("tick", err)
			}
		}
	}
}

func (r *Runner) tick(ctx context.Context) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	candles, err := r.feed.FetchRecentCandles(ctx, r.orch.cfg.Pairs, r.orch.cfg.CandleWindow)
	if err != nil {
		// Stops must still fire during a data outage: fall back to the
		// last known prices for exit checks only.
		r.log.LogError("candle fetch", err)
		if r.orch.health != nil {
			r.orch.health.MarkDisconnected()
		}
		r.orch.FallbackExitCheck(ctx)
		return nil
	}

	return r.orch.Tick(ctx, candles)
}

func (r *Runner) shutdown() {
	// The parent context is already cancelled; give shutdown work its own
	// short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if r.CloseOnShutdown {
		r.orch.ForceCloseAll(ctx)
	}
	r.orch.FinalEquityReport(ctx)
}
