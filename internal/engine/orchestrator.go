// Package engine owns the tick loop: exits before entries, one entry per
// pair per tick, mark-to-market, and equity sampling. The same tick path
// drives live trading and backtest replay; only the candle source differs.
package engine

import (
	"context"
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/logger"
	"github.com/stonkers/stonkers-bot/internal/monitoring"
	"github.com/stonkers/stonkers-bot/internal/notifications"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/regime"
	"github.com/stonkers/stonkers-bot/internal/registry"
	"github.com/stonkers/stonkers-bot/internal/risk"
	"github.com/stonkers/stonkers-bot/internal/safety"
	"github.com/stonkers/stonkers-bot/internal/storage"
	"github.com/stonkers/stonkers-bot/internal/strategy"
	"github.com/stonkers/stonkers-bot/internal/trader"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

// ForceCloseReason is the only close reason that bypasses the risk policy.
const ForceCloseReason = "End of data/backtest"

// ErrHalted is returned by Tick once the emergency stop has tripped.
var ErrHalted = errors.New(errors.CategoryEmergency, "engine", "tick", "trading halted by emergency stop")

// Config holds the tick-loop parameters.
type Config struct {
	Pairs              []string      `json:"pairs"`
	CandleWindow       int           `json:"candle_window"`
	TickInterval       time.Duration `json:"-"`
	SlippagePct        float64       `json:"slippage_pct"`
	CommissionPct      float64       `json:"commission_pct"`
	EquitySampleStride int           `json:"equity_sample_stride"`
}

// DefaultConfig returns the standard loop parameters.
func DefaultConfig() Config {
	return Config{
		CandleWindow:       100,
		TickInterval:       time.Minute,
		SlippagePct:        0.001,
		CommissionPct:      0.001,
		EquitySampleStride: 10,
	}
}

// Orchestrator runs the trading loop. It is single-threaded: one tick fully
// completes before the next begins.
type Orchestrator struct {
	cfg        Config
	strategies []strategy.Strategy
	policy     *risk.Policy
	book       *registry.Registry
	adapter    trader.Adapter
	stop       *safety.EmergencyStop
	detector   *regime.Detector
	store      storage.Store
	log        *logger.Logger
	health     *monitoring.HealthChecker
	notifier   notifications.Notifier

	tickCount      int
	dayStartEquity float64
	lastPrices     map[string]float64
}

// New wires an orchestrator. dayStartEquity anchors the daily loss limit
// and the emergency stop's daily trigger.
func New(cfg Config, strategies []strategy.Strategy, policy *risk.Policy, book *registry.Registry,
	adapter trader.Adapter, stop *safety.EmergencyStop, store storage.Store,
	log *logger.Logger, dayStartEquity float64) *Orchestrator {
	if cfg.EquitySampleStride <= 0 {
		cfg.EquitySampleStride = 1
	}
	// Every close path must drop per-position risk state, including closes
	// the orchestrator never sees (reconciliation, emergency liquidation).
	book.OnClose(policy.ClearPositionState)
	return &Orchestrator{
		cfg:            cfg,
		strategies:     strategies,
		policy:         policy,
		book:           book,
		adapter:        adapter,
		stop:           stop,
		detector:       regime.NewDetector(),
		store:          store,
		log:            log,
		dayStartEquity: dayStartEquity,
		lastPrices:     make(map[string]float64),
	}
}

// SetHealthChecker attaches the liveness reporter used by the live loop.
func (o *Orchestrator) SetHealthChecker(h *monitoring.HealthChecker) {
	o.health = h
}

// SetNotifier attaches an optional alert channel for closed trades and
// emergency halts.
func (o *Orchestrator) SetNotifier(n notifications.Notifier) {
	o.notifier = n
}

// LastPrices returns the most recent close seen per pair.
func (o *Orchestrator) LastPrices() map[string]float64 {
	out := make(map[string]float64, len(o.lastPrices))
	for k, v := range o.lastPrices {
		out[k] = v
	}
	return out
}

// Tick runs one full cycle over the given candle windows (oldest first per
// pair). Exits always run before entries; at most one entry per pair.
func (o *Orchestrator) Tick(ctx context.Context, candles map[string][]types.Candle) error {
	o.tickCount++

	o.refreshRegimes(candles)
	o.recordPrices(candles)

	if o.checkEmergencyStop() {
		return ErrHalted
	}

	o.processExits(ctx, candles)
	o.processEntries(ctx, candles)

	if err := o.markToMarket(ctx); err != nil {
		o.logError("mark-to-market", err)
	}

	if o.health != nil {
		o.health.MarkTick()
	}
	return nil
}

// refreshRegimes updates the regime cache and pushes classifications to
// strategies that condition on them. Read-only over market data.
func (o *Orchestrator) refreshRegimes(candles map[string][]types.Candle) {
	for pair, window := range candles {
		r := o.detector.Refresh(pair, window)
		for _, s := range o.strategies {
			if aware, ok := s.(strategy.RegimeAware); ok {
				aware.ObserveRegime(pair, r)
			}
		}
	}
}

func (o *Orchestrator) recordPrices(candles map[string][]types.Candle) {
	for pair, window := range candles {
		if price, ok := types.LatestClose(window); ok {
			o.lastPrices[pair] = price
			monitoring.UpdatePrice(pair, price)
		}
	}
}

// checkEmergencyStop reports whether trading is halted. A trip always
// halts, even when part of the forced liquidation failed: the error is
// logged, but a tripped stop must never let the tick accept new entries.
func (o *Orchestrator) checkEmergencyStop() bool {
	if o.stop == nil {
		return false
	}
	tripped, err := o.stop.Check(o.dayStartEquity)
	if err != nil {
		o.logError("emergency stop check", err)
	}
	if tripped && o.health != nil {
		o.health.MarkTripped()
	}
	return tripped
}

// processExits walks every open position with fresh price data: update the
// trailing watermark first, then ask the owning strategy before falling
// back to the risk policy.
func (o *Orchestrator) processExits(ctx context.Context, candles map[string][]types.Candle) {
	for pair, pos := range o.book.AllOpen() {
		window, ok := candles[pair]
		if !ok || len(window) == 0 {
			continue
		}
		price, ok := types.LatestClose(window)
		if !ok {
			continue
		}

		o.policy.ObservePrice(pos, price)

		reason := ""
		if owner := o.strategyByName(pos.StrategyName); owner != nil {
			if exit := owner.ShouldExit(pos, window, price); exit != nil {
				reason = exit.Reason
			}
		}
		if reason == "" {
			if close, why := o.policy.ShouldClose(pos, price); close {
				reason = why
			}
		}
		if reason == "" {
			continue
		}

		o.closePosition(ctx, pos, price, reason)
	}
}

// closePosition fills the exit leg and records the close. Slippage moves
// the fill against us on the closing side; commission is charged on both
// legs' notional and comes out of the trade's P&L.
func (o *Orchestrator) closePosition(ctx context.Context, pos *position.Position, price float64, reason string) {
	fill := o.exitFillPrice(pos, price)

	if err := o.adapter.ExecuteExit(ctx, pos, fill); err != nil {
		// Execution calls are never blindly retried: a retried market
		// order risks a double fill. Surface and skip this tick's action.
		o.logError("exit execution for "+pos.Pair, err)
		monitoring.RecordError(string(errors.CategoryBroker))
		return
	}

	fees := o.cfg.CommissionPct * (pos.Notional() + fill*pos.Quantity)
	closed, err := o.book.Close(pos.Pair, fill, reason, fees)
	if err != nil {
		o.logError("registry close for "+pos.Pair, err)
		return
	}

	pnl, _ := closed.RealizedPnL()
	monitoring.RecordTrade(closed.Pair, pnl-fees)
	if o.notifier != nil {
		if nerr := o.notifier.NotifyTradeClosed(closed.Pair, string(closed.Direction), pnl-fees, reason); nerr != nil {
			o.logError("trade notification for "+closed.Pair, nerr)
		}
	}
	if o.log != nil {
		o.log.LogPositionClosed(closed.Pair, string(closed.Direction),
			closed.EntryPrice, closed.ExitPrice, pnl-fees, reason)
	}
}

// processEntries iterates pairs without an open position. Strategies run in
// configured order and the first one to return a signal acts for that pair;
// later strategies are not consulted even if admission fails.
func (o *Orchestrator) processEntries(ctx context.Context, candles map[string][]types.Candle) {
	accountValue, err := o.adapter.GetAccountValue(ctx)
	if err != nil {
		o.logError("account value fetch", err)
		return
	}
	if ok, why := o.policy.CheckDailyLimit(accountValue, o.dayStartEquity); !ok {
		if o.log != nil {
			o.log.Warning("entries suspended: %s", why)
		}
		return
	}

	for _, pair := range o.cfg.Pairs {
		window, ok := candles[pair]
		if !ok || len(window) == 0 {
			continue
		}
		if o.book.HasPosition(pair) {
			continue
		}

		sig := o.firstSignal(pair, window)
		if sig == nil {
			continue
		}
		monitoring.RecordSignal(sig.StrategyName, sig.Strength)

		if ok, why := o.policy.CanOpen(sig, o.book.CountOpen(), o.book.HasPosition(pair)); !ok {
			if o.log != nil {
				o.log.Info("signal for %s rejected: %s", pair, why)
			}
			continue
		}

		price, _ := types.LatestClose(window)
		o.openPosition(ctx, sig, accountValue, price)
	}
}

// firstSignal returns the first strategy's signal for the pair in
// configured order, or nil.
func (o *Orchestrator) firstSignal(pair string, window []types.Candle) *strategy.Signal {
	for _, s := range o.strategies {
		sig, err := s.Analyze(window)
		if err != nil {
			o.logError("analyze "+pair+" with "+s.Name(), err)
			continue
		}
		if sig != nil {
			return sig
		}
	}
	return nil
}

// openPosition sizes at the slipped fill price, executes the entry, and
// registers the position.
func (o *Orchestrator) openPosition(ctx context.Context, sig *strategy.Signal, accountValue, price float64) {
	fill := o.entryFillPrice(sig, price)
	qty := o.policy.SizePosition(accountValue, fill)
	if qty <= 0 {
		return
	}

	pos, err := o.adapter.ExecuteEntry(ctx, sig, fill, qty)
	if err != nil {
		if errors.IsInsufficientFunds(err) {
			// Treated exactly like a risk rejection: no position created.
			if o.log != nil {
				o.log.Info("entry for %s rejected: %v", sig.Pair, err)
			}
			return
		}
		o.logError("entry execution for "+sig.Pair, err)
		monitoring.RecordError(string(errors.CategoryBroker))
		return
	}

	if err := o.book.Open(pos); err != nil {
		o.logError("registry open for "+sig.Pair, err)
		return
	}
	if o.log != nil {
		o.log.LogPositionOpened(pos.Pair, string(pos.Direction), pos.StrategyName,
			pos.EntryPrice, pos.Quantity, sig.Reasoning)
	}
}

// entryFillPrice applies slippage against the entering side: buys fill
// above the reference, sells below.
func (o *Orchestrator) entryFillPrice(sig *strategy.Signal, price float64) float64 {
	if sig.IsLong() {
		return price * (1 + o.cfg.SlippagePct)
	}
	return price * (1 - o.cfg.SlippagePct)
}

// exitFillPrice applies slippage against the closing side: a long closes
// with a sell (fills below), a short with a buy (fills above).
func (o *Orchestrator) exitFillPrice(pos *position.Position, price float64) float64 {
	if pos.Direction == position.Long {
		return price * (1 - o.cfg.SlippagePct)
	}
	return price * (1 + o.cfg.SlippagePct)
}

// markToMarket sums unrealized P&L across open positions, updates equity,
// and samples the equity curve at the configured stride.
func (o *Orchestrator) markToMarket(ctx context.Context) error {
	unrealized := o.book.TotalUnrealizedPnL(o.lastPrices)
	if err := o.adapter.UpdateEquity(ctx, unrealized); err != nil {
		return err
	}

	numOpen := o.book.CountOpen()
	monitoring.SetOpenPositions(numOpen)

	if o.tickCount%o.cfg.EquitySampleStride != 0 {
		return nil
	}

	cash, err := o.adapter.GetCashBalance(ctx)
	if err != nil {
		return err
	}
	equity, err := o.adapter.GetAccountValue(ctx)
	if err != nil {
		return err
	}
	monitoring.SetEquity(equity)

	if o.log != nil {
		o.log.LogAccountStatus(cash, equity, unrealized, numOpen)
	}
	return o.store.InsertEquitySnapshot(storage.EquitySnapshot{
		Timestamp:     time.Now().UTC(),
		Cash:          cash,
		Equity:        equity,
		UnrealizedPnL: unrealized,
		NumPositions:  numOpen,
	})
}

// ForceCloseAll closes every remaining open position at its last known
// price. This is the only close path that bypasses the risk policy; it runs
// at the end of a replay or on shutdown.
func (o *Orchestrator) ForceCloseAll(ctx context.Context) {
	for pair, pos := range o.book.AllOpen() {
		price, ok := o.lastPrices[pair]
		if !ok {
			price = pos.EntryPrice
		}
		o.closePosition(ctx, pos, price, ForceCloseReason)
	}
}

// FallbackExitCheck evaluates risk-policy exits against the last known
// prices when fresh candles are unavailable, so stops still fire during a
// data outage.
func (o *Orchestrator) FallbackExitCheck(ctx context.Context) {
	for pair, pos := range o.book.AllOpen() {
		price, ok := o.lastPrices[pair]
		if !ok {
			continue
		}
		if close, why := o.policy.ShouldClose(pos, price); close {
			o.closePosition(ctx, pos, price, why)
		}
	}
}

// FinalEquityReport makes a best-effort equity snapshot on shutdown.
func (o *Orchestrator) FinalEquityReport(ctx context.Context) {
	unrealized := o.book.TotalUnrealizedPnL(o.lastPrices)
	cash, err := o.adapter.GetCashBalance(ctx)
	if err != nil {
		o.logError("final cash read", err)
		return
	}
	equity, err := o.adapter.GetAccountValue(ctx)
	if err != nil {
		o.logError("final equity read", err)
		return
	}

	if o.log != nil {
		o.log.LogAccountStatus(cash, equity, unrealized, o.book.CountOpen())
	}
	if err := o.store.InsertEquitySnapshot(storage.EquitySnapshot{
		Timestamp:     time.Now().UTC(),
		Cash:          cash,
		Equity:        equity,
		UnrealizedPnL: unrealized,
		NumPositions:  o.book.CountOpen(),
	}); err != nil {
		o.logError("final equity snapshot", err)
	}
}

func (o *Orchestrator) strategyByName(name string) strategy.Strategy {
	for _, s := range o.strategies {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func (o *Orchestrator) logError(context string, err error) {
	if o.log != nil {
		o.log.LogError(context, err)
	}
}
