package engine

import (
	"context"
	"math"

	"github.com/stonkers/stonkers-bot/internal/storage"
	"github.com/stonkers/stonkers-bot/pkg/types"
)

// BacktestResult summarizes a finished replay.
type BacktestResult struct {
	InitialBalance float64
	FinalEquity    float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	NumTrades      int
	Wins           int
	Losses         int
	WinRatePct     float64
	ProfitFactor   float64
	TotalPnL       float64
	TotalFees      float64
	Halted         bool
	EquityCurve    []storage.EquitySnapshot
}

// Backtest replays historical candles through the same tick path the live
// loop uses. Candle series must be ordered oldest first; pairs are aligned
// by index.
type Backtest struct {
	orch           *Orchestrator
	store          *storage.MemoryStore
	initialBalance float64
}

// NewBacktest wires a replay over an in-memory store.
func NewBacktest(orch *Orchestrator, store *storage.MemoryStore, initialBalance float64) *Backtest {
	return &Backtest{orch: orch, store: store, initialBalance: initialBalance}
}

// Run replays the data tick by tick, force-closes whatever is still open at
// the end, and computes the performance summary.
func (b *Backtest) Run(ctx context.Context, data map[string][]types.Candle) (*BacktestResult, error) {
	maxLen := 0
	for _, series := range data {
		if len(series) > maxLen {
			maxLen = len(series)
		}
	}

	halted := false
	window := b.orch.cfg.CandleWindow

	for i := 0; i < maxLen; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tick := make(map[string][]types.Candle, len(data))
		for pair, series := range data {
			if i >= len(series) {
				continue
			}
			start := i + 1 - window
			if start < 0 {
				start = 0
			}
			tick[pair] = series[start : i+1]
		}

		if err := b.orch.Tick(ctx, tick); err != nil {
			if err == ErrHalted {
				halted = true
				break
			}
			return nil, err
		}
	}

	b.orch.ForceCloseAll(ctx)

	res := b.summarize(ctx)
	res.Halted = halted
	return res, nil
}

func (b *Backtest) summarize(ctx context.Context) *BacktestResult {
	res := &BacktestResult{
		InitialBalance: b.initialBalance,
		EquityCurve:    b.store.EquityCurve(),
	}

	if equity, err := b.orch.adapter.GetAccountValue(ctx); err == nil {
		res.FinalEquity = equity
	}
	if b.initialBalance > 0 {
		res.TotalReturnPct = (res.FinalEquity - b.initialBalance) / b.initialBalance * 100
	}

	var grossProfit, grossLoss float64
	for _, t := range b.store.AllTrades() {
		res.NumTrades++
		res.TotalPnL += t.PnL
		res.TotalFees += t.Fees
		if t.PnL >= 0 {
			res.Wins++
			grossProfit += t.PnL
		} else {
			res.Losses++
			grossLoss -= t.PnL
		}
	}
	if res.NumTrades > 0 {
		res.WinRatePct = float64(res.Wins) / float64(res.NumTrades) * 100
	}
	if grossLoss > 0 {
		res.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		res.ProfitFactor = math.Inf(1)
	}

	res.MaxDrawdownPct = maxDrawdown(res.EquityCurve)
	return res
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// positive percentage.
func maxDrawdown(curve []storage.EquitySnapshot) float64 {
	peak, maxDD := 0.0, 0.0
	for _, s := range curve {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak > 0 {
			dd := (peak - s.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
