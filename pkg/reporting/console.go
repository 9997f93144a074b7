// Package reporting renders session and backtest output. It only reads:
// all state comes from the registry snapshots and result structs handed in.
package reporting

import (
	"fmt"
	"math"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/stonkers/stonkers-bot/internal/engine"
	"github.com/stonkers/stonkers-bot/internal/position"
)

// PrintStartupInfo renders the session banner.
func PrintStartupInfo(pairs []string, mode, environment string, strategies []string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("STONKERS BOT")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📊 Pairs", fmt.Sprintf("%v", pairs)},
		{"🔧 Mode", mode},
		{"🏪 Environment", environment},
		{"🧠 Strategies", fmt.Sprintf("%v", strategies)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 45, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintOpenPositions renders the current open positions with their
// mark-to-market P&L at the supplied prices.
func PrintOpenPositions(positions map[string]*position.Position, prices map[string]float64) {
	if len(positions) == 0 {
		fmt.Println("No open positions.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Pair", "Side", "Qty", "Entry", "Current", "Unrealized", "Strategy"})

	for pair, p := range positions {
		price, ok := prices[pair]
		current, unrealized := "-", "-"
		if ok {
			pnl, err := p.UnrealizedPnL(price)
			if err == nil {
				current = fmt.Sprintf("$%.2f", price)
				unrealized = fmt.Sprintf("$%+.2f", pnl)
			}
		}
		t.AppendRow(table.Row{
			pair, p.Direction, fmt.Sprintf("%.6f", p.Quantity),
			fmt.Sprintf("$%.2f", p.EntryPrice), current, unrealized, p.StrategyName,
		})
	}

	t.Render()
	fmt.Println()
}

// PrintBacktestResult renders the replay summary.
func PrintBacktestResult(res *engine.BacktestResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("📊 BACKTEST RESULTS")
	t.SetStyle(table.StyleRounded)

	profitFactor := fmt.Sprintf("%.2f", res.ProfitFactor)
	if math.IsInf(res.ProfitFactor, 1) {
		profitFactor = "∞"
	}

	t.AppendRows([]table.Row{
		{"💰 Initial Balance", fmt.Sprintf("$%.2f", res.InitialBalance)},
		{"💰 Final Equity", fmt.Sprintf("$%.2f", res.FinalEquity)},
		{"📈 Total Return", fmt.Sprintf("%.2f%%", res.TotalReturnPct)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", res.MaxDrawdownPct)},
		{"🔄 Total Trades", res.NumTrades},
		{"✅ Winning Trades", fmt.Sprintf("%d (%.1f%%)", res.Wins, res.WinRatePct)},
		{"❌ Losing Trades", res.Losses},
		{"💹 Profit Factor", profitFactor},
		{"💸 Total Fees", fmt.Sprintf("$%.2f", res.TotalFees)},
	})
	if res.Halted {
		t.AppendRow(table.Row{"🛑 Halted", "emergency stop tripped during replay"})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}
