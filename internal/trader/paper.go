package trader

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/storage"
	"github.com/stonkers/stonkers-bot/internal/strategy"
)

// PaperTrader simulates fills. No broker involved: cash and equity live in
// the durable account_state row, seeded with the starting balance on first
// run.
type PaperTrader struct {
	store          storage.Store
	initialBalance float64
}

// NewPaperTrader creates the simulated adapter and seeds the ledger if the
// account row does not exist yet.
func NewPaperTrader(store storage.Store, initialBalance float64) (*PaperTrader, error) {
	t := &PaperTrader{store: store, initialBalance: initialBalance}

	_, err := store.GetAccountState()
	if stderrors.Is(err, storage.ErrNoAccountState) {
		if err := store.SaveAccountState(initialBalance, initialBalance); err != nil {
			return nil, err
		}
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetAccountValue returns current equity.
func (t *PaperTrader) GetAccountValue(ctx context.Context) (float64, error) {
	state, err := t.store.GetAccountState()
	if err != nil {
		return 0, err
	}
	return state.Equity, nil
}

// GetCashBalance returns current free cash.
func (t *PaperTrader) GetCashBalance(ctx context.Context) (float64, error) {
	state, err := t.store.GetAccountState()
	if err != nil {
		return 0, err
	}
	return state.Cash, nil
}

// ExecuteEntry deducts the position notional from cash and returns the new
// position. Fails with an insufficient-funds error when cash would go
// negative; the entry is then rejected outright, never partially filled.
// Entry time is the actual fill time, not the signal timestamp.
func (t *PaperTrader) ExecuteEntry(ctx context.Context, sig *strategy.Signal, price, qty float64) (*position.Position, error) {
	state, err := t.store.GetAccountState()
	if err != nil {
		return nil, err
	}

	notional := price * qty
	if state.Cash < notional {
		return nil, errors.NewInsufficientFunds("paper_trader", state.Cash, notional)
	}

	pos := &position.Position{
		ID:              position.NewID(),
		Pair:            sig.Pair,
		Direction:       directionFor(sig),
		EntryPrice:      price,
		Quantity:        qty,
		EntryTime:       time.Now().UTC(),
		StrategyName:    sig.StrategyName,
		Status:          position.StatusOpen,
		StopLossPrice:   sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
		SignalID:        sig.ID,
	}
	if err := pos.Validate(); err != nil {
		return nil, err
	}

	if err := t.store.SaveAccountState(state.Cash-notional, state.Equity); err != nil {
		return nil, err
	}
	return pos, nil
}

// ExecuteExit credits the original notional plus the realized P&L back to
// cash. Equity is rebuilt from cash and the remaining open notional; the
// next mark-to-market re-applies their unrealized P&L.
func (t *PaperTrader) ExecuteExit(ctx context.Context, pos *position.Position, price float64) error {
	pnl, err := pos.UnrealizedPnL(price)
	if err != nil {
		return err
	}

	state, err := t.store.GetAccountState()
	if err != nil {
		return err
	}

	// pos is still OPEN in the store at this point; exclude it.
	reserved, err := t.openNotional(pos.ID)
	if err != nil {
		return err
	}

	newCash := state.Cash + pos.Notional() + pnl
	return t.store.SaveAccountState(newCash, newCash+reserved)
}

// UpdateEquity marks equity to cash plus the value of open positions at
// current prices.
func (t *PaperTrader) UpdateEquity(ctx context.Context, unrealizedPnL float64) error {
	state, err := t.store.GetAccountState()
	if err != nil {
		return err
	}
	reserved, err := t.openNotional("")
	if err != nil {
		return err
	}
	return t.store.SaveAccountState(state.Cash, state.Cash+reserved+unrealizedPnL)
}

// openNotional sums the entry notional of open positions, skipping the
// given position ID.
func (t *PaperTrader) openNotional(excludeID string) (float64, error) {
	open, err := t.store.GetOpenPositions()
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, p := range open {
		if p.ID == excludeID {
			continue
		}
		total += p.Notional()
	}
	return total, nil
}
