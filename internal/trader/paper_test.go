package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/storage"
	"github.com/stonkers/stonkers-bot/internal/strategy"
)

func longSignal(pair string) *strategy.Signal {
	return &strategy.Signal{
		ID:           "sig_1",
		Pair:         pair,
		Type:         strategy.EntryLong,
		Strength:     0.8,
		StrategyName: "sma_momentum",
		Reasoning:    "test entry",
		Timestamp:    time.Now().UTC(),
	}
}

// TestNewPaperTrader_SeedsLedgerOnce tests first-run seeding and restart
// persistence
func TestNewPaperTrader_SeedsLedgerOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	pt, err := NewPaperTrader(store, 10000)
	require.NoError(t, err)

	cash, err := pt.GetCashBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, cash)

	// Spend some cash, then "restart": the ledger survives and is not
	// re-seeded from the initial balance.
	require.NoError(t, store.SaveAccountState(4000, 9500))
	pt2, err := NewPaperTrader(store, 10000)
	require.NoError(t, err)
	cash, err = pt2.GetCashBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, cash)
	equity, err := pt2.GetAccountValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9500.0, equity)
}

// TestExecuteEntry_DeductsNotional tests the cash movement and the
// returned position
func TestExecuteEntry_DeductsNotional(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	pt, err := NewPaperTrader(store, 10000)
	require.NoError(t, err)

	before := time.Now().UTC()
	pos, err := pt.ExecuteEntry(ctx, longSignal("BTC/USD"), 100, 10)
	require.NoError(t, err)

	assert.Equal(t, "BTC/USD", pos.Pair)
	assert.Equal(t, position.Long, pos.Direction)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, position.StatusOpen, pos.Status)
	assert.Equal(t, "sig_1", pos.SignalID)
	assert.False(t, pos.EntryTime.Before(before), "entry time is the fill time, not the signal timestamp")

	cash, err := pt.GetCashBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9000.0, cash, 1e-9)
}

// TestExecuteEntry_InsufficientFunds tests the all-or-nothing rejection
func TestExecuteEntry_InsufficientFunds(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	pt, err := NewPaperTrader(store, 500)
	require.NoError(t, err)

	_, err = pt.ExecuteEntry(ctx, longSignal("BTC/USD"), 100, 10)
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientFunds(err))

	// No partial fill: cash is untouched.
	cash, err := pt.GetCashBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500.0, cash)
}

// TestExecuteExit_CreditsNotionalPlusPnL tests the full round trip
func TestExecuteExit_CreditsNotionalPlusPnL(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	pt, err := NewPaperTrader(store, 10000)
	require.NoError(t, err)

	pos, err := pt.ExecuteEntry(ctx, longSignal("BTC/USD"), 100, 10)
	require.NoError(t, err)
	require.NoError(t, store.InsertPosition(pos))

	require.NoError(t, pt.ExecuteExit(ctx, pos, 105))

	cash, err := pt.GetCashBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10050.0, cash, 1e-9)
}

// TestUpdateEquity_MarksOpenValue tests that equity reflects cash plus the
// value of open positions
func TestUpdateEquity_MarksOpenValue(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	pt, err := NewPaperTrader(store, 10000)
	require.NoError(t, err)

	pos, err := pt.ExecuteEntry(ctx, longSignal("BTC/USD"), 100, 10)
	require.NoError(t, err)
	require.NoError(t, store.InsertPosition(pos))

	// Price is up: unrealized +50 on a 1000 notional.
	require.NoError(t, pt.UpdateEquity(ctx, 50))
	equity, err := pt.GetAccountValue(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10050.0, equity, 1e-9)

	// Price back to entry: equity returns to the starting balance.
	require.NoError(t, pt.UpdateEquity(ctx, 0))
	equity, err = pt.GetAccountValue(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, equity, 1e-9)
}
