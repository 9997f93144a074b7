package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/registry"
	"github.com/stonkers/stonkers-bot/internal/storage"
)

func stopFixture(t *testing.T, cfg StopConfig) (*EmergencyStop, *storage.MemoryStore, *registry.Registry) {
	t.Helper()
	store := storage.NewMemoryStore()
	book, err := registry.New(store)
	require.NoError(t, err)
	return NewEmergencyStop(cfg, store, book, nil), store, book
}

func recordTrade(t *testing.T, store *storage.MemoryStore, pnl float64, exit time.Time) {
	t.Helper()
	require.NoError(t, store.InsertTrade(&position.Trade{
		ID:       position.NewID(),
		Pair:     "BTC/USD",
		PnL:      pnl,
		ExitTime: exit,
	}))
}

// TestCheck_Armed tests that a healthy history leaves the stop armed
func TestCheck_Armed(t *testing.T) {
	stop, store, _ := stopFixture(t, DefaultStopConfig())
	now := time.Now().UTC()
	recordTrade(t, store, 100, now)
	recordTrade(t, store, -50, now)

	tripped, err := stop.Check(10000)
	require.NoError(t, err)
	assert.False(t, tripped)
	assert.False(t, stop.Tripped())
	assert.Empty(t, stop.TripReason())
}

// TestCheck_DailyLossTrip tests the day-loss trigger with liquidation
func TestCheck_DailyLossTrip(t *testing.T) {
	stop, store, book := stopFixture(t, DefaultStopConfig())
	now := time.Now().UTC()

	p := &position.Position{
		ID: position.NewID(), Pair: "ETH/USD", Direction: position.Long,
		EntryPrice: 2000, Quantity: 1, EntryTime: now.Add(-time.Hour),
		StrategyName: "sma_momentum", Status: position.StatusOpen,
	}
	require.NoError(t, book.Open(p))

	// 6% of a 10k day-start equity, lost today.
	recordTrade(t, store, -600, now)

	tripped, err := stop.Check(10000)
	require.NoError(t, err)
	assert.True(t, tripped)
	assert.True(t, stop.Tripped())
	assert.Equal(t, "daily loss limit breached", stop.TripReason())

	// All open positions were liquidated at their entry price.
	assert.Zero(t, book.CountOpen())
	trades := store.AllTrades()
	require.Len(t, trades, 2)
	liq := trades[1]
	assert.Equal(t, "ETH/USD", liq.Pair)
	assert.Equal(t, 2000.0, liq.ExitPrice)
	assert.Contains(t, liq.ExitReason, "EMERGENCY STOP")
}

// TestCheck_LiquidationFiresRegistryCloseHook tests that forced
// liquidation drops per-position state through the same hook as any
// other close
func TestCheck_LiquidationFiresRegistryCloseHook(t *testing.T) {
	stop, store, book := stopFixture(t, DefaultStopConfig())
	now := time.Now().UTC()

	p := &position.Position{
		ID: position.NewID(), Pair: "ETH/USD", Direction: position.Long,
		EntryPrice: 2000, Quantity: 1, EntryTime: now.Add(-time.Hour),
		StrategyName: "sma_momentum", Status: position.StatusOpen,
	}
	require.NoError(t, book.Open(p))

	var cleared []string
	book.OnClose(func(id string) { cleared = append(cleared, id) })

	recordTrade(t, store, -600, now)
	tripped, err := stop.Check(10000)
	require.NoError(t, err)
	require.True(t, tripped)
	assert.Equal(t, []string{p.ID}, cleared)
}

// TestCheck_DailyLossIgnoresYesterday tests the UTC-midnight anchor
func TestCheck_DailyLossIgnoresYesterday(t *testing.T) {
	stop, store, _ := stopFixture(t, DefaultStopConfig())

	// A big loss, but before today's UTC midnight.
	recordTrade(t, store, -600, time.Now().UTC().AddDate(0, 0, -1))

	tripped, err := stop.Check(10000)
	require.NoError(t, err)
	assert.False(t, tripped)
}

// TestCheck_ConsecutiveLossTrip tests the losing-streak trigger
func TestCheck_ConsecutiveLossTrip(t *testing.T) {
	stop, store, _ := stopFixture(t, StopConfig{MaxConsecutiveLosses: 3})
	now := time.Now().UTC()

	// Oldest first: a win, then three straight losses.
	recordTrade(t, store, 50, now.Add(-4*time.Hour))
	recordTrade(t, store, -10, now.Add(-3*time.Hour))
	recordTrade(t, store, -10, now.Add(-2*time.Hour))
	recordTrade(t, store, -10, now.Add(-time.Hour))

	tripped, err := stop.Check(0)
	require.NoError(t, err)
	assert.True(t, tripped)
	assert.Equal(t, "consecutive loss limit breached", stop.TripReason())
}

// TestCheck_StreakBrokenByWinner tests that a recent winner resets the count
func TestCheck_StreakBrokenByWinner(t *testing.T) {
	stop, store, _ := stopFixture(t, StopConfig{MaxConsecutiveLosses: 3})
	now := time.Now().UTC()

	recordTrade(t, store, -10, now.Add(-4*time.Hour))
	recordTrade(t, store, -10, now.Add(-3*time.Hour))
	recordTrade(t, store, 0, now.Add(-2*time.Hour)) // break-even counts as a winner
	recordTrade(t, store, -10, now.Add(-time.Hour))

	tripped, err := stop.Check(0)
	require.NoError(t, err)
	assert.False(t, tripped)
}

// TestCheck_TripIsTerminal tests the one-way latch
func TestCheck_TripIsTerminal(t *testing.T) {
	stop, store, _ := stopFixture(t, StopConfig{MaxConsecutiveLosses: 1})
	recordTrade(t, store, -10, time.Now().UTC())

	tripped, err := stop.Check(0)
	require.NoError(t, err)
	require.True(t, tripped)

	// A later winning trade does not re-arm the stop.
	recordTrade(t, store, 1000, time.Now().UTC())
	tripped, err = stop.Check(0)
	require.NoError(t, err)
	assert.True(t, tripped)
	assert.Equal(t, "consecutive loss limit breached", stop.TripReason())
}

// TestCheck_ZeroThresholdsDisable tests that zeroed limits never trip
func TestCheck_ZeroThresholdsDisable(t *testing.T) {
	stop, store, _ := stopFixture(t, StopConfig{})
	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		recordTrade(t, store, -1000, now)
	}

	tripped, err := stop.Check(10000)
	require.NoError(t, err)
	assert.False(t, tripped)
}
