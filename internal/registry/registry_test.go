package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/storage"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	r, err := New(store)
	require.NoError(t, err)
	return r, store
}

func openBTC() *position.Position {
	return &position.Position{
		ID:           position.NewID(),
		Pair:         "BTC/USD",
		Direction:    position.Long,
		EntryPrice:   100.0,
		Quantity:     0.5,
		EntryTime:    time.Now().UTC().Add(-time.Hour),
		StrategyName: "sma_momentum",
		Status:       position.StatusOpen,
	}
}

// TestOpen_StoreFirstThenCache tests the durable-write-before-cache rule
func TestOpen_StoreFirstThenCache(t *testing.T) {
	r, store := newTestRegistry(t)

	p := openBTC()
	require.NoError(t, r.Open(p))

	assert.True(t, r.HasPosition("BTC/USD"))
	assert.Equal(t, 1, r.CountOpen())

	persisted, err := store.GetOpenPositions()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, p.ID, persisted[0].ID)
}

// TestOpen_DuplicatePair tests the one-open-position-per-pair invariant
func TestOpen_DuplicatePair(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Open(openBTC()))

	err := r.Open(openBTC())
	require.Error(t, err)
	assert.True(t, errors.IsInvariant(err))
	assert.Equal(t, 1, r.CountOpen())
}

// TestOpen_RejectsClosedStatus tests that only OPEN positions register
func TestOpen_RejectsClosedStatus(t *testing.T) {
	r, _ := newTestRegistry(t)
	p := openBTC()
	closed, err := p.Close(110, "tp", time.Now().UTC())
	require.NoError(t, err)

	err = r.Open(closed)
	require.Error(t, err)
	assert.True(t, errors.IsInvariant(err))
}

// TestGet_ReturnsCopy tests that callers never get a mutable alias
func TestGet_ReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Open(openBTC()))

	got := r.Get("BTC/USD")
	require.NotNil(t, got)
	got.EntryPrice = 999999

	again := r.Get("BTC/USD")
	assert.Equal(t, 100.0, again.EntryPrice, "mutating a snapshot must not touch the cache")

	snapshot := r.AllOpen()
	snapshot["BTC/USD"].Quantity = -1
	assert.Equal(t, 0.5, r.Get("BTC/USD").Quantity)

	assert.Nil(t, r.Get("ETH/USD"))
}

// TestClose_RecordsTradeAndEvicts tests the close path end to end
func TestClose_RecordsTradeAndEvicts(t *testing.T) {
	r, store := newTestRegistry(t)
	p := openBTC()
	require.NoError(t, r.Open(p))

	closed, err := r.Close("BTC/USD", 110.0, "take profit hit: 10.00%", 0.11)
	require.NoError(t, err)
	assert.Equal(t, position.StatusClosed, closed.Status)
	assert.False(t, r.HasPosition("BTC/USD"))

	trades := store.AllTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, p.ID, trades[0].ID)
	assert.InDelta(t, 5.0-0.11, trades[0].PnL, 1e-9)
	assert.InDelta(t, 0.11, trades[0].Fees, 1e-9)

	// The persisted position row is CLOSED.
	open, err := store.GetOpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)
}

// TestClose_InvokesOnCloseHook tests that every successful close reports
// the closed position's ID, so per-position risk state can be dropped no
// matter which component initiated the close
func TestClose_InvokesOnCloseHook(t *testing.T) {
	r, _ := newTestRegistry(t)
	p := openBTC()
	require.NoError(t, r.Open(p))

	var cleared []string
	r.OnClose(func(id string) { cleared = append(cleared, id) })

	// A failed close must not fire the hook.
	_, err := r.Close("ETH/USD", 110.0, "tp", 0)
	require.Error(t, err)
	assert.Empty(t, cleared)

	_, err = r.Close("BTC/USD", 110.0, "tp", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, cleared)
}

// TestClose_NoOpenPosition tests closing an unknown pair
func TestClose_NoOpenPosition(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Close("BTC/USD", 110.0, "tp", 0)
	require.Error(t, err)
	assert.True(t, errors.IsInvariant(err))
}

// TestClose_TwiceIsInvariantViolation tests that the second close fails
func TestClose_TwiceIsInvariantViolation(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Open(openBTC()))

	_, err := r.Close("BTC/USD", 110.0, "tp", 0)
	require.NoError(t, err)

	_, err = r.Close("BTC/USD", 111.0, "tp", 0)
	require.Error(t, err)
	assert.True(t, errors.IsInvariant(err))
}

// TestReload_RebuildsFromStore tests crash recovery of the cache
func TestReload_RebuildsFromStore(t *testing.T) {
	store := storage.NewMemoryStore()
	p := openBTC()
	require.NoError(t, store.InsertPosition(p))

	r, err := New(store)
	require.NoError(t, err)
	assert.True(t, r.HasPosition("BTC/USD"))
	assert.Equal(t, p.ID, r.Get("BTC/USD").ID)
}

// TestAggregates tests exposure and unrealized P&L over caller prices
func TestAggregates(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Open(openBTC()))

	eth := openBTC()
	eth.ID = position.NewID()
	eth.Pair = "ETH/USD"
	eth.EntryPrice = 2000
	eth.Quantity = 1
	require.NoError(t, r.Open(eth))

	prices := map[string]float64{"BTC/USD": 110.0, "ETH/USD": 1900.0}
	assert.InDelta(t, 100.0*0.5+2000.0, r.TotalExposure(prices), 1e-9)
	assert.InDelta(t, 5.0+(-100.0), r.TotalUnrealizedPnL(prices), 1e-9)

	// Pairs without a supplied price are skipped, not guessed.
	partial := map[string]float64{"BTC/USD": 110.0}
	assert.InDelta(t, 50.0, r.TotalExposure(partial), 1e-9)
	assert.InDelta(t, 5.0, r.TotalUnrealizedPnL(partial), 1e-9)
}
