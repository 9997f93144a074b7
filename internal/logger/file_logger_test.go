package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readSessionLog(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	return string(data)
}

// TestLogger_SessionLifecycle tests the header, entries, and footer
func TestLogger_SessionLifecycle(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLoggerIn(dir, []string{"BTC/USD", "ETH/USD"})
	require.NoError(t, err)

	l.Info("engine started with %d pairs", 2)
	l.LogPositionOpened("BTC/USD", "long", "sma_momentum", 50000, 0.1, "fast above slow")
	l.LogPositionClosed("BTC/USD", "long", 50000, 52500, 250, "take profit hit: 5.00%")
	l.LogAccountStatus(9000, 10250, 0, 0)
	l.LogError("candle fetch", assert.AnError)
	require.NoError(t, l.Close())

	content := readSessionLog(t, dir)
	assert.Contains(t, content, "TRADING SESSION STARTED")
	assert.Contains(t, content, "Pairs: BTCUSD-ETHUSD")
	assert.Contains(t, content, "[INFO] engine started with 2 pairs")
	assert.Contains(t, content, "[TRADE] OPENED BTC/USD long")
	assert.Contains(t, content, "[TRADE] CLOSED BTC/USD long")
	assert.Contains(t, content, "P&L $+250.00")
	assert.Contains(t, content, "[STATUS] cash $9000.00")
	assert.Contains(t, content, "[ERROR] candle fetch")
	assert.Contains(t, content, "TRADING SESSION ENDED")
}

// TestLogger_FilenameByDay tests the per-day session file naming
func TestLogger_FilenameByDay(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLoggerIn(dir, []string{"SOL/USD"})
	require.NoError(t, err)
	defer l.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SOLUSD_"+time.Now().Format("2006-01-02")+".log", entries[0].Name())
}

// TestLogger_EmptyPairs tests the fallback session name
func TestLogger_EmptyPairs(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLoggerIn(dir, nil)
	require.NoError(t, err)
	defer l.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "session_")
}
