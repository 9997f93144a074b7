package storage

import (
	"time"

	"github.com/stonkers/stonkers-bot/internal/position"
)

// AccountState is the durable cash/equity ledger row. Owned by the paper
// execution adapter; live mode reads the broker instead.
type AccountState struct {
	Cash        float64
	Equity      float64
	LastUpdated time.Time
}

// EquitySnapshot is one sample of the equity curve.
type EquitySnapshot struct {
	Timestamp     time.Time
	Cash          float64
	Equity        float64
	UnrealizedPnL float64
	NumPositions  int
}

// AuditEntry is one append-only reconciliation log row, independent of the
// trades table.
type AuditEntry struct {
	Action    string
	Pair      string
	Details   string
	Timestamp time.Time
}

// Store is the durable persistence contract for the engine. The orchestrator
// is the sole writer; reporting readers share the same store read-only.
type Store interface {
	InsertPosition(p *position.Position) error
	UpdatePosition(p *position.Position) error
	GetOpenPositions() ([]*position.Position, error)

	// CloseAndRecord persists a closed position and its derived trade row in
	// one transaction, so a crash cannot leave a closed position without a
	// matching trade.
	CloseAndRecord(closed *position.Position, trade *position.Trade) error

	InsertTrade(t *position.Trade) error
	TradesClosedSince(since time.Time) ([]*position.Trade, error)
	RecentTrades(limit int) ([]*position.Trade, error)

	GetAccountState() (*AccountState, error)
	SaveAccountState(cash, equity float64) error

	InsertEquitySnapshot(snap EquitySnapshot) error
	InsertAuditEntry(action, pair, details string) error
}
