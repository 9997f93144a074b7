package storage

import (
	"database/sql"
	stderrors "errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/stonkers/stonkers-bot/internal/errors"
	"github.com/stonkers/stonkers-bot/internal/position"
)

// ErrNoAccountState is returned before the paper adapter has seeded the
// ledger row.
var ErrNoAccountState = stderrors.New("no account state saved")

// PostgresStore implements Store on a Postgres database.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the schema exists.
func Open(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, "storage", "open")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, "storage", "ping")
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing connection. Used by tests with sqlmock.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, errors.CategoryStorage, "storage", "ensure_schema")
		}
	}
	return nil
}

// InsertPosition writes a new open position row.
func (s *PostgresStore) InsertPosition(p *position.Position) error {
	query := `
		INSERT INTO positions (id, pair, direction, entry_price, quantity, entry_time,
			strategy_name, status, exit_price, exit_time, exit_reason,
			stop_loss_price, take_profit_price, signal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.Exec(query,
		p.ID, p.Pair, string(p.Direction), p.EntryPrice, p.Quantity, p.EntryTime,
		p.StrategyName, string(p.Status), nullFloat(p.ExitPrice), nullTime(p.ExitTime),
		p.ExitReason, nullFloat(p.StopLossPrice), nullFloat(p.TakeProfitPrice),
		nullString(p.SignalID),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "insert_position")
	}
	return nil
}

// UpdatePosition rewrites the mutable fields of a position row.
func (s *PostgresStore) UpdatePosition(p *position.Position) error {
	query := `
		UPDATE positions
		SET status = $2, exit_price = $3, exit_time = $4, exit_reason = $5
		WHERE id = $1`

	res, err := s.db.Exec(query,
		p.ID, string(p.Status), nullFloat(p.ExitPrice), nullTime(p.ExitTime), p.ExitReason)
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "update_position")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewInvariant("storage", "update_position", "position "+p.ID+" not found")
	}
	return nil
}

// GetOpenPositions loads every OPEN position row.
func (s *PostgresStore) GetOpenPositions() ([]*position.Position, error) {
	query := `
		SELECT id, pair, direction, entry_price, quantity, entry_time,
			strategy_name, status, exit_price, exit_time, exit_reason,
			stop_loss_price, take_profit_price, signal_id
		FROM positions
		WHERE status = 'open'
		ORDER BY entry_time`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, "storage", "get_open_positions")
	}
	defer rows.Close()

	var positions []*position.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryStorage, "storage", "scan_position")
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CloseAndRecord updates the position row and inserts the trade row in one
// transaction. The original implementation issued the two writes separately,
// which could strand a closed position without a trade on crash.
func (s *PostgresStore) CloseAndRecord(closed *position.Position, trade *position.Trade) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "close_and_record")
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE positions
		SET status = $2, exit_price = $3, exit_time = $4, exit_reason = $5
		WHERE id = $1`,
		closed.ID, string(closed.Status), nullFloat(closed.ExitPrice),
		nullTime(closed.ExitTime), closed.ExitReason)
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "close_and_record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewInvariant("storage", "close_and_record", "position "+closed.ID+" not found")
	}

	if _, err := tx.Exec(insertTradeQuery,
		trade.ID, trade.Pair, trade.StrategyName, string(trade.Direction),
		trade.EntryPrice, trade.ExitPrice, trade.Quantity,
		trade.EntryTime, trade.ExitTime, trade.PnL, trade.Fees, trade.ExitReason,
	); err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "close_and_record")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "close_and_record")
	}
	return nil
}

const insertTradeQuery = `
		INSERT INTO trades (id, pair, strategy_name, direction, entry_price, exit_price,
			quantity, entry_time, exit_time, pnl, fees, exit_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// InsertTrade writes a trade row outside a close transaction. Used by tools
// that import trade history.
func (s *PostgresStore) InsertTrade(t *position.Trade) error {
	_, err := s.db.Exec(insertTradeQuery,
		t.ID, t.Pair, t.StrategyName, string(t.Direction),
		t.EntryPrice, t.ExitPrice, t.Quantity,
		t.EntryTime, t.ExitTime, t.PnL, t.Fees, t.ExitReason)
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "insert_trade")
	}
	return nil
}

// TradesClosedSince returns trades whose exit time is at or after since,
// newest first.
func (s *PostgresStore) TradesClosedSince(since time.Time) ([]*position.Trade, error) {
	query := selectTradeQuery + `
		WHERE exit_time >= $1
		ORDER BY exit_time DESC`
	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, "storage", "trades_closed_since")
	}
	defer rows.Close()
	return scanTrades(rows)
}

// RecentTrades returns the most recently closed trades, newest first.
func (s *PostgresStore) RecentTrades(limit int) ([]*position.Trade, error) {
	query := selectTradeQuery + `
		ORDER BY exit_time DESC
		LIMIT $1`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, "storage", "recent_trades")
	}
	defer rows.Close()
	return scanTrades(rows)
}

const selectTradeQuery = `
		SELECT id, pair, strategy_name, direction, entry_price, exit_price,
			quantity, entry_time, exit_time, pnl, fees, exit_reason
		FROM trades`

// GetAccountState loads the singleton ledger row.
func (s *PostgresStore) GetAccountState() (*AccountState, error) {
	query := `SELECT cash, equity, last_updated FROM account_state WHERE id = 1`

	state := &AccountState{}
	err := s.db.QueryRow(query).Scan(&state.Cash, &state.Equity, &state.LastUpdated)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAccountState
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, "storage", "get_account_state")
	}
	return state, nil
}

// SaveAccountState upserts the singleton ledger row.
func (s *PostgresStore) SaveAccountState(cash, equity float64) error {
	query := `
		INSERT INTO account_state (id, cash, equity, last_updated)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET cash = EXCLUDED.cash, equity = EXCLUDED.equity, last_updated = EXCLUDED.last_updated`

	_, err := s.db.Exec(query, cash, equity, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "save_account_state")
	}
	return nil
}

// InsertEquitySnapshot appends one equity-curve sample.
func (s *PostgresStore) InsertEquitySnapshot(snap EquitySnapshot) error {
	query := `
		INSERT INTO equity_snapshots (timestamp, cash, equity, unrealized_pnl, num_positions)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.Exec(query, snap.Timestamp, snap.Cash, snap.Equity, snap.UnrealizedPnL, snap.NumPositions)
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "insert_equity_snapshot")
	}
	return nil
}

// InsertAuditEntry appends one reconciliation audit row.
func (s *PostgresStore) InsertAuditEntry(action, pair, details string) error {
	query := `
		INSERT INTO reconciliation_log (action, pair, details, timestamp)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.Exec(query, action, pair, details, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, "storage", "insert_audit_entry")
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row scanner) (*position.Position, error) {
	var (
		p          position.Position
		direction  string
		status     string
		exitPrice  sql.NullFloat64
		exitTime   sql.NullTime
		stopLoss   sql.NullFloat64
		takeProfit sql.NullFloat64
		signalID   sql.NullString
	)

	err := row.Scan(&p.ID, &p.Pair, &direction, &p.EntryPrice, &p.Quantity, &p.EntryTime,
		&p.StrategyName, &status, &exitPrice, &exitTime, &p.ExitReason,
		&stopLoss, &takeProfit, &signalID)
	if err != nil {
		return nil, err
	}

	p.Direction = position.Direction(direction)
	p.Status = position.Status(status)
	p.ExitPrice = exitPrice.Float64
	if exitTime.Valid {
		p.ExitTime = exitTime.Time
	}
	p.StopLossPrice = stopLoss.Float64
	p.TakeProfitPrice = takeProfit.Float64
	p.SignalID = signalID.String
	return &p, nil
}

func scanTrades(rows *sql.Rows) ([]*position.Trade, error) {
	var trades []*position.Trade
	for rows.Next() {
		var t position.Trade
		var direction string
		err := rows.Scan(&t.ID, &t.Pair, &t.StrategyName, &direction,
			&t.EntryPrice, &t.ExitPrice, &t.Quantity,
			&t.EntryTime, &t.ExitTime, &t.PnL, &t.Fees, &t.ExitReason)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryStorage, "storage", "scan_trade")
		}
		t.Direction = position.Direction(direction)
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v != 0}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
