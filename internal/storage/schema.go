package storage

// schemaStatements is applied at startup. Statements are idempotent so a
// restart against an initialized database is a no-op.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		pair TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		entry_time TIMESTAMPTZ NOT NULL,
		strategy_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		exit_price DOUBLE PRECISION,
		exit_time TIMESTAMPTZ,
		exit_reason TEXT DEFAULT '',
		stop_loss_price DOUBLE PRECISION,
		take_profit_price DOUBLE PRECISION,
		signal_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_open ON positions (pair) WHERE status = 'open'`,

	`CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		pair TEXT NOT NULL,
		strategy_name TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		exit_price DOUBLE PRECISION NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		entry_time TIMESTAMPTZ NOT NULL,
		exit_time TIMESTAMPTZ NOT NULL,
		pnl DOUBLE PRECISION NOT NULL,
		fees DOUBLE PRECISION NOT NULL DEFAULT 0,
		exit_reason TEXT DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades (exit_time DESC)`,

	`CREATE TABLE IF NOT EXISTS account_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		cash DOUBLE PRECISION NOT NULL,
		equity DOUBLE PRECISION NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS equity_snapshots (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		cash DOUBLE PRECISION NOT NULL,
		equity DOUBLE PRECISION NOT NULL,
		unrealized_pnl DOUBLE PRECISION NOT NULL,
		num_positions INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reconciliation_log (
		id BIGSERIAL PRIMARY KEY,
		action TEXT NOT NULL,
		pair TEXT NOT NULL,
		details TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
}
