// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	schedule TEXT NOT NULL,
	selection_size INTEGER NOT NULL,
	cost_rate REAL NOT NULL,
	initial_capital REAL NOT NULL,
	lot_size INTEGER NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	final_nav REAL NOT NULL,
	warnings INTEGER NOT NULL,
	periods_per_year REAL NOT NULL,
	total_return REAL,
	cagr REAL,
	max_drawdown REAL,
	volatility REAL,
	sharpe REAL,
	win_rate REAL,
	round_trips INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	date DATETIME NOT NULL,
	code TEXT NOT NULL,
	shares REAL NOT NULL,
	price REAL NOT NULL,
	cost REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	date DATETIME NOT NULL,
	nav REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, date);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, date);
`
