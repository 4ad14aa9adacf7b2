// store/schema.go
package store

const schema = `
CREATE TABLE IF NOT EXISTS securities (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	list_date TEXT,
	market_cap REAL,
	float_cap REAL,
	pe REAL,
	pb REAL,
	st INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS bars (
	code TEXT NOT NULL,
	date TEXT NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER NOT NULL,
	turnover REAL NOT NULL,
	PRIMARY KEY (code, date)
);

CREATE INDEX IF NOT EXISTS idx_bars_date ON bars(date);
`
