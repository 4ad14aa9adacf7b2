// Package store persists securities and daily bars in SQLite and serves
// them back through the backtest provider interfaces. The engine never sees
// the schema; it only sees bars and snapshots.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"rotation/backtest"
	"rotation/market"
	"rotation/universe"
)

const dateLayout = "2006-01-02"

// Security is one reference-data row.
type Security struct {
	Code      string
	Name      string
	ListDate  time.Time
	MarketCap float64
	FloatCap  float64
	PE        float64
	PB        float64
	ST        bool
	Active    bool
}

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the store at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, log: log.With().Str("component", "store").Logger()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertSecurities inserts or replaces reference rows in one transaction.
func (s *Store) UpsertSecurities(secs []Security) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO securities
		(code, name, list_date, market_cap, float_cap, pe, pb, st, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sec := range secs {
		var listDate string
		if !sec.ListDate.IsZero() {
			listDate = sec.ListDate.Format(dateLayout)
		}
		if _, err := stmt.Exec(sec.Code, sec.Name, listDate, sec.MarketCap, sec.FloatCap,
			sec.PE, sec.PB, boolInt(sec.ST), boolInt(sec.Active)); err != nil {
			return fmt.Errorf("upsert security %s: %w", sec.Code, err)
		}
	}
	return tx.Commit()
}

// UpsertBars inserts or replaces daily bars in one transaction.
func (s *Store) UpsertBars(bars []market.Bar) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars
		(code, date, open, high, low, close, volume, turnover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Code, market.Day(b.Date).Format(dateLayout),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.Turnover); err != nil {
			return fmt.Errorf("upsert bar %s %s: %w", b.Code, b.Date.Format(dateLayout), err)
		}
	}
	return tx.Commit()
}

// Bars implements backtest.BarProvider: date-ascending bars in [start, end].
func (s *Store) Bars(code string, start, end time.Time) ([]market.Bar, error) {
	rows, err := s.db.Query(`
		SELECT code, date, open, high, low, close, volume, turnover
		FROM bars
		WHERE code = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`,
		code, market.Day(start).Format(dateLayout), market.Day(end).Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Bar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		known, err := s.hasSecurity(code)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%s: %w", code, backtest.ErrUnknownInstrument)
		}
	}
	return out, nil
}

// Snapshot implements backtest.SnapshotProvider. asOf resolves to the
// latest trade date at or before it; members are the active securities with
// a bar on that date, so nothing dated later than asOf can leak in.
func (s *Store) Snapshot(asOf time.Time) (universe.Snapshot, error) {
	snap := universe.Snapshot{AsOf: market.Day(asOf)}

	var effective sql.NullString
	err := s.db.QueryRow(`SELECT MAX(date) FROM bars WHERE date <= ?`,
		snap.AsOf.Format(dateLayout)).Scan(&effective)
	if err != nil {
		return snap, err
	}
	if !effective.Valid {
		return snap, nil // no history yet: empty universe, not an error
	}

	rows, err := s.db.Query(`
		SELECT b.code, s.name, b.close, s.market_cap, s.float_cap, s.pe, s.pb, s.st
		FROM bars b
		JOIN securities s ON s.code = b.code
		WHERE b.date = ? AND s.active = 1
		ORDER BY b.code ASC`, effective.String)
	if err != nil {
		return snap, err
	}
	defer rows.Close()

	for rows.Next() {
		var m universe.Member
		var st int
		if err := rows.Scan(&m.Instrument.Code, &m.Instrument.Name, &m.Close,
			&m.MarketCap, &m.FloatCap, &m.PE, &m.PB, &st); err != nil {
			return snap, err
		}
		m.ST = st != 0
		snap.Members = append(snap.Members, m)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	s.log.Debug().Str("as_of", snap.AsOf.Format(dateLayout)).
		Str("effective", effective.String).
		Int("members", len(snap.Members)).
		Msg("snapshot")
	return snap, nil
}

// TradingDates returns the distinct bar dates in [start, end] as a
// Calendar. The backtest command drives the simulation off it.
func (s *Store) TradingDates(start, end time.Time) (market.Calendar, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT date FROM bars
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`,
		market.Day(start).Format(dateLayout), market.Day(end).Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cal market.Calendar
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, err
		}
		d, err := time.Parse(dateLayout, ds)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in store: %w", ds, err)
		}
		cal = append(cal, d)
	}
	return cal, rows.Err()
}

// SecurityCodes lists every active security code, sorted.
func (s *Store) SecurityCodes() ([]string, error) {
	rows, err := s.db.Query(`SELECT code FROM securities WHERE active = 1 ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (s *Store) hasSecurity(code string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM securities WHERE code = ?`, code).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanBar(rows *sql.Rows) (market.Bar, error) {
	var b market.Bar
	var ds string
	if err := rows.Scan(&b.Code, &ds, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Turnover); err != nil {
		return b, err
	}
	d, err := time.Parse(dateLayout, ds)
	if err != nil {
		return b, fmt.Errorf("bad date %q in store: %w", ds, err)
	}
	b.Date = d
	return b, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
