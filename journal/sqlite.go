package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"rotation/backtest"
	"rotation/perf"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) Close() error { return j.db.Close() }

// RecordRun persists the run summary with its full equity curve and trade
// ledger in one transaction.
func (j *SQLite) RecordRun(run Run, res *backtest.Result) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rep := run.Report
	_, err = tx.Exec(`
		INSERT INTO runs
		(run_id, created, strategy, schedule, selection_size, cost_rate, initial_capital,
		 lot_size, start_date, end_date, final_nav, warnings, periods_per_year,
		 total_return, cagr, max_drawdown, volatility, sharpe, win_rate, round_trips)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Created, run.Strategy, run.Schedule, run.SelectionSize,
		run.CostRate, run.InitialCapital, run.LotSize, run.Start, run.End,
		run.FinalNAV, run.Warnings, rep.PeriodsPerYear,
		nullMetric(rep.TotalReturn), nullMetric(rep.CAGR), nullMetric(rep.MaxDrawdown),
		nullMetric(rep.Volatility), nullMetric(rep.Sharpe), nullMetric(rep.WinRate),
		rep.RoundTrips,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	tstmt, err := tx.Prepare(`INSERT INTO trades (run_id, date, code, shares, price, cost) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer tstmt.Close()
	for _, t := range res.Trades {
		if _, err := tstmt.Exec(run.RunID, t.Date, t.Code, t.Shares, t.Price, t.Cost); err != nil {
			return err
		}
	}

	estmt, err := tx.Prepare(`INSERT INTO equity (run_id, date, nav) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer estmt.Close()
	for _, p := range res.Curve {
		if _, err := estmt.Exec(run.RunID, p.Date, p.NAV); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRun returns a single run summary by ID.
func (j *SQLite) GetRun(runID string) (Run, error) {
	row := j.db.QueryRow(`
		SELECT run_id, created, strategy, schedule, selection_size, cost_rate, initial_capital,
		       lot_size, start_date, end_date, final_nav, warnings, periods_per_year,
		       total_return, cagr, max_drawdown, volatility, sharpe, win_rate, round_trips
		FROM runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %q not found", runID)
	}
	return run, err
}

// ListRuns returns all run summaries, newest first.
func (j *SQLite) ListRuns() ([]Run, error) {
	rows, err := j.db.Query(`
		SELECT run_id, created, strategy, schedule, selection_size, cost_rate, initial_capital,
		       lot_size, start_date, end_date, final_nav, warnings, periods_per_year,
		       total_return, cagr, max_drawdown, volatility, sharpe, win_rate, round_trips
		FROM runs ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// TradesByRun returns a run's trade ledger in execution order.
func (j *SQLite) TradesByRun(runID string) ([]backtest.Trade, error) {
	rows, err := j.db.Query(`
		SELECT date, code, shares, price, cost
		FROM trades WHERE run_id = ? ORDER BY date ASC, code ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.Trade
	for rows.Next() {
		var t backtest.Trade
		if err := rows.Scan(&t.Date, &t.Code, &t.Shares, &t.Price, &t.Cost); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// EquityByRun returns a run's equity curve in date order.
func (j *SQLite) EquityByRun(runID string) ([]backtest.EquityPoint, error) {
	rows, err := j.db.Query(`
		SELECT date, nav FROM equity WHERE run_id = ? ORDER BY date ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.EquityPoint
	for rows.Next() {
		var p backtest.EquityPoint
		if err := rows.Scan(&p.Date, &p.NAV); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (Run, error) {
	var run Run
	var totalReturn, cagr, maxDD, vol, sharpe, winRate sql.NullFloat64
	err := row.Scan(
		&run.RunID, &run.Created, &run.Strategy, &run.Schedule, &run.SelectionSize,
		&run.CostRate, &run.InitialCapital, &run.LotSize, &run.Start, &run.End,
		&run.FinalNAV, &run.Warnings, &run.Report.PeriodsPerYear,
		&totalReturn, &cagr, &maxDD, &vol, &sharpe, &winRate, &run.Report.RoundTrips,
	)
	if err != nil {
		return run, err
	}
	run.Report.TotalReturn = fromNull(totalReturn)
	run.Report.CAGR = fromNull(cagr)
	run.Report.MaxDrawdown = fromNull(maxDD)
	run.Report.Volatility = fromNull(vol)
	run.Report.Sharpe = fromNull(sharpe)
	run.Report.WinRate = fromNull(winRate)
	return run, nil
}

// Undefined metrics are stored as NULL, never as a fake zero.
func nullMetric(m perf.Metric) any {
	if !m.Valid {
		return nil
	}
	return m.Value
}

func fromNull(v sql.NullFloat64) perf.Metric {
	if !v.Valid {
		return perf.Metric{}
	}
	return perf.Metric{Value: v.Float64, Valid: true}
}
