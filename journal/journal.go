// journal/journal.go
package journal

import (
	"time"

	"rotation/backtest"
	"rotation/perf"
)

// Run is one persisted backtest run: the parameters that produced it and
// the summary metrics derived from it.
type Run struct {
	RunID   string
	Created time.Time

	Strategy       string
	Schedule       string
	SelectionSize  int
	CostRate       float64
	InitialCapital float64
	LotSize        int64
	Start          time.Time
	End            time.Time

	FinalNAV float64
	Warnings int
	Report   perf.Report
}

// Journal persists runs with their equity curves and trade ledgers.
type Journal interface {
	RecordRun(run Run, res *backtest.Result) error
	Close() error
}

// Exporter renders a completed run into some artifact and returns its
// path. The engine hands over three immutable structures; the rendering
// format is the exporter's concern.
type Exporter interface {
	Export(run Run, curve []backtest.EquityPoint, trades []backtest.Trade, rep perf.Report) (string, error)
}
