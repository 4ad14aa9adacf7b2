package backtest

import (
	"time"

	"rotation/market"
	"rotation/universe"
)

// BarProvider supplies ordered daily bars for one instrument. Bars must be
// strictly increasing by date and restricted to [start, end]. Unknown codes
// return ErrUnknownInstrument. Calls are read-only; the simulator caches
// what it reads, so implementations may be backed by anything from SQLite
// to a fixture map.
type BarProvider interface {
	Bars(code string, start, end time.Time) ([]market.Bar, error)
}

// SnapshotProvider supplies the eligible universe as of a date. Every field
// on every member must have been knowable on that date; the provider, not
// the simulator, owns the no-look-ahead guarantee for attributes.
type SnapshotProvider interface {
	Snapshot(asOf time.Time) (universe.Snapshot, error)
}
