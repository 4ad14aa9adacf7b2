package backtest

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownInstrument is returned by providers when asked for a code they
// have no data for.
var ErrUnknownInstrument = errors.New("unknown instrument")

// ConfigError is a fatal pre-run error: the simulation never starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// DataError is a fatal mid-run error: a value that cannot occur in a
// legitimate market history, or a state the ledger must never reach.
type DataError struct {
	Date   time.Time
	Code   string
	Reason string
}

func (e *DataError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("data error on %s: %s", e.Date.Format("2006-01-02"), e.Reason)
	}
	return fmt.Sprintf("data error on %s (%s): %s", e.Date.Format("2006-01-02"), e.Code, e.Reason)
}

// Warning is a recoverable data gap attached to the date it occurred on.
// Warnings are accumulated into the run result, never dropped.
type Warning struct {
	Date   time.Time
	Code   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Date.Format("2006-01-02"), w.Code, w.Reason)
}
