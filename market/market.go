// Package market holds the reference data the rest of the system trades in:
// instruments, daily bars and trading calendars.
package market

import "time"

// Instrument is immutable reference data for a listed equity.
type Instrument struct {
	Code string // exchange code, e.g. "600519"
	Name string // display name
}

// MainBoard reports whether a code belongs to the Shanghai or Shenzhen main
// board (600/601/603 and 000/001/002/003 prefixes). Rotation rules use this
// to exclude ChiNext/STAR listings.
func (i Instrument) MainBoard() bool {
	if len(i.Code) < 3 {
		return false
	}
	switch i.Code[:3] {
	case "600", "601", "603", "000", "001", "002", "003":
		return true
	}
	return false
}

// Bar is one daily OHLCV row for an instrument. Prices are forward-adjusted.
// Bars are produced by a provider and are read-only to the engine.
type Bar struct {
	Code     string
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64   // shares traded
	Turnover float64 // money traded
}

// Day truncates t to a date in UTC. All calendar comparisons go through it so
// bars loaded with different clock components still line up.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
