// Package universe describes the investable set a selection rule sees on a
// given date. A Snapshot is valid strictly as of its date: no field on any
// member may reflect information that was not public by then.
package universe

import (
	"time"

	"rotation/market"
)

// Member is one eligible instrument with the attributes rules select on.
// MarketCap fields are in the quote currency; PE is trailing twelve months
// and <= 0 when earnings are negative or unknown.
type Member struct {
	Instrument market.Instrument
	Close      float64
	MarketCap  float64 // total market capitalization
	FloatCap   float64 // free-float market capitalization
	PE         float64
	PB         float64
	ST         bool // special-treatment flag (delisting risk)
}

// Snapshot is the dated universe handed to a SelectionRule. Members keep the
// provider's order; rules re-sort as they need.
type Snapshot struct {
	AsOf    time.Time
	Members []Member
}
