package strategy

import (
	"sort"

	"rotation/universe"
)

func init() {
	Register("lowpe", func(p Params) SelectionRule {
		return &LowPE{MinMarketCap: p.MinMarketCap, MainBoard: p.MainBoard}
	})
}

// LowPE ranks main-board names with a market cap above a floor by ascending
// trailing P/E and takes the N cheapest, equal-weighted. Names with zero or
// negative earnings (PE <= 0) never qualify.
type LowPE struct {
	MinMarketCap float64
	MainBoard    bool
}

func (s *LowPE) Name() string { return "lowpe" }

func (s *LowPE) Select(snap universe.Snapshot, n int) (Target, error) {
	eligible := make([]universe.Member, 0, len(snap.Members))
	for _, m := range snap.Members {
		if s.MainBoard && !m.Instrument.MainBoard() {
			continue
		}
		if m.PE <= 0 {
			continue
		}
		if m.MarketCap < s.MinMarketCap {
			continue
		}
		eligible = append(eligible, m)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].PE != eligible[j].PE {
			return eligible[i].PE < eligible[j].PE
		}
		return eligible[i].Instrument.Code < eligible[j].Instrument.Code
	})

	if len(eligible) > n {
		eligible = eligible[:n]
	}
	return equalWeight(snap.AsOf, eligible, n), nil
}
