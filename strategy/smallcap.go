package strategy

import (
	"sort"
	"strings"

	"rotation/universe"
)

func init() {
	Register("smallcap", func(p Params) SelectionRule {
		if p.MinPrice <= 0 {
			p.MinPrice = 10
		}
		return &SmallCap{MinPrice: p.MinPrice, ExcludeST: p.ExcludeST, MainBoard: p.MainBoard}
	})
}

// SmallCap is the small-cap rotation rule: keep main-board names above a
// minimum price, optionally drop ST names, rank ascending by free-float
// market cap and take the N smallest, equal-weighted.
type SmallCap struct {
	MinPrice  float64
	ExcludeST bool
	MainBoard bool
}

func (s *SmallCap) Name() string { return "smallcap" }

func (s *SmallCap) Select(snap universe.Snapshot, n int) (Target, error) {
	eligible := make([]universe.Member, 0, len(snap.Members))
	for _, m := range snap.Members {
		if s.MainBoard && !m.Instrument.MainBoard() {
			continue
		}
		if m.Close < s.MinPrice {
			continue
		}
		if s.ExcludeST && (m.ST || strings.Contains(m.Instrument.Name, "ST")) {
			continue
		}
		if m.FloatCap <= 0 {
			continue
		}
		eligible = append(eligible, m)
	}

	// Ties broken by code so the same snapshot always ranks identically.
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].FloatCap != eligible[j].FloatCap {
			return eligible[i].FloatCap < eligible[j].FloatCap
		}
		return eligible[i].Instrument.Code < eligible[j].Instrument.Code
	})

	if len(eligible) > n {
		eligible = eligible[:n]
	}
	return equalWeight(snap.AsOf, eligible, n), nil
}
