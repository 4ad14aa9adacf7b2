// Package backtest is the portfolio simulation engine: it replays a
// selection rule over a trading calendar and produces an equity curve, a
// trade ledger and the warnings collected along the way.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"rotation/market"
	"rotation/strategy"
)

// weightEps is the floating-point tolerance on target weight sums.
const weightEps = 1e-6

// Config describes one simulation run.
type Config struct {
	Calendar       market.Calendar
	Schedule       market.Schedule // nil means first trading day of month
	Rule           strategy.SelectionRule
	SelectionSize  int
	CostRate       float64 // fraction of traded notional, per side
	InitialCapital float64
	LotSize        int64 // shares round down to multiples; <1 means 1
}

func (c *Config) validate() error {
	if err := c.Calendar.Validate(); err != nil {
		return &ConfigError{Field: "calendar", Reason: err.Error()}
	}
	if c.Rule == nil {
		return &ConfigError{Field: "rule", Reason: "selection rule is required"}
	}
	if c.SelectionSize < 1 {
		return &ConfigError{Field: "selection_size", Reason: fmt.Sprintf("must be >= 1, got %d", c.SelectionSize)}
	}
	if c.InitialCapital <= 0 {
		return &ConfigError{Field: "initial_capital", Reason: fmt.Sprintf("must be > 0, got %g", c.InitialCapital)}
	}
	if c.CostRate < 0 {
		return &ConfigError{Field: "cost_rate", Reason: fmt.Sprintf("must be >= 0, got %g", c.CostRate)}
	}
	return nil
}

// Position is one holding: share count and average cost per share including
// transaction costs.
type Position struct {
	Code   string
	Shares float64
	Basis  float64
}

// Trade is one executed order. Shares is signed: positive buys, negative
// sells. Cost is the transaction cost charged against cash.
type Trade struct {
	Date   time.Time
	Code   string
	Shares float64
	Price  float64
	Cost   float64
}

// EquityPoint is the net asset value at the end of one trading date.
type EquityPoint struct {
	Date time.Time
	NAV  float64
}

// State is the ledger at a point in time. NAV is always cash plus the
// marked value of every position.
type State struct {
	Date      time.Time
	Cash      float64
	Positions map[string]*Position
}

// Result is the full output of one run.
type Result struct {
	Curve    []EquityPoint
	Trades   []Trade
	Warnings []Warning
	Final    State
}

// Simulator replays strategies against the two data providers. One
// Simulator may serve many sequential runs; independent runs that must be
// concurrent each get their own Simulator (see Pool).
type Simulator struct {
	bars  BarProvider
	snaps SnapshotProvider
	log   zerolog.Logger

	closes map[string]map[time.Time]float64
}

func NewSimulator(bars BarProvider, snaps SnapshotProvider, log zerolog.Logger) *Simulator {
	return &Simulator{
		bars:   bars,
		snaps:  snaps,
		log:    log.With().Str("component", "backtest").Logger(),
		closes: make(map[string]map[time.Time]float64),
	}
}

// Run replays cfg over its calendar. The loop is strictly sequential: each
// date's ledger is final before the next date begins. Configuration errors
// fail before the first step; data integrity errors abort mid-run; data
// gaps become Warnings on the result.
func (s *Simulator) Run(cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	schedule := cfg.Schedule
	if schedule == nil {
		schedule = market.MonthStart()
	}
	lot := cfg.LotSize
	if lot < 1 {
		lot = 1
	}

	st := State{
		Cash:      cfg.InitialCapital,
		Positions: make(map[string]*Position),
	}
	res := &Result{}
	lastPrice := make(map[string]float64)

	calStart := cfg.Calendar[0]
	calEnd := cfg.Calendar[len(cfg.Calendar)-1]

	var prev time.Time
	for _, date := range cfg.Calendar {
		st.Date = date

		// 1. Mark holdings to this date's close, carrying the last known
		// price across gaps.
		marks := make(map[string]float64, len(st.Positions))
		for _, code := range sortedCodes(st.Positions) {
			px, ok, err := s.closeOn(code, date, calStart, calEnd)
			if err != nil {
				return nil, err
			}
			if !ok {
				carried, has := lastPrice[code]
				if !has {
					return nil, &DataError{Date: date, Code: code, Reason: "held instrument has no price history"}
				}
				res.warn(s.log, date, code, "missing bar, carried last close forward")
				px = carried
			}
			lastPrice[code] = px
			marks[code] = px
		}
		nav := st.Cash + markedValue(st.Positions, marks)

		// 2. Rebalance.
		if schedule(prev, date) {
			if err := s.rebalance(&st, res, cfg, lot, date, nav, marks, lastPrice, calStart, calEnd); err != nil {
				return nil, err
			}
			nav = st.Cash + markedValue(st.Positions, marks)
		}

		if st.Cash < -1e-9 {
			return nil, &DataError{Date: date, Reason: fmt.Sprintf("cash went negative: %g", st.Cash)}
		}

		// 3. Close the date.
		res.Curve = append(res.Curve, EquityPoint{Date: date, NAV: nav})
		prev = date
	}

	res.Final = st
	s.log.Info().
		Int("dates", len(res.Curve)).
		Int("trades", len(res.Trades)).
		Int("warnings", len(res.Warnings)).
		Float64("final_nav", res.Curve[len(res.Curve)-1].NAV).
		Msg("run complete")
	return res, nil
}

// rebalance moves the ledger from current holdings to the rule's target
// weights of nav. Sells settle before buys so a rebalance never needs more
// cash than it has. marks gains exec prices for instruments traded here.
func (s *Simulator) rebalance(st *State, res *Result, cfg Config, lot int64, date time.Time, nav float64, marks, lastPrice map[string]float64, calStart, calEnd time.Time) error {
	snap, err := s.snaps.Snapshot(date)
	if err != nil {
		return fmt.Errorf("universe snapshot for %s: %w", date.Format("2006-01-02"), err)
	}
	target, err := cfg.Rule.Select(snap, cfg.SelectionSize)
	if err != nil {
		return fmt.Errorf("rule %s on %s: %w", cfg.Rule.Name(), date.Format("2006-01-02"), err)
	}
	if err := checkWeights(target, date); err != nil {
		return err
	}

	// Resolve an execution price per target instrument. A target name with
	// no bar today is dropped, never traded against synthesized data.
	execPx := make(map[string]float64, len(target.Weights))
	for _, code := range target.Codes() {
		px, ok, err := s.closeOn(code, date, calStart, calEnd)
		if err != nil {
			if errors.Is(err, ErrUnknownInstrument) {
				res.warn(s.log, date, code, "selected instrument unknown to price provider, dropped")
				delete(target.Weights, code)
				continue
			}
			return err
		}
		if !ok {
			res.warn(s.log, date, code, "selected instrument has no bar on rebalance date, dropped")
			delete(target.Weights, code)
			continue
		}
		execPx[code] = px
		lastPrice[code] = px
	}
	for _, code := range sortedCodes(st.Positions) {
		if _, ok := execPx[code]; ok {
			continue
		}
		px, ok, err := s.closeOn(code, date, calStart, calEnd)
		if err != nil {
			return err
		}
		if !ok {
			// No tradable price today. The position is held through the
			// rebalance rather than sold against a synthesized price.
			res.warn(s.log, date, code, "missing bar on rebalance date, position held through")
			continue
		}
		execPx[code] = px
	}

	// Sells first: anything held above target (or not in the target) frees
	// cash the buys below will draw on.
	for _, code := range sortedCodes(st.Positions) {
		pos := st.Positions[code]
		px, ok := execPx[code]
		if !ok {
			continue
		}
		targetShares := lotShares(target.Weights[code]*nav, px, lot)
		if targetShares >= pos.Shares {
			continue
		}
		sell := pos.Shares - targetShares
		proceeds := sell * px
		cost := proceeds * cfg.CostRate
		st.Cash += proceeds - cost
		pos.Shares -= sell
		if pos.Shares <= 0 {
			delete(st.Positions, code)
		}
		res.Trades = append(res.Trades, Trade{Date: date, Code: code, Shares: -sell, Price: px, Cost: cost})
	}

	// Buys, by code, each sized so notional plus its cost fits in cash.
	for _, code := range target.Codes() {
		px := execPx[code]
		var held float64
		if pos, ok := st.Positions[code]; ok {
			held = pos.Shares
		}
		want := lotShares(target.Weights[code]*nav, px, lot)
		if want <= held {
			continue
		}
		affordable := lotShares(st.Cash/(1+cfg.CostRate), px, lot)
		buy := math.Min(want-held, affordable)
		if buy <= 0 {
			res.warn(s.log, date, code, "insufficient cash for one lot, weight left in cash")
			continue
		}
		spend := buy * px
		cost := spend * cfg.CostRate
		st.Cash -= spend + cost
		pos, ok := st.Positions[code]
		if !ok {
			pos = &Position{Code: code}
			st.Positions[code] = pos
		}
		pos.Basis = (pos.Basis*pos.Shares + spend + cost) / (pos.Shares + buy)
		pos.Shares += buy
		res.Trades = append(res.Trades, Trade{Date: date, Code: code, Shares: buy, Price: px, Cost: cost})
	}

	// Exec prices double as marks for anything traded today.
	for code, px := range execPx {
		if _, ok := st.Positions[code]; ok {
			marks[code] = px
		}
	}
	return nil
}

// checkWeights enforces the target weight contract: no negative weight, sum
// within [0, 1+eps], and renormalization when rounding pushed the sum just
// past 1.
func checkWeights(target strategy.Target, date time.Time) error {
	for code, w := range target.Weights {
		if w < 0 {
			return &DataError{Date: date, Code: code, Reason: fmt.Sprintf("negative target weight %g", w)}
		}
	}
	sum := target.WeightSum()
	if sum > 1+weightEps {
		return &DataError{Date: date, Reason: fmt.Sprintf("target weights sum to %g, beyond [0, 1]", sum)}
	}
	if sum > 1 {
		for code := range target.Weights {
			target.Weights[code] /= sum
		}
	}
	return nil
}

// closeOn looks up an instrument's close on a date, loading and caching its
// bar history on first use. Zero or negative closes fail fast: that row
// could not exist in a legitimate history.
func (s *Simulator) closeOn(code string, date, calStart, calEnd time.Time) (float64, bool, error) {
	series, ok := s.closes[code]
	if !ok {
		bars, err := s.bars.Bars(code, calStart, calEnd)
		if err != nil {
			return 0, false, err
		}
		series = make(map[time.Time]float64, len(bars))
		for _, b := range bars {
			if b.Close <= 0 {
				return 0, false, &DataError{Date: b.Date, Code: code, Reason: fmt.Sprintf("non-positive close %g", b.Close)}
			}
			series[market.Day(b.Date)] = b.Close
		}
		s.closes[code] = series
	}
	px, ok := series[market.Day(date)]
	return px, ok, nil
}

// lotShares converts a notional at a price into a whole number of lots,
// rounding down. Rounding down is what keeps cash non-negative.
func lotShares(notional, price float64, lot int64) float64 {
	if price <= 0 || notional <= 0 {
		return 0
	}
	l := float64(lot)
	return math.Floor(notional/(price*l)) * l
}

func markedValue(positions map[string]*Position, marks map[string]float64) float64 {
	var v float64
	for code, pos := range positions {
		v += pos.Shares * marks[code]
	}
	return v
}

func sortedCodes(positions map[string]*Position) []string {
	codes := make([]string, 0, len(positions))
	for c := range positions {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func (r *Result) warn(log zerolog.Logger, date time.Time, code, reason string) {
	r.Warnings = append(r.Warnings, Warning{Date: date, Code: code, Reason: reason})
	log.Warn().Str("date", date.Format("2006-01-02")).Str("code", code).Msg(reason)
}
