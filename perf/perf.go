// Package perf reduces a completed equity curve and trade ledger to summary
// risk/return statistics. Everything here is a pure function of its inputs.
package perf

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"rotation/backtest"
)

// Metric is a statistic that may be undefined (zero denominator, too few
// points). Undefined metrics render as "n/a" rather than panicking or
// pretending to be zero.
type Metric struct {
	Value float64
	Valid bool
}

func metric(v float64) Metric { return Metric{Value: v, Valid: true} }

func (m Metric) String() string {
	if !m.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", m.Value)
}

// Pct renders the metric as a percentage, or "n/a".
func (m Metric) Pct() string {
	if !m.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", m.Value*100)
}

// Report is the immutable summary of one run.
type Report struct {
	PeriodsPerYear float64

	TotalReturn Metric
	CAGR        Metric
	MaxDrawdown Metric
	Volatility  Metric // annualized stddev of period returns
	Sharpe      Metric // CAGR over annualized volatility, risk-free 0
	WinRate     Metric // closed round trips with positive net P/L
	RoundTrips  int
}

// PeriodsPerYear estimates the sampling frequency of a calendar from its
// mean spacing: ~252 for daily trading calendars, ~12 for monthly ones.
func PeriodsPerYear(dates []time.Time) float64 {
	if len(dates) < 2 {
		return 0
	}
	span := dates[len(dates)-1].Sub(dates[0])
	if span <= 0 {
		return 0
	}
	meanDays := span.Hours() / 24 / float64(len(dates)-1)
	return 365.25 / meanDays
}

// Analyze computes the report for an equity curve and its trade ledger.
// periodsPerYear is the annualization base; pass 0 to derive it from the
// curve's own dates.
func Analyze(curve []backtest.EquityPoint, trades []backtest.Trade, periodsPerYear float64) Report {
	rep := Report{}
	if len(curve) == 0 {
		return rep
	}
	if periodsPerYear <= 0 {
		dates := make([]time.Time, len(curve))
		for i, p := range curve {
			dates[i] = p.Date
		}
		periodsPerYear = PeriodsPerYear(dates)
	}
	rep.PeriodsPerYear = periodsPerYear

	first, last := curve[0].NAV, curve[len(curve)-1].NAV
	if first > 0 {
		rep.TotalReturn = metric(last/first - 1)
	}

	// CAGR needs at least two points and a positive annualization base.
	periods := float64(len(curve) - 1)
	if periods > 0 && first > 0 && periodsPerYear > 0 {
		rep.CAGR = metric(math.Pow(last/first, periodsPerYear/periods) - 1)
	}

	rep.MaxDrawdown = maxDrawdown(curve)

	if returns := periodReturns(curve); len(returns) >= 2 {
		sd := stat.StdDev(returns, nil)
		vol := sd * math.Sqrt(periodsPerYear)
		rep.Volatility = metric(vol)
		if vol > 0 && rep.CAGR.Valid {
			rep.Sharpe = metric(rep.CAGR.Value / vol)
		}
	}

	rep.WinRate, rep.RoundTrips = winRate(trades)
	return rep
}

// maxDrawdown is the single forward pass over the curve: track the running
// peak, record the deepest percentage decline from it. The result is <= 0.
func maxDrawdown(curve []backtest.EquityPoint) Metric {
	if len(curve) == 0 {
		return Metric{}
	}
	peak := curve[0].NAV
	if peak <= 0 {
		return Metric{}
	}
	worst := 0.0
	for _, p := range curve {
		if p.NAV > peak {
			peak = p.NAV
		}
		if dd := (p.NAV - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return metric(worst)
}

func periodReturns(curve []backtest.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].NAV <= 0 {
			continue
		}
		out = append(out, curve[i].NAV/curve[i-1].NAV-1)
	}
	return out
}

type lot struct {
	shares float64
	price  float64
	cost   float64
}

// winRate FIFO-matches buys to later sells per instrument and reports the
// fraction of closed round trips whose price change, net of both sides'
// transaction costs, was positive. Open lots at the end of the run are not
// round trips and do not count.
func winRate(trades []backtest.Trade) (Metric, int) {
	open := make(map[string][]lot)
	wins, total := 0, 0

	for _, t := range trades {
		if t.Shares > 0 {
			open[t.Code] = append(open[t.Code], lot{shares: t.Shares, price: t.Price, cost: t.Cost})
			continue
		}
		remaining := -t.Shares
		for remaining > 0 && len(open[t.Code]) > 0 {
			l := &open[t.Code][0]
			matched := math.Min(remaining, l.shares)

			buyCost := l.cost * matched / l.shares
			sellCost := t.Cost * matched / -t.Shares
			pnl := matched*(t.Price-l.price) - buyCost - sellCost

			total++
			if pnl > 0 {
				wins++
			}

			l.shares -= matched
			l.cost -= buyCost
			remaining -= matched
			if l.shares <= 1e-9 {
				open[t.Code] = open[t.Code][1:]
			}
		}
	}

	if total == 0 {
		return Metric{}, 0
	}
	return metric(float64(wins) / float64(total)), total
}
