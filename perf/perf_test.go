package perf

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation/backtest"
)

func curveOf(start time.Time, step time.Duration, navs ...float64) []backtest.EquityPoint {
	out := make([]backtest.EquityPoint, len(navs))
	for i, nav := range navs {
		out[i] = backtest.EquityPoint{Date: start.Add(time.Duration(i) * step), NAV: nav}
	}
	return out
}

func TestMetricString(t *testing.T) {
	assert.Equal(t, "n/a", Metric{}.String())
	assert.Equal(t, "n/a", Metric{}.Pct())
	assert.Equal(t, "0.1234", metric(0.12341).String())
	assert.Equal(t, "12.34%", metric(0.12341).Pct())
}

func TestPeriodsPerYear(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("too few dates", func(t *testing.T) {
		assert.Zero(t, PeriodsPerYear(nil))
		assert.Zero(t, PeriodsPerYear([]time.Time{start}))
	})

	t.Run("daily spacing", func(t *testing.T) {
		dates := []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)}
		assert.InDelta(t, 365.25, PeriodsPerYear(dates), 1e-9)
	})

	t.Run("weekly spacing", func(t *testing.T) {
		dates := []time.Time{start, start.AddDate(0, 0, 7), start.AddDate(0, 0, 14)}
		assert.InDelta(t, 365.25/7, PeriodsPerYear(dates), 1e-9)
	})
}

func TestMaxDrawdown(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("known curve", func(t *testing.T) {
		// Worst decline is from the 130 peak down to 80.
		curve := curveOf(start, 24*time.Hour, 100, 120, 90, 130, 80)
		dd := maxDrawdown(curve)
		require.True(t, dd.Valid)
		assert.InDelta(t, -50.0/130.0, dd.Value, 1e-12)
	})

	t.Run("worst leg is from the first peak", func(t *testing.T) {
		curve := curveOf(start, 24*time.Hour, 100, 120, 80, 90)
		dd := maxDrawdown(curve)
		require.True(t, dd.Valid)
		assert.InDelta(t, -1.0/3.0, dd.Value, 1e-12)
	})

	t.Run("monotonic curve has zero drawdown", func(t *testing.T) {
		curve := curveOf(start, 24*time.Hour, 100, 110, 120)
		dd := maxDrawdown(curve)
		require.True(t, dd.Valid)
		assert.Zero(t, dd.Value)
	})

	t.Run("empty curve is undefined", func(t *testing.T) {
		assert.False(t, maxDrawdown(nil).Valid)
	})
}

func TestAnalyzeReturns(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("doubling over one year", func(t *testing.T) {
		// 13 monthly points spanning 12 periods, explicit 12 periods/year.
		navs := make([]float64, 13)
		for i := range navs {
			navs[i] = 100 * math.Pow(2, float64(i)/12)
		}
		curve := make([]backtest.EquityPoint, 13)
		for i, nav := range navs {
			curve[i] = backtest.EquityPoint{Date: start.AddDate(0, i, 0), NAV: nav}
		}

		rep := Analyze(curve, nil, 12)
		require.True(t, rep.TotalReturn.Valid)
		assert.InDelta(t, 1.0, rep.TotalReturn.Value, 1e-9)
		require.True(t, rep.CAGR.Valid)
		assert.InDelta(t, 1.0, rep.CAGR.Value, 1e-9)
		assert.Equal(t, 12.0, rep.PeriodsPerYear)
	})

	t.Run("derives periods from the curve dates", func(t *testing.T) {
		curve := curveOf(start, 24*time.Hour, 100, 101, 102)
		rep := Analyze(curve, nil, 0)
		assert.InDelta(t, 365.25, rep.PeriodsPerYear, 1e-9)
	})

	t.Run("single point leaves rates undefined", func(t *testing.T) {
		curve := curveOf(start, 24*time.Hour, 100)
		rep := Analyze(curve, nil, 252)
		require.True(t, rep.TotalReturn.Valid)
		assert.Zero(t, rep.TotalReturn.Value)
		assert.False(t, rep.CAGR.Valid)
		assert.False(t, rep.Volatility.Valid)
		assert.False(t, rep.Sharpe.Valid)
	})

	t.Run("empty curve yields an empty report", func(t *testing.T) {
		rep := Analyze(nil, nil, 252)
		assert.False(t, rep.TotalReturn.Valid)
		assert.False(t, rep.CAGR.Valid)
		assert.False(t, rep.MaxDrawdown.Valid)
	})
}

func TestAnalyzeVolatility(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("flat curve has zero volatility and no sharpe", func(t *testing.T) {
		curve := curveOf(start, 24*time.Hour, 100, 100, 100, 100)
		rep := Analyze(curve, nil, 252)
		require.True(t, rep.Volatility.Valid)
		assert.Zero(t, rep.Volatility.Value)
		assert.False(t, rep.Sharpe.Valid)
	})

	t.Run("alternating returns", func(t *testing.T) {
		// Period returns +10%, then 100/110: sample stddev scaled by sqrt(4).
		curve := curveOf(start, 24*time.Hour, 100, 110, 100, 110, 100)
		rep := Analyze(curve, nil, 4)
		require.True(t, rep.Volatility.Valid)
		assert.Greater(t, rep.Volatility.Value, 0.0)
		require.True(t, rep.Sharpe.Valid)
	})
}

func TestWinRate(t *testing.T) {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	trade := func(offset int, code string, shares, price, cost float64) backtest.Trade {
		return backtest.Trade{Date: d.AddDate(0, 0, offset), Code: code, Shares: shares, Price: price, Cost: cost}
	}

	t.Run("no trades", func(t *testing.T) {
		wr, n := winRate(nil)
		assert.False(t, wr.Valid)
		assert.Zero(t, n)
	})

	t.Run("open position is not a round trip", func(t *testing.T) {
		wr, n := winRate([]backtest.Trade{trade(0, "A", 100, 10, 0)})
		assert.False(t, wr.Valid)
		assert.Zero(t, n)
	})

	t.Run("wins and losses", func(t *testing.T) {
		trades := []backtest.Trade{
			trade(0, "A", 100, 10, 0),
			trade(0, "B", 100, 20, 0),
			trade(30, "A", -100, 12, 0), // win
			trade(30, "B", -100, 18, 0), // loss
			trade(30, "C", 100, 15, 0),
			trade(60, "C", -100, 20, 0), // win
		}
		wr, n := winRate(trades)
		require.True(t, wr.Valid)
		assert.Equal(t, 3, n)
		assert.InDelta(t, 2.0/3.0, wr.Value, 1e-12)
	})

	t.Run("costs turn a flat trip into a loss", func(t *testing.T) {
		trades := []backtest.Trade{
			trade(0, "A", 100, 10, 5),
			trade(30, "A", -100, 10, 5),
		}
		wr, n := winRate(trades)
		require.True(t, wr.Valid)
		assert.Equal(t, 1, n)
		assert.Zero(t, wr.Value)
	})

	t.Run("fifo matching across partial sells", func(t *testing.T) {
		// First lot at 10, second at 20. Selling 150 closes the whole first
		// lot at a gain and half the second at a loss.
		trades := []backtest.Trade{
			trade(0, "A", 100, 10, 0),
			trade(10, "A", 100, 20, 0),
			trade(30, "A", -150, 15, 0),
		}
		wr, n := winRate(trades)
		require.True(t, wr.Valid)
		assert.Equal(t, 2, n)
		assert.InDelta(t, 0.5, wr.Value, 1e-12)
	})
}
