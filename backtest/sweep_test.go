package backtest

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRun(t *testing.T) {
	cal, prices := scenario()
	snaps := &fakeSnaps{prices: prices}
	pool := NewPool(prices, snaps, zerolog.Nop())
	pool.Workers = 3

	var configs []NamedConfig
	for _, cost := range []float64{0, 0.0005, 0.001, 0.003} {
		configs = append(configs, NamedConfig{Name: fmt.Sprintf("cost=%g", cost), Config: scenarioConfig(cal, cost)})
	}

	out := pool.Run(configs)
	require.Len(t, out, len(configs))

	for i, o := range out {
		assert.Equal(t, configs[i].Name, o.Name, "outcomes keep input order")
		require.NoError(t, o.Err)
		require.NotNil(t, o.Result)
		require.Len(t, o.Result.Curve, len(cal))
	}

	// The zero-cost run matches a plain sequential Simulator exactly.
	sim := NewSimulator(prices, &fakeSnaps{prices: prices}, zerolog.Nop())
	solo, err := sim.Run(scenarioConfig(cal, 0))
	require.NoError(t, err)
	assert.Equal(t, solo.Curve, out[0].Result.Curve)
	assert.Equal(t, solo.Trades, out[0].Result.Trades)

	// Heavier costs never beat lighter ones on this fixture.
	final := func(o RunOutcome) float64 { return o.Result.Curve[len(o.Result.Curve)-1].NAV }
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, final(out[i]), final(out[i-1]))
	}
}

func TestPoolRunIsolatesFailures(t *testing.T) {
	cal, prices := scenario()
	pool := NewPool(prices, &fakeSnaps{prices: prices}, zerolog.Nop())

	bad := scenarioConfig(cal, 0)
	bad.SelectionSize = 0

	out := pool.Run([]NamedConfig{
		{Name: "bad", Config: bad},
		{Name: "good", Config: scenarioConfig(cal, 0)},
	})
	require.Len(t, out, 2)

	assert.Error(t, out[0].Err)
	assert.Nil(t, out[0].Result)

	require.NoError(t, out[1].Err)
	require.NotNil(t, out[1].Result)
}

func TestPoolRunWorkerFloor(t *testing.T) {
	cal, prices := scenario()
	pool := NewPool(prices, &fakeSnaps{prices: prices}, zerolog.Nop())
	pool.Workers = 0 // clamped to one

	out := pool.Run([]NamedConfig{{Name: "only", Config: scenarioConfig(cal, 0)}})
	require.Len(t, out, 1)
	assert.NoError(t, out[0].Err)
}
