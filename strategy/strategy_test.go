package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation/market"
	"rotation/universe"
)

func member(code, name string, close, floatCap float64) universe.Member {
	return universe.Member{
		Instrument: market.Instrument{Code: code, Name: name},
		Close:      close,
		MarketCap:  floatCap * 1.5,
		FloatCap:   floatCap,
	}
}

func snapOf(members ...universe.Member) universe.Snapshot {
	return universe.Snapshot{
		AsOf:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Members: members,
	}
}

func TestTargetWeightSumAndCodes(t *testing.T) {
	tgt := Target{Weights: map[string]float64{"600519": 0.5, "000001": 0.3}}
	assert.InDelta(t, 0.8, tgt.WeightSum(), 1e-12)
	assert.Equal(t, []string{"000001", "600519"}, tgt.Codes())

	assert.Zero(t, Target{}.WeightSum())
	assert.Empty(t, Target{}.Codes())
}

func TestRegistry(t *testing.T) {
	t.Run("builtin rules are registered", func(t *testing.T) {
		names := Names()
		assert.Contains(t, names, "smallcap")
		assert.Contains(t, names, "lowpe")
	})

	t.Run("lookup is case and space insensitive", func(t *testing.T) {
		r, err := New("  SmallCap ", Params{})
		require.NoError(t, err)
		assert.Equal(t, "smallcap", r.Name())
	})

	t.Run("unknown name lists what exists", func(t *testing.T) {
		_, err := New("momentum", Params{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "smallcap")
	})
}

func TestSmallCapSelect(t *testing.T) {
	rule := &SmallCap{MinPrice: 10, ExcludeST: true, MainBoard: true}

	snap := snapOf(
		member("600100", "Alpha", 15, 5e9),
		member("600200", "Beta", 12, 2e9),
		member("600300", "*ST Gamma", 11, 1e9), // ST excluded
		member("300750", "ChiNext", 50, 1e9),   // off the main board
		member("600400", "Delta", 8, 1e9),      // below min price
		member("600500", "Epsilon", 20, 3e9),
		member("600600", "NoFloat", 30, 0), // no float cap data
	)

	tgt, err := rule.Select(snap, 2)
	require.NoError(t, err)

	// Smallest two eligible floats: Beta (2e9) and Epsilon (3e9).
	assert.Equal(t, []string{"600200", "600500"}, tgt.Codes())
	assert.InDelta(t, 0.5, tgt.Weights["600200"], 1e-12)
	assert.InDelta(t, 0.5, tgt.Weights["600500"], 1e-12)
}

func TestSmallCapShortfallHoldsCash(t *testing.T) {
	rule := &SmallCap{MinPrice: 10}
	tgt, err := rule.Select(snapOf(member("600100", "Alpha", 15, 1e9)), 5)
	require.NoError(t, err)

	// One pick out of five requested: 1/5 invested, the rest stays cash.
	require.Len(t, tgt.Weights, 1)
	assert.InDelta(t, 0.2, tgt.Weights["600100"], 1e-12)
	assert.InDelta(t, 0.2, tgt.WeightSum(), 1e-12)
}

func TestSmallCapEmptyUniverse(t *testing.T) {
	rule := &SmallCap{MinPrice: 10}
	tgt, err := rule.Select(snapOf(), 5)
	require.NoError(t, err)
	assert.Empty(t, tgt.Weights)
	assert.Zero(t, tgt.WeightSum())
}

func TestSmallCapTieBreakByCode(t *testing.T) {
	rule := &SmallCap{MinPrice: 10}
	snap := snapOf(
		member("600300", "C", 15, 1e9),
		member("600100", "A", 15, 1e9),
		member("600200", "B", 15, 1e9),
	)

	tgt, err := rule.Select(snap, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"600100", "600200"}, tgt.Codes())
}

func TestSmallCapDeterminism(t *testing.T) {
	rule := &SmallCap{MinPrice: 10, MainBoard: true}
	snap := snapOf(
		member("600100", "A", 15, 5e9),
		member("600200", "B", 12, 2e9),
		member("600500", "E", 20, 3e9),
	)

	first, err := rule.Select(snap, 2)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := rule.Select(snap, 2)
		require.NoError(t, err)
		assert.Equal(t, first.Weights, again.Weights)
	}
}

func TestSmallCapFactoryDefaults(t *testing.T) {
	r, err := New("smallcap", Params{})
	require.NoError(t, err)

	sc, ok := r.(*SmallCap)
	require.True(t, ok)
	assert.Equal(t, 10.0, sc.MinPrice)
}

func TestLowPESelect(t *testing.T) {
	withPE := func(m universe.Member, pe float64) universe.Member {
		m.PE = pe
		return m
	}
	rule := &LowPE{MinMarketCap: 1e9, MainBoard: true}

	snap := snapOf(
		withPE(member("600100", "Cheap", 15, 2e9), 8),
		withPE(member("600200", "Cheaper", 12, 2e9), 5),
		withPE(member("600300", "Loss", 11, 2e9), -3),     // negative earnings
		withPE(member("600400", "Tiny", 8, 0.4e9), 4),     // below the cap floor
		withPE(member("688981", "STAR", 50, 2e9), 3),      // off the main board
		withPE(member("600500", "Expensive", 20, 2e9), 40),
	)

	tgt, err := rule.Select(snap, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"600100", "600200"}, tgt.Codes())
	assert.InDelta(t, 0.5, tgt.Weights["600200"], 1e-12)
}

func TestLowPETieBreakByCode(t *testing.T) {
	withPE := func(m universe.Member, pe float64) universe.Member {
		m.PE = pe
		return m
	}
	rule := &LowPE{}
	snap := snapOf(
		withPE(member("600200", "B", 10, 2e9), 7),
		withPE(member("600100", "A", 10, 2e9), 7),
	)

	tgt, err := rule.Select(snap, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"600100"}, tgt.Codes())
}
