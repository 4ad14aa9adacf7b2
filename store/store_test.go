package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotation/backtest"
	"rotation/market"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func bar(code string, date time.Time, close float64) market.Bar {
	return market.Bar{
		Code: code, Date: date,
		Open: close * 0.99, High: close * 1.01, Low: close * 0.98, Close: close,
		Volume: 10_000, Turnover: close * 10_000,
	}
}

func TestBarsRoundTrip(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.UpsertBars([]market.Bar{
		bar("600100", d(2024, 1, 3), 11),
		bar("600100", d(2024, 1, 2), 10),
		bar("600200", d(2024, 1, 2), 20),
	}))

	got, err := s.Bars("600100", d(2024, 1, 1), d(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Date ascending regardless of insert order.
	assert.Equal(t, d(2024, 1, 2), got[0].Date)
	assert.Equal(t, 10.0, got[0].Close)
	assert.Equal(t, d(2024, 1, 3), got[1].Date)
	assert.Equal(t, int64(10_000), got[1].Volume)
}

func TestBarsRangeFilter(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.UpsertBars([]market.Bar{
		bar("600100", d(2024, 1, 2), 10),
		bar("600100", d(2024, 1, 3), 11),
		bar("600100", d(2024, 1, 4), 12),
	}))

	got, err := s.Bars("600100", d(2024, 1, 3), d(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 11.0, got[0].Close)
}

func TestBarsUnknownInstrument(t *testing.T) {
	s := testStore(t)

	_, err := s.Bars("999999", d(2024, 1, 1), d(2024, 1, 31))
	assert.ErrorIs(t, err, backtest.ErrUnknownInstrument)

	// A known security with no bars in range is empty, not an error.
	require.NoError(t, s.UpsertSecurities([]Security{{Code: "600100", Name: "Alpha", Active: true}}))
	got, err := s.Bars("600100", d(2024, 1, 1), d(2024, 1, 31))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertBarsReplaces(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.UpsertBars([]market.Bar{bar("600100", d(2024, 1, 2), 10)}))
	require.NoError(t, s.UpsertBars([]market.Bar{bar("600100", d(2024, 1, 2), 10.5)}))

	got, err := s.Bars("600100", d(2024, 1, 2), d(2024, 1, 2))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10.5, got[0].Close)
}

func TestSnapshot(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.UpsertSecurities([]Security{
		{Code: "600100", Name: "Alpha", MarketCap: 3e9, FloatCap: 2e9, PE: 12, PB: 1.5, Active: true},
		{Code: "600200", Name: "Beta", MarketCap: 5e9, FloatCap: 4e9, PE: 8, ST: true, Active: true},
		{Code: "600300", Name: "Gone", MarketCap: 1e9, FloatCap: 1e9, Active: false},
	}))
	require.NoError(t, s.UpsertBars([]market.Bar{
		bar("600100", d(2024, 1, 5), 15),
		bar("600200", d(2024, 1, 5), 22),
		bar("600300", d(2024, 1, 5), 9),
	}))

	t.Run("exact date", func(t *testing.T) {
		snap, err := s.Snapshot(d(2024, 1, 5))
		require.NoError(t, err)
		require.Len(t, snap.Members, 2) // the inactive security is excluded

		assert.Equal(t, "600100", snap.Members[0].Instrument.Code)
		assert.Equal(t, "Alpha", snap.Members[0].Instrument.Name)
		assert.Equal(t, 15.0, snap.Members[0].Close)
		assert.Equal(t, 2e9, snap.Members[0].FloatCap)
		assert.False(t, snap.Members[0].ST)
		assert.True(t, snap.Members[1].ST)
	})

	t.Run("resolves to the latest trade date at or before", func(t *testing.T) {
		snap, err := s.Snapshot(d(2024, 1, 8))
		require.NoError(t, err)
		require.Len(t, snap.Members, 2)
		assert.Equal(t, 15.0, snap.Members[0].Close)
	})

	t.Run("before any history", func(t *testing.T) {
		snap, err := s.Snapshot(d(2023, 12, 1))
		require.NoError(t, err)
		assert.Empty(t, snap.Members)
	})
}

func TestTradingDates(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.UpsertBars([]market.Bar{
		bar("600100", d(2024, 1, 2), 10),
		bar("600200", d(2024, 1, 2), 20),
		bar("600100", d(2024, 1, 3), 11),
		bar("600200", d(2024, 1, 5), 21),
	}))

	cal, err := s.TradingDates(d(2024, 1, 1), d(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, market.Calendar{d(2024, 1, 2), d(2024, 1, 3), d(2024, 1, 5)}, cal)
	require.NoError(t, cal.Validate())
}

func TestSecurityCodes(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.UpsertSecurities([]Security{
		{Code: "600200", Name: "Beta", Active: true},
		{Code: "600100", Name: "Alpha", Active: true},
		{Code: "600300", Name: "Gone", Active: false},
	}))

	codes, err := s.SecurityCodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"600100", "600200"}, codes)
}
