package store

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"rotation/market"
)

const barCSV = `code,date,open,high,low,close,volume,turnover
600100,2024-01-02,9.9,10.2,9.8,10.0,10000,100000
600100,2024-01-03,10.0,11.1,10.0,11.0,12000,130000
600200,2024-01-02,19.8,20.4,19.6,20.0,8000,160000
`

func TestImportBarsCSV(t *testing.T) {
	s := testStore(t)
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(barCSV), 0o644))

	n, err := s.ImportBars(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.Bars("600100", d(2024, 1, 1), d(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 11.0, got[1].Close)
	assert.Equal(t, int64(12000), got[1].Volume)
	assert.Equal(t, 130000.0, got[1].Turnover)
}

func TestImportBarsNoHeader(t *testing.T) {
	s := testStore(t)
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte("600100,2024-01-02,9.9,10.2,9.8,10.0\n"), 0o644))

	n, err := s.ImportBars(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportBarsXZ(t *testing.T) {
	s := testStore(t)
	path := filepath.Join(t.TempDir(), "bars.csv.xz")

	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := xz.NewWriter(f)
	require.NoError(t, err)
	_, err = w.Write([]byte(barCSV))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	n, err := s.ImportBars(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestImportBarsZip(t *testing.T) {
	s := testStore(t)
	path := filepath.Join(t.TempDir(), "bars.zip")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"a.csv":      "600100,2024-01-02,9.9,10.2,9.8,10.0\n",
		"sub/b.csv":  "600200,2024-01-02,19.8,20.4,19.6,20.0\n",
		"readme.txt": "not a dataset\n",
	} {
		entry, err := zw.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	n, err := s.ImportBars(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cal, err := s.TradingDates(d(2024, 1, 1), d(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, cal, 1)
}

func TestImportBarsBadRow(t *testing.T) {
	s := testStore(t)
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte("600100,not-a-date,9.9,10.2,9.8,10.0\n"), 0o644))

	_, err := s.ImportBars(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestImportSecurities(t *testing.T) {
	s := testStore(t)
	csv := `code,name,list_date,market_cap,float_cap,pe,pb,st,active
600100,Alpha,2010-05-20,3000000000,2000000000,12.5,1.4,0,1
600200,*ST Beta,2015-01-09,1000000000,800000000,-5,0.9,1,1
600300,Gone,2012-03-03,500000000,400000000,8,1.1,0,0
`
	path := filepath.Join(t.TempDir(), "securities.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	n, err := s.ImportSecurities(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	codes, err := s.SecurityCodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"600100", "600200"}, codes)

	require.NoError(t, s.UpsertBars([]market.Bar{bar("600200", d(2024, 1, 5), 3)}))
	snap, err := s.Snapshot(d(2024, 1, 5))
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)
	assert.True(t, snap.Members[0].ST)
	assert.Equal(t, -5.0, snap.Members[0].PE)
}

func TestParseBarRowDefaults(t *testing.T) {
	b, err := parseBarRow([]string{"600100", "2024-01-02", "9.9", "10.2", "9.8", "10.0"})
	require.NoError(t, err)
	assert.Zero(t, b.Volume)
	assert.Zero(t, b.Turnover)

	_, err = parseBarRow([]string{"600100", "2024-01-02", "9.9"})
	assert.Error(t, err)
}
