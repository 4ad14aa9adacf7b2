package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"

	"rotation/market"
)

// ImportBars loads daily bars from a CSV dataset into the store. The path
// may be a plain .csv, an .xz-compressed CSV, or a .zip archive of CSVs.
// Rows are code,date,open,high,low,close,volume,turnover with an optional
// header. Returns the number of bars imported.
func (s *Store) ImportBars(path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return s.importZip(path)
	case ".xz":
		return s.importXZ(path)
	default:
		return s.importCSVFile(path)
	}
}

func (s *Store) importZip(path string) (int, error) {
	dir, err := os.MkdirTemp("", "rotation-import-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)

	if err := unzip.Extract(path, dir); err != nil {
		return 0, fmt.Errorf("extract %s: %w", path, err)
	}

	total := 0
	err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || strings.ToLower(filepath.Ext(p)) != ".csv" {
			return err
		}
		n, err := s.importCSVFile(p)
		total += n
		return err
	})
	return total, err
}

func (s *Store) importXZ(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("xz %s: %w", path, err)
	}
	return s.importCSV(r, path)
}

func (s *Store) importCSVFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.importCSV(f, path)
}

func (s *Store) importCSV(r io.Reader, name string) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var bars []market.Bar
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		line++
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "code") {
			continue
		}
		b, err := parseBarRow(row)
		if err != nil {
			return 0, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		bars = append(bars, b)
	}

	if err := s.UpsertBars(bars); err != nil {
		return 0, err
	}
	s.log.Info().Str("file", name).Int("bars", len(bars)).Msg("imported")
	return len(bars), nil
}

// ImportSecurities loads reference rows from a CSV with columns
// code,name,list_date,market_cap,float_cap,pe,pb,st,active.
func (s *Store) ImportSecurities(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var secs []Security
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		line++
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "code") {
			continue
		}
		sec, err := parseSecurityRow(row)
		if err != nil {
			return 0, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		secs = append(secs, sec)
	}

	if err := s.UpsertSecurities(secs); err != nil {
		return 0, err
	}
	s.log.Info().Str("file", path).Int("securities", len(secs)).Msg("imported")
	return len(secs), nil
}

func parseBarRow(row []string) (market.Bar, error) {
	var b market.Bar
	if len(row) < 6 {
		return b, fmt.Errorf("need at least 6 columns (code,date,open,high,low,close), got %d", len(row))
	}
	b.Code = strings.TrimSpace(row[0])
	d, err := time.Parse(dateLayout, strings.TrimSpace(row[1]))
	if err != nil {
		return b, fmt.Errorf("bad date %q", row[1])
	}
	b.Date = d

	floats := []*float64{&b.Open, &b.High, &b.Low, &b.Close}
	for i, dst := range floats {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[2+i]), 64)
		if err != nil {
			return b, fmt.Errorf("bad number %q", row[2+i])
		}
		*dst = v
	}
	if len(row) > 6 {
		if v, err := strconv.ParseInt(strings.TrimSpace(row[6]), 10, 64); err == nil {
			b.Volume = v
		}
	}
	if len(row) > 7 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(row[7]), 64); err == nil {
			b.Turnover = v
		}
	}
	return b, nil
}

func parseSecurityRow(row []string) (Security, error) {
	var sec Security
	if len(row) < 2 {
		return sec, fmt.Errorf("need at least code,name, got %d columns", len(row))
	}
	sec.Code = strings.TrimSpace(row[0])
	sec.Name = strings.TrimSpace(row[1])
	sec.Active = true

	if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
		if d, err := time.Parse(dateLayout, strings.TrimSpace(row[2])); err == nil {
			sec.ListDate = d
		}
	}
	parse := func(i int) float64 {
		if len(row) <= i {
			return 0
		}
		v, _ := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		return v
	}
	sec.MarketCap = parse(3)
	sec.FloatCap = parse(4)
	sec.PE = parse(5)
	sec.PB = parse(6)
	if len(row) > 7 {
		sec.ST = strings.TrimSpace(row[7]) == "1"
	}
	if len(row) > 8 {
		sec.Active = strings.TrimSpace(row[8]) != "0"
	}
	return sec, nil
}
