// journal/csv.go
package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"rotation/backtest"
	"rotation/perf"
)

// CSVExporter writes a run as two CSV files, <run_id>_equity.csv and
// <run_id>_trades.csv, under Dir. Export returns the equity file path.
type CSVExporter struct {
	Dir string
}

func (e CSVExporter) Export(run Run, curve []backtest.EquityPoint, trades []backtest.Trade, rep perf.Report) (string, error) {
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return "", err
	}

	equityPath := filepath.Join(e.Dir, run.RunID+"_equity.csv")
	if err := writeCSV(equityPath, []string{"date", "nav"}, len(curve), func(i int) []string {
		return []string{curve[i].Date.Format("2006-01-02"), f(curve[i].NAV)}
	}); err != nil {
		return "", err
	}

	tradesPath := filepath.Join(e.Dir, run.RunID+"_trades.csv")
	if err := writeCSV(tradesPath, []string{"date", "code", "shares", "price", "cost"}, len(trades), func(i int) []string {
		t := trades[i]
		return []string{t.Date.Format("2006-01-02"), t.Code, f(t.Shares), f(t.Price), f(t.Cost)}
	}); err != nil {
		return "", err
	}

	return equityPath, nil
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
