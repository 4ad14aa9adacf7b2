package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"rotation/backtest"
	"rotation/perf"
)

// OrgExporter renders a run as an org-mode document under Dir.
type OrgExporter struct {
	Dir string
}

type orgData struct {
	Run    Run
	Report perf.Report
	Curve  []backtest.EquityPoint
	Trades []backtest.Trade
}

var orgFuncs = template.FuncMap{
	"date": func(v interface{ Format(string) string }) string { return v.Format("2006-01-02") },
}

func (e OrgExporter) Export(run Run, curve []backtest.EquityPoint, trades []backtest.Trade, rep perf.Report) (string, error) {
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return "", err
	}

	t, err := template.New("run").Funcs(orgFuncs).Parse(orgTemplate)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, orgData{Run: run, Report: rep, Curve: curve, Trades: trades}); err != nil {
		return "", err
	}

	path := filepath.Join(e.Dir, run.RunID+".org")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}

const orgTemplate = `
* ROTATION RUN: {{.Run.Strategy}} top-{{.Run.SelectionSize}} ({{.Run.Schedule}})
:PROPERTIES:
:RUN_ID:      {{.Run.RunID}}
:STRATEGY:    {{.Run.Strategy}}
:SCHEDULE:    {{.Run.Schedule}}
:START_DATE:  {{date .Run.Start}}
:END_DATE:    {{date .Run.End}}
:CAPITAL:     {{printf "%.2f" .Run.InitialCapital}}
:COST_RATE:   {{printf "%.4f" .Run.CostRate}}
:LOT_SIZE:    {{.Run.LotSize}}
:FINAL_NAV:   {{printf "%.2f" .Run.FinalNAV}}
:CREATED:     [{{.Run.Created.Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
| Metric            | Value |
|-------------------+-------|
| Total Return      | {{.Report.TotalReturn.Pct}} |
| CAGR              | {{.Report.CAGR.Pct}} |
| Max Drawdown      | {{.Report.MaxDrawdown.Pct}} |
| Volatility (ann.) | {{.Report.Volatility.Pct}} |
| Sharpe            | {{.Report.Sharpe}} |
| Win Rate          | {{.Report.WinRate.Pct}} |
| Round Trips       | {{.Report.RoundTrips}} |
| Periods/Year      | {{printf "%.1f" .Report.PeriodsPerYear}} |
| Warnings          | {{.Run.Warnings}} |

** Equity Curve
| Date | NAV |
|------+-----|
{{- range .Curve}}
| {{date .Date}} | {{printf "%.2f" .NAV}} |
{{- end}}

** Trades
| Date | Code | Shares | Price | Cost |
|------+------+--------+-------+------|
{{- range .Trades}}
| {{date .Date}} | {{.Code}} | {{printf "%.0f" .Shares}} | {{printf "%.2f" .Price}} | {{printf "%.2f" .Cost}} |
{{- end}}
`
