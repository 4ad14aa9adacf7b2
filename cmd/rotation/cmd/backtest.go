package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rotation/backtest"
	"rotation/config"
	"rotation/journal"
	"rotation/market"
	"rotation/perf"
	"rotation/pkg/id"
	"rotation/store"
	"rotation/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a rotation backtest",
	Long: `Backtest replays a selection rule over the trading calendar stored in
the market database and reports its performance.

Examples:
  rotation backtest --config rotation.yaml
  rotation backtest --db market.db --strategy smallcap --top 10 \
      --start 2023-01-01 --end 2024-12-31 --cost 0.001`,
	RunE: runBacktest,
}

var btConfigPath string

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to YAML/JSON config")
	addOverrideFlags(backtestCmd)
}

// Flag overrides layered on top of the config file; config.Default fills
// anything neither sets.
var (
	ovDB       string
	ovStrategy string
	ovTop      int
	ovStart    string
	ovEnd      string
	ovSchedule string
	ovCost     float64
	ovCapital  float64
	ovLot      int64
	ovMinPrice float64
	ovJournal  string
	ovExport   string
)

func addOverrideFlags(c *cobra.Command) {
	c.Flags().StringVar(&ovDB, "db", "", "market data SQLite path")
	c.Flags().StringVarP(&ovStrategy, "strategy", "s", "", "selection rule name")
	c.Flags().IntVarP(&ovTop, "top", "n", 0, "selection size")
	c.Flags().StringVar(&ovStart, "start", "", "start date YYYY-MM-DD")
	c.Flags().StringVar(&ovEnd, "end", "", "end date YYYY-MM-DD")
	c.Flags().StringVar(&ovSchedule, "schedule", "", "rebalance schedule (monthly, month-end, every:N)")
	c.Flags().Float64Var(&ovCost, "cost", -1, "transaction cost rate per side")
	c.Flags().Float64VarP(&ovCapital, "capital", "b", 0, "initial capital")
	c.Flags().Int64Var(&ovLot, "lot", -1, "share lot size")
	c.Flags().Float64Var(&ovMinPrice, "min-price", -1, "minimum close price filter")
	c.Flags().StringVar(&ovJournal, "journal", "", "run journal SQLite path")
	c.Flags().StringVar(&ovExport, "export", "", "report export format (org, csv, none)")
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if btConfigPath != "" {
		loaded, err := config.LoadFromFile(btConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if ovDB != "" {
		cfg.Data.DB = ovDB
	}
	if ovStrategy != "" {
		cfg.Strategy.Name = ovStrategy
	}
	if ovTop > 0 {
		cfg.Strategy.SelectionSize = ovTop
	}
	if ovStart != "" {
		cfg.Backtest.Start = ovStart
	}
	if ovEnd != "" {
		cfg.Backtest.End = ovEnd
	}
	if ovSchedule != "" {
		cfg.Backtest.Schedule = ovSchedule
	}
	if ovCost >= 0 {
		cfg.Backtest.CostRate = ovCost
	}
	if ovCapital > 0 {
		cfg.Backtest.InitialCapital = ovCapital
	}
	if ovLot >= 0 {
		cfg.Backtest.LotSize = ovLot
	}
	if ovMinPrice >= 0 {
		cfg.Strategy.MinPrice = ovMinPrice
	}
	if ovJournal != "" {
		cfg.Journal.DB = ovJournal
	}
	if ovExport != "" {
		cfg.Journal.Export = ovExport
	}
	return cfg, cfg.Validate()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	run, res, rep, err := executeRun(cfg)
	if err != nil {
		return err
	}

	if err := recordAndExport(cfg, run, res, rep); err != nil {
		return err
	}

	printRun(os.Stdout, run, res, rep)
	return nil
}

// executeRun wires providers, calendar, rule and simulator together for
// one configuration and returns the completed run.
func executeRun(cfg *config.Config) (journal.Run, *backtest.Result, perf.Report, error) {
	var run journal.Run

	st, err := store.Open(cfg.Data.DB, log)
	if err != nil {
		return run, nil, perf.Report{}, err
	}
	defer st.Close()

	start, _ := cfg.StartDate()
	end, _ := cfg.EndDate()

	cal, err := st.TradingDates(start, end)
	if err != nil {
		return run, nil, perf.Report{}, fmt.Errorf("trading calendar: %w", err)
	}

	schedule, err := market.ScheduleByName(cfg.Backtest.Schedule, cal)
	if err != nil {
		return run, nil, perf.Report{}, err
	}

	rule, err := strategy.New(cfg.Strategy.Name, strategy.Params{
		MinPrice:     cfg.Strategy.MinPrice,
		MinMarketCap: cfg.Strategy.MinMarketCap,
		ExcludeST:    cfg.Strategy.ExcludeST,
		MainBoard:    cfg.Strategy.MainBoard,
	})
	if err != nil {
		return run, nil, perf.Report{}, err
	}

	sim := backtest.NewSimulator(st, st, log)
	res, err := sim.Run(backtest.Config{
		Calendar:       cal,
		Schedule:       schedule,
		Rule:           rule,
		SelectionSize:  cfg.Strategy.SelectionSize,
		CostRate:       cfg.Backtest.CostRate,
		InitialCapital: cfg.Backtest.InitialCapital,
		LotSize:        cfg.Backtest.LotSize,
	})
	if err != nil {
		return run, nil, perf.Report{}, err
	}

	rep := perf.Analyze(res.Curve, res.Trades, cfg.Backtest.PeriodsPerYear)

	run = journal.Run{
		RunID:          id.New(),
		Created:        time.Now().UTC(),
		Strategy:       cfg.Strategy.Name,
		Schedule:       cfg.Backtest.Schedule,
		SelectionSize:  cfg.Strategy.SelectionSize,
		CostRate:       cfg.Backtest.CostRate,
		InitialCapital: cfg.Backtest.InitialCapital,
		LotSize:        cfg.Backtest.LotSize,
		Start:          cal[0],
		End:            cal[len(cal)-1],
		FinalNAV:       res.Curve[len(res.Curve)-1].NAV,
		Warnings:       len(res.Warnings),
		Report:         rep,
	}
	return run, res, rep, nil
}

func recordAndExport(cfg *config.Config, run journal.Run, res *backtest.Result, rep perf.Report) error {
	if cfg.Journal.DB != "" {
		j, err := journal.NewSQLite(cfg.Journal.DB)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		if err := j.RecordRun(run, res); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}

	var exporter journal.Exporter
	switch strings.ToLower(cfg.Journal.Export) {
	case "org":
		exporter = journal.OrgExporter{Dir: cfg.Journal.ExportDir}
	case "csv":
		exporter = journal.CSVExporter{Dir: cfg.Journal.ExportDir}
	default:
		return nil
	}
	path, err := exporter.Export(run, res.Curve, res.Trades, rep)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	log.Info().Str("path", path).Msg("report exported")
	return nil
}

func printRun(w io.Writer, run journal.Run, res *backtest.Result, rep perf.Report) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Rotation Backtest")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Run ID:        %s\n", run.RunID)
	fmt.Fprintf(w, "Strategy:      %s (top %d, %s)\n", run.Strategy, run.SelectionSize, run.Schedule)
	fmt.Fprintf(w, "Period:        %s .. %s\n", run.Start.Format("2006-01-02"), run.End.Format("2006-01-02"))
	fmt.Fprintf(w, "Capital:       %.2f\n", run.InitialCapital)
	fmt.Fprintf(w, "Cost Rate:     %.4f\n", run.CostRate)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Final NAV:     %.2f\n", run.FinalNAV)
	fmt.Fprintf(w, "Total Return:  %s\n", rep.TotalReturn.Pct())
	fmt.Fprintf(w, "CAGR:          %s\n", rep.CAGR.Pct())
	fmt.Fprintf(w, "Max Drawdown:  %s\n", rep.MaxDrawdown.Pct())
	fmt.Fprintf(w, "Volatility:    %s\n", rep.Volatility.Pct())
	fmt.Fprintf(w, "Sharpe:        %s\n", rep.Sharpe)
	fmt.Fprintf(w, "Win Rate:      %s (%d round trips)\n", rep.WinRate.Pct(), rep.RoundTrips)
	fmt.Fprintf(w, "Trades:        %d\n", len(res.Trades))
	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings:      %d (low confidence, inspect data gaps)\n", len(res.Warnings))
	}
}
