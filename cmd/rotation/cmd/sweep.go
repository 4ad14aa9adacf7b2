package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rotation/backtest"
	"rotation/journal"
	"rotation/market"
	"rotation/perf"
	"rotation/pkg/id"
	"rotation/store"
	"rotation/strategy"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a parameter sweep of backtests concurrently",
	Long: `Sweep runs one backtest per combination of selection size and cost
rate, in parallel over a worker pool, and prints a comparison table.

Example:
  rotation sweep --config rotation.yaml --sizes 5,10,20 --costs 0,0.001,0.003`,
	RunE: runSweep,
}

var (
	swSizes   string
	swCosts   string
	swWorkers int
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to YAML/JSON config")
	sweepCmd.Flags().StringVar(&swSizes, "sizes", "5,10,20", "comma-separated selection sizes")
	sweepCmd.Flags().StringVar(&swCosts, "costs", "0,0.001", "comma-separated cost rates")
	sweepCmd.Flags().IntVar(&swWorkers, "workers", 0, "worker count (0 = NumCPU)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sizes, err := parseInts(swSizes)
	if err != nil {
		return fmt.Errorf("bad --sizes: %w", err)
	}
	costs, err := parseFloats(swCosts)
	if err != nil {
		return fmt.Errorf("bad --costs: %w", err)
	}

	st, err := store.Open(cfg.Data.DB, log)
	if err != nil {
		return err
	}
	defer st.Close()

	start, _ := cfg.StartDate()
	end, _ := cfg.EndDate()
	cal, err := st.TradingDates(start, end)
	if err != nil {
		return fmt.Errorf("trading calendar: %w", err)
	}

	rule, err := strategy.New(cfg.Strategy.Name, strategy.Params{
		MinPrice:     cfg.Strategy.MinPrice,
		MinMarketCap: cfg.Strategy.MinMarketCap,
		ExcludeST:    cfg.Strategy.ExcludeST,
		MainBoard:    cfg.Strategy.MainBoard,
	})
	if err != nil {
		return err
	}

	var configs []backtest.NamedConfig
	for _, n := range sizes {
		for _, c := range costs {
			schedule, err := market.ScheduleByName(cfg.Backtest.Schedule, cal)
			if err != nil {
				return err
			}
			configs = append(configs, backtest.NamedConfig{
				Name: fmt.Sprintf("top%d_cost%g", n, c),
				Config: backtest.Config{
					Calendar:       cal,
					Schedule:       schedule,
					Rule:           rule,
					SelectionSize:  n,
					CostRate:       c,
					InitialCapital: cfg.Backtest.InitialCapital,
					LotSize:        cfg.Backtest.LotSize,
				},
			})
		}
	}

	pool := backtest.NewPool(st, st, log)
	if swWorkers > 0 {
		pool.Workers = swWorkers
	}
	outcomes := pool.Run(configs)

	var j *journal.SQLite
	if cfg.Journal.DB != "" {
		j, err = journal.NewSQLite(cfg.Journal.DB)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tFINAL NAV\tRETURN\tCAGR\tMAX DD\tSHARPE\tTRADES\tERR")
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t%v\n", o.Name, o.Err)
			continue
		}
		rep := perf.Analyze(o.Result.Curve, o.Result.Trades, cfg.Backtest.PeriodsPerYear)
		final := o.Result.Curve[len(o.Result.Curve)-1].NAV
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%s\t%s\t%d\t\n",
			o.Name, final, rep.TotalReturn.Pct(), rep.CAGR.Pct(),
			rep.MaxDrawdown.Pct(), rep.Sharpe, len(o.Result.Trades))

		if j != nil {
			run := journal.Run{
				RunID:          id.New(),
				Created:        time.Now().UTC(),
				Strategy:       cfg.Strategy.Name,
				Schedule:       cfg.Backtest.Schedule,
				SelectionSize:  o.Config.SelectionSize,
				CostRate:       o.Config.CostRate,
				InitialCapital: o.Config.InitialCapital,
				LotSize:        o.Config.LotSize,
				Start:          cal[0],
				End:            cal[len(cal)-1],
				FinalNAV:       final,
				Warnings:       len(o.Result.Warnings),
				Report:         rep,
			}
			if err := j.RecordRun(run, o.Result); err != nil {
				return fmt.Errorf("record %s: %w", o.Name, err)
			}
		}
	}
	return tw.Flush()
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
