package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"rotation/internal/fetch"
	"rotation/store"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download daily bars into the market database",
	Long: `Fetch downloads forward-adjusted daily bars for the given codes and
upserts them into the SQLite market store. The endpoint defaults to the
public kline API and can be overridden with ROTATION_DATA_URL.

With --schedule the download repeats on a cron schedule until interrupted,
which keeps a long-lived store current.

Examples:
  rotation fetch --db market.db --codes 600519,000001 --start 2023-01-01
  rotation fetch --db market.db --all --schedule "0 18 * * MON-FRI"`,
	RunE: runFetch,
}

var (
	feDB       string
	feCodes    string
	feAll      bool
	feStart    string
	feEnd      string
	feRPS      float64
	feWorkers  int
	feSchedule string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&feDB, "db", "d", "./market.db", "market data SQLite path")
	fetchCmd.Flags().StringVar(&feCodes, "codes", "", "comma-separated instrument codes")
	fetchCmd.Flags().BoolVar(&feAll, "all", false, "fetch every security already in the store")
	fetchCmd.Flags().StringVar(&feStart, "start", "2020-01-01", "start date YYYY-MM-DD")
	fetchCmd.Flags().StringVar(&feEnd, "end", "", "end date YYYY-MM-DD (default today)")
	fetchCmd.Flags().Float64Var(&feRPS, "rps", 5, "request rate limit per second")
	fetchCmd.Flags().IntVar(&feWorkers, "workers", 4, "concurrent download workers")
	fetchCmd.Flags().StringVar(&feSchedule, "schedule", "", "cron schedule for repeated refresh")
}

func runFetch(cmd *cobra.Command, args []string) error {
	st, err := store.Open(feDB, log)
	if err != nil {
		return err
	}
	defer st.Close()

	codes, err := resolveCodes(st)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		return fmt.Errorf("no codes to fetch: give --codes or --all with a populated store")
	}

	start, err := time.Parse("2006-01-02", feStart)
	if err != nil {
		return fmt.Errorf("bad --start: %w", err)
	}
	end := time.Now()
	if feEnd != "" {
		end, err = time.Parse("2006-01-02", feEnd)
		if err != nil {
			return fmt.Errorf("bad --end: %w", err)
		}
	}

	client := fetch.NewClient(os.Getenv("ROTATION_DATA_URL"), feRPS, log)
	syncer := fetch.NewSyncer(client, st, feWorkers, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if feSchedule == "" {
		return syncer.Sync(ctx, codes, start, end)
	}

	// Scheduled mode: run once now, then on the cron schedule until the
	// process is interrupted.
	if err := syncer.Sync(ctx, codes, start, end); err != nil {
		return err
	}
	c := cron.New()
	_, err = c.AddFunc(feSchedule, func() {
		if err := syncer.Sync(ctx, codes, start, time.Now()); err != nil {
			log.Error().Err(err).Msg("scheduled sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("bad --schedule: %w", err)
	}
	c.Start()
	defer c.Stop()

	log.Info().Str("schedule", feSchedule).Msg("refresh scheduled, ctrl-c to stop")
	<-ctx.Done()
	return nil
}

func resolveCodes(st *store.Store) ([]string, error) {
	if feAll {
		return st.SecurityCodes()
	}
	var codes []string
	for _, c := range strings.Split(feCodes, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes, nil
}
