package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rotation/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "List journaled runs or export one as a report",
	Long: `Without arguments, report lists every run in the journal. With a run
ID it re-exports that run's report from the journaled equity curve and
trade ledger.

Examples:
  rotation report --journal rotation.db
  rotation report --journal rotation.db 01J9W5W1FJ4N --format org --out ./reports`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var (
	rpJournal string
	rpFormat  string
	rpOut     string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&rpJournal, "journal", "j", "./rotation.db", "run journal SQLite path")
	reportCmd.Flags().StringVarP(&rpFormat, "format", "f", "org", "export format (org, csv)")
	reportCmd.Flags().StringVarP(&rpOut, "out", "o", "./reports", "export directory")
}

func runReport(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(rpJournal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	if len(args) == 0 {
		return listRuns(j)
	}

	runID := args[0]
	run, err := j.GetRun(runID)
	if err != nil {
		return err
	}
	curve, err := j.EquityByRun(runID)
	if err != nil {
		return err
	}
	trades, err := j.TradesByRun(runID)
	if err != nil {
		return err
	}

	var exporter journal.Exporter
	switch rpFormat {
	case "org":
		exporter = journal.OrgExporter{Dir: rpOut}
	case "csv":
		exporter = journal.CSVExporter{Dir: rpOut}
	default:
		return fmt.Errorf("unknown format %q (org, csv)", rpFormat)
	}

	path, err := exporter.Export(run, curve, trades, run.Report)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %s\n", path)
	return nil
}

func listRuns(j *journal.SQLite) error {
	runs, err := j.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs journaled yet.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tSTRATEGY\tTOP\tCOST\tRETURN\tMAX DD\tWARN")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%s\t%s\t%d\n",
			r.RunID, r.Created.Format("2006-01-02 15:04"), r.Strategy,
			r.SelectionSize, r.CostRate,
			r.Report.TotalReturn.Pct(), r.Report.MaxDrawdown.Pct(), r.Warnings)
	}
	return tw.Flush()
}
