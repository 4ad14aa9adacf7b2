package cmd

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	envFile string

	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rotation",
	Short: "A rule-based equity rotation backtester",
	Long: `Rotation backtests periodic portfolio-selection strategies against
historical daily prices.

It provides tools for:
  - Replaying rotation rules (small-cap, low-PE) over a trading calendar
  - Applying transaction costs and tracking a cash/position ledger
  - Deriving risk/return statistics from the resulting equity curve
  - Importing and refreshing daily bar datasets in SQLite
  - Journaling runs and exporting org-mode/CSV reports`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; environment overrides are optional.
		_ = godotenv.Load(envFile)

		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).
			With().Timestamp().Logger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")
}
