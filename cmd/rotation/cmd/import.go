package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rotation/store"
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import bar datasets into the market database",
	Long: `Import loads daily bar CSVs into the SQLite market store. Files may be
plain .csv, .xz-compressed CSV, or .zip archives of CSVs. Rows are
code,date,open,high,low,close,volume,turnover with an optional header.

Examples:
  rotation import --db market.db bars_2023.csv.xz bars_2024.zip
  rotation import --db market.db --securities securities.csv`,
	RunE: runImport,
}

var (
	imDB         string
	imSecurities string
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&imDB, "db", "d", "./market.db", "market data SQLite path")
	importCmd.Flags().StringVar(&imSecurities, "securities", "", "securities reference CSV")
}

func runImport(cmd *cobra.Command, args []string) error {
	if imSecurities == "" && len(args) == 0 {
		return fmt.Errorf("nothing to import: give bar files and/or --securities")
	}

	st, err := store.Open(imDB, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if imSecurities != "" {
		n, err := st.ImportSecurities(imSecurities)
		if err != nil {
			return fmt.Errorf("import securities: %w", err)
		}
		fmt.Printf("Imported %d securities from %s\n", n, imSecurities)
	}

	for _, path := range args {
		n, err := st.ImportBars(path)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		fmt.Printf("Imported %d bars from %s\n", n, path)
	}
	return nil
}
