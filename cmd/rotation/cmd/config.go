package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rotation/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if err := cfg.SaveToFile(configInitOutput); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Created default configuration: %s\n", configInitOutput)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromFile(configValidatePath)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Printf("Configuration valid: %s\n", configValidatePath)
		fmt.Printf("  Strategy: %s (top %d)\n", cfg.Strategy.Name, cfg.Strategy.SelectionSize)
		fmt.Printf("  Period:   %s .. %s (%s)\n", cfg.Backtest.Start, cfg.Backtest.End, cfg.Backtest.Schedule)
		fmt.Printf("  Capital:  %.2f (cost rate %.4f)\n", cfg.Backtest.InitialCapital, cfg.Backtest.CostRate)
		return nil
	},
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "rotation.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}
