package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rotation/strategy"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List registered selection rules",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range strategy.Names() {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
