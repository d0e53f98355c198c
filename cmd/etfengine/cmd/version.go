package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the etfengine CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("etfengine version %s\n", version)
		fmt.Println("A Taiwan ETF backtesting engine with exchange-accurate fills and fees")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
