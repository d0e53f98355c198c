package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "etfengine",
	Short: "A Taiwan ETF backtesting engine with exchange-accurate fills and fees",
	Long: `etfengine is a deterministic backtesting engine for Taiwan-listed ETFs.

It provides tools for:
  - Backtesting bar-driven strategies against historical OHLCV data
  - TWSE-accurate tick rounding, lot rules, and trading sessions
  - Commission and transaction-tax modeling with minimum floors
  - Cash-conserving portfolio accounting with dividend booking
  - Journaling orders, trades, ledger entries, and equity curves`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
