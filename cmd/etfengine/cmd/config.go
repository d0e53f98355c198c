package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twaquant/etfengine/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for backtest runs.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  etfengine config init --output my-config.yaml
  etfengine config validate --file my-config.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with TWSE ETF defaults.

Example:
  etfengine config init --output backtest.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  etfengine config validate --file backtest.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "backtest.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  etfengine backtest --config %s --bars bars.csv\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Account: %s (%.0f %s)\n", cfg.Account.ID, cfg.Account.InitialCash, cfg.Account.Currency)
	fmt.Printf("  Fill price: %s, max participation: %.0f%%\n", cfg.Execution.FillPrice, cfg.Execution.MaxParticipation*100)
	fmt.Printf("  Instruments: %d\n", len(cfg.Instruments))
	fmt.Printf("  Journal: %s\n", cfg.Journal.Type)
	return nil
}
