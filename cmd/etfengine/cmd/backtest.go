package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/twaquant/etfengine/backtest"
	"github.com/twaquant/etfengine/config"
	"github.com/twaquant/etfengine/ledger"
	"github.com/twaquant/etfengine/market"
	"github.com/twaquant/etfengine/sim"
	"github.com/twaquant/etfengine/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over historical bar data",
	Long: `Backtest replays daily OHLCV bars through the execution simulator
and portfolio ledger, filling signals one bar after they fire.

Signals come from a built-in strategy or from an external CSV file.

Supported strategies:
  - noop: emits nothing (baseline test)
  - sma-cross: SMA crossover with configurable fast/slow periods

Examples:
  etfengine backtest --config backtest.yaml --bars bars.csv --strategy sma-cross --fast 5 --slow 20
  etfengine backtest --config backtest.yaml --bars bars.csv --signals signals.csv --dividends dividends.csv`,
	RunE: runBacktest,
}

var hundred = decimal.NewFromInt(100)

var (
	btConfigPath    string
	btBarsPath      string
	btSignalsPath   string
	btDividendsPath string
	btStrategy      string
	btFast          int
	btSlow          int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to config file (required)")
	backtestCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to bar CSV (time,symbol,open,high,low,close,volume) (required)")
	backtestCmd.Flags().StringVar(&btSignalsPath, "signals", "", "path to signal CSV (overrides --strategy)")
	backtestCmd.Flags().StringVar(&btDividendsPath, "dividends", "", "path to dividend calendar CSV")

	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "noop", "strategy name (noop, sma-cross)")
	backtestCmd.Flags().IntVar(&btFast, "fast", 5, "sma-cross: fast SMA period")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 20, "sma-cross: slow SMA period")

	backtestCmd.MarkFlagRequired("config")
	backtestCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(btConfigPath)
	if err != nil {
		return err
	}

	catalog, err := cfg.BuildCatalog(nil)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	led := ledger.New(j)
	simulator, err := sim.NewSimulator(catalog, cfg.FeeCalculator(), led, j, cfg.FillPolicy())
	if err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	engine, err := backtest.NewEngine(catalog, led, simulator, j, cfg.FillPolicy(), cfg.EngineConfig())
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	bars, err := market.LoadBarsCSV(btBarsPath)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	strategyName := btStrategy
	var signals []strategies.Signal
	if btSignalsPath != "" {
		strategyName = "external"
		signals, err = strategies.LoadSignalsCSV(btSignalsPath)
		if err != nil {
			return fmt.Errorf("load signals: %w", err)
		}
	} else {
		strat, err := strategies.ByName(btStrategy, btFast, btSlow)
		if err != nil {
			return fmt.Errorf("strategy: %w", err)
		}
		signals = strategies.GenerateSignals(strat, bars)
	}

	var dividends []ledger.DividendEvent
	if btDividendsPath != "" {
		dividends, err = ledger.LoadDividendsCSV(btDividendsPath)
		if err != nil {
			return fmt.Errorf("load dividends: %w", err)
		}
	}

	fmt.Printf("Running backtest with strategy: %s\n", strategyName)
	fmt.Printf("  Bars: %s (%d bars)\n", btBarsPath, len(bars))
	fmt.Printf("  Signals: %d\n\n", len(signals))

	rec, err := engine.Run(bars, signals, dividends, strategyName)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("Backtest Complete! (run %s)\n", rec.RunID)
	fmt.Printf("  Final Equity: %s %s\n", rec.FinalEquity, cfg.Account.Currency)
	fmt.Printf("  Total Return: %s%%\n", rec.TotalReturn.Mul(hundred))
	fmt.Printf("  Max Drawdown: %s%%\n", rec.MaxDrawdown.Mul(hundred))
	fmt.Printf("  Turnover: %s\n", rec.Turnover)
	fmt.Printf("  Trades: %d (W:%d L:%d)\n", rec.Trades, rec.Wins, rec.Losses)

	return nil
}
