package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/twaquant/etfengine/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query backtest journal data",
	Long: `Query and display journal records from a SQLite database.

Subcommands:
  run     - Show the summary record of a backtest run
  trades  - List trades recorded during a run
  ledger  - List cash ledger entries for an account
  equity  - List equity snapshots between two days

Examples:
  etfengine journal run <run-id>
  etfengine journal trades <run-id>
  etfengine journal ledger SIM-001
  etfengine journal equity 2024-01-01 2024-06-30`,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show the summary record of a backtest run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List trades recorded during a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalLedgerCmd = &cobra.Command{
	Use:   "ledger <account-id>",
	Short: "List cash ledger entries for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalLedger,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <start YYYY-MM-DD> <end YYYY-MM-DD>",
	Short: "List equity snapshots between two days",
	Args:  cobra.ExactArgs(2),
	RunE:  runJournalEquity,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalLedgerCmd)
	journalCmd.AddCommand(journalEquityCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./backtest.sqlite", "path to SQLite journal DB")
}

func openJournalDB() (*journal.SQLite, error) {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	fmt.Printf("Run %s (%s)\n", rec.RunID, rec.Created.Format(time.RFC3339))
	fmt.Printf("  Strategy: %s on %s (fill: %s)\n", rec.Strategy, rec.Universe, rec.FillPolicy)
	fmt.Printf("  Period: %s to %s\n", rec.Start.Format("2006-01-02"), rec.End.Format("2006-01-02"))
	fmt.Printf("  Initial Cash: %s\n", rec.InitialCash)
	fmt.Printf("  Final Equity: %s\n", rec.FinalEquity)
	fmt.Printf("  Total Return: %s%%\n", rec.TotalReturn.Mul(hundred))
	fmt.Printf("  Max Drawdown: %s%%\n", rec.MaxDrawdown.Mul(hundred))
	fmt.Printf("  Turnover: %s (notional %s)\n", rec.Turnover, rec.TradedNotional)
	fmt.Printf("  Trades: %d (W:%d L:%d)\n", rec.Trades, rec.Wins, rec.Losses)
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListTradesByRun(args[0])
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Printf("%-30s %-8s %-4s %10s %12s %10s %8s\n",
		"TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "COMM", "TAX")
	for _, t := range recs {
		fmt.Printf("%-30s %-8s %-4s %10d %12s %10s %8s\n",
			t.Time.Format(time.RFC3339), t.Symbol, t.Side, t.Qty,
			t.Price, t.Commission, t.Tax)
	}
	fmt.Printf("\n%d trades\n", len(recs))
	return nil
}

func runJournalLedger(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListEntriesByAccount(args[0])
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}

	fmt.Printf("%-6s %-30s %-10s %14s %14s\n", "SEQ", "TIME", "TYPE", "AMOUNT", "BALANCE")
	for _, e := range recs {
		fmt.Printf("%-6d %-30s %-10s %14s %14s\n",
			e.Seq, e.Time.Format(time.RFC3339), e.Type, e.Amount, e.BalanceAfter)
	}
	fmt.Printf("\n%d entries\n", len(recs))
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	start, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return fmt.Errorf("bad start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", args[1])
	if err != nil {
		return fmt.Errorf("bad end date: %w", err)
	}
	end = end.Add(24 * time.Hour)

	recs, err := j.ListEquityBetween(start, end)
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}

	fmt.Printf("%-30s %14s %14s\n", "TIME", "CASH", "EQUITY")
	for _, s := range recs {
		fmt.Printf("%-30s %14s %14s\n", s.Time.Format(time.RFC3339), s.Cash, s.Equity)
	}
	fmt.Printf("\n%d snapshots\n", len(recs))
	return nil
}
