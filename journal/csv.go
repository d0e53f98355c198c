package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSV writes trades and equity snapshots to two flat files. Orders,
// ledger entries, dividends and run summaries need the SQLite backend;
// CSV is the quick-look format for spreadsheets.
type CSV struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSV, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	if err := tw.Write([]string{"trade_id", "run_id", "order_id", "account_id", "symbol", "side", "price", "qty", "gross", "commission", "tax", "time"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"run_id", "account_id", "time", "cash", "market_value", "equity"}); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSV{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func (j *CSV) RecordOrder(OrderRecord) error { return nil }
func (j *CSV) RecordEntry(EntryRecord) error { return nil }
func (j *CSV) RecordDividend(DividendRecord) error { return nil }
func (j *CSV) RecordRun(RunRecord) error { return nil }

func (j *CSV) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID,
		t.RunID,
		t.OrderID,
		t.AccountID,
		t.Symbol,
		t.Side,
		t.Price.String(),
		strconv.FormatInt(t.Qty, 10),
		t.Gross.String(),
		t.Commission.String(),
		t.Tax.String(),
		t.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.RunID,
		e.AccountID,
		e.Time.Format(time.RFC3339),
		e.Cash.String(),
		e.MarketValue.String(),
		e.Equity.String(),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}
