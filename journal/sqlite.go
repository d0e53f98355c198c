package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists records in a single SQLite database. Decimal values
// are stored as TEXT so nothing is lost to float conversion.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, run_id, account_id, symbol, side, type, status, reason, limit_price, qty, filled, odd_lot, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.RunID, o.AccountID, o.Symbol, o.Side, o.Type, o.Status, o.Reason,
		o.Limit.String(), o.Qty, o.Filled, o.OddLot, o.SubmittedAt, o.UpdatedAt,
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, order_id, account_id, symbol, side, price, qty, gross, commission, tax, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.OrderID, t.AccountID, t.Symbol, t.Side,
		t.Price.String(), t.Qty, t.Gross.String(), t.Commission.String(), t.Tax.String(), t.Time,
	)
	return err
}

func (j *SQLite) RecordEntry(e EntryRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO ledger_entries
		(run_id, account_id, seq, type, ref, amount, balance_after, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.AccountID, e.Seq, e.Type, e.Ref,
		e.Amount.String(), e.BalanceAfter.String(), e.Time,
	)
	return err
}

func (j *SQLite) RecordDividend(d DividendRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO dividends
		(run_id, account_id, symbol, ex_date, pay_date, per_share, shares, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.AccountID, d.Symbol, d.ExDate, d.PayDate,
		d.PerShare.String(), d.Shares, d.Amount.String(),
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, account_id, time, cash, market_value, equity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.AccountID, e.Time,
		e.Cash.String(), e.MarketValue.String(), e.Equity.String(),
	)
	return err
}

func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO backtest_runs
		(run_id, created, strategy, universe, fill_policy, start, end,
		 initial_cash, final_equity, total_return, max_drawdown, turnover, traded_notional,
		 trades, wins, losses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Universe, r.FillPolicy, r.Start, r.End,
		r.InitialCash.String(), r.FinalEquity.String(), r.TotalReturn.String(),
		r.MaxDrawdown.String(), r.Turnover.String(), r.TradedNotional.String(),
		r.Trades, r.Wins, r.Losses,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
