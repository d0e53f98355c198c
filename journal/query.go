package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GetRun returns a single backtest run summary by ID.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	var r RunRecord
	var initialCash, finalEquity, totalReturn, maxDD, turnover, notional string

	row := j.db.QueryRow(`
		SELECT run_id, created, strategy, universe, fill_policy, start, end,
		       initial_cash, final_equity, total_return, max_drawdown, turnover, traded_notional,
		       trades, wins, losses
		FROM backtest_runs
		WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID, &r.Created, &r.Strategy, &r.Universe, &r.FillPolicy, &r.Start, &r.End,
		&initialCash, &finalEquity, &totalReturn, &maxDD, &turnover, &notional,
		&r.Trades, &r.Wins, &r.Losses,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return RunRecord{}, fmt.Errorf("run %q not found", runID)
		}
		return RunRecord{}, err
	}

	if err := scanDecimals(map[*decimal.Decimal]string{
		&r.InitialCash: initialCash, &r.FinalEquity: finalEquity,
		&r.TotalReturn: totalReturn, &r.MaxDrawdown: maxDD,
		&r.Turnover: turnover, &r.TradedNotional: notional,
	}); err != nil {
		return RunRecord{}, err
	}
	return r, nil
}

// ListTradesByRun returns every fill of a run in execution order.
func (j *SQLite) ListTradesByRun(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, run_id, order_id, account_id, symbol, side, price, qty, gross, commission, tax, time
		FROM trades
		WHERE run_id = ?
		ORDER BY time ASC, trade_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var price, gross, commission, tax string
		if err := rows.Scan(
			&t.TradeID, &t.RunID, &t.OrderID, &t.AccountID, &t.Symbol, &t.Side,
			&price, &t.Qty, &gross, &commission, &tax, &t.Time,
		); err != nil {
			return nil, err
		}
		if err := scanDecimals(map[*decimal.Decimal]string{
			&t.Price: price, &t.Gross: gross, &t.Commission: commission, &t.Tax: tax,
		}); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEntriesByAccount returns an account's cash ledger in sequence
// order; the caller can re-verify the balance chain from it.
func (j *SQLite) ListEntriesByAccount(accountID string) ([]EntryRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, account_id, seq, type, ref, amount, balance_after, time
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY seq ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntryRecord
	for rows.Next() {
		var e EntryRecord
		var amount, after string
		if err := rows.Scan(&e.RunID, &e.AccountID, &e.Seq, &e.Type, &e.Ref, &amount, &after, &e.Time); err != nil {
			return nil, err
		}
		if err := scanDecimals(map[*decimal.Decimal]string{&e.Amount: amount, &e.BalanceAfter: after}); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListEquityBetween returns equity snapshots with time in [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, account_id, time, cash, market_value, equity
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		var cash, mv, eq string
		if err := rows.Scan(&e.RunID, &e.AccountID, &e.Time, &cash, &mv, &eq); err != nil {
			return nil, err
		}
		if err := scanDecimals(map[*decimal.Decimal]string{
			&e.Cash: cash, &e.MarketValue: mv, &e.Equity: eq,
		}); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanDecimals(cols map[*decimal.Decimal]string) error {
	for dst, raw := range cols {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("scan decimal %q: %w", raw, err)
		}
		*dst = d
	}
	return nil
}
