package ledger

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twaquant/etfengine/journal"
)

// DividendEvent is a scheduled cash distribution for a symbol.
type DividendEvent struct {
	Symbol     string
	ExDate     time.Time
	RecordDate time.Time
	PayDate    time.Time
	PerShare   decimal.Decimal
}

// Booking is the idempotency record of one applied dividend, keyed by
// (account, symbol, ex-date).
type Booking struct {
	AccountID string
	Symbol    string
	ExDate    time.Time
	PayDate   time.Time
	PerShare  decimal.Decimal
	Shares    int64
	Amount    decimal.Decimal
}

func bookingKey(symbol string, exDate time.Time) string {
	return symbol + "|" + exDate.UTC().Format("2006-01-02")
}

// BookDividend credits shares*per-share into the account's cash via a
// DIVIDEND entry. Replays of the same (account, symbol, ex-date) are
// logged no-ops that return the original booking. An account with no
// position on the ex-date is also a logged no-op.
func (l *Ledger) BookDividend(accountID string, ev DividendEvent) (Booking, error) {
	if !ev.PerShare.IsPositive() {
		return Booking{}, fmt.Errorf("book dividend %s: per-share %s must be positive", ev.Symbol, ev.PerShare)
	}
	st, err := l.state(accountID)
	if err != nil {
		return Booking{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.frozen {
		return Booking{}, frozenErr(accountID)
	}

	key := bookingKey(ev.Symbol, ev.ExDate)
	if prev, done := st.dividends[key]; done {
		log.Printf("ledger: duplicate dividend booking %s %s ex %s, skipped",
			accountID, ev.Symbol, ev.ExDate.Format("2006-01-02"))
		return prev, nil
	}

	pos := st.positions[ev.Symbol]
	if pos == nil || pos.Qty == 0 {
		log.Printf("ledger: dividend %s ex %s: account %s holds no position, skipped",
			ev.Symbol, ev.ExDate.Format("2006-01-02"), accountID)
		return Booking{}, nil
	}

	amount := ev.PerShare.Mul(decimal.NewFromInt(pos.Qty)).Round(st.acct.Precision)

	payDate := ev.PayDate
	if payDate.IsZero() {
		payDate = ev.ExDate
	}

	if _, err := l.appendLocked(st, EntryDividend, amount, key, payDate); err != nil {
		return Booking{}, err
	}

	b := Booking{
		AccountID: accountID,
		Symbol:    ev.Symbol,
		ExDate:    ev.ExDate,
		PayDate:   payDate,
		PerShare:  ev.PerShare,
		Shares:    pos.Qty,
		Amount:    amount,
	}
	st.dividends[key] = b

	if err := l.journal.RecordDividend(journal.DividendRecord{
		RunID:     l.runID,
		AccountID: b.AccountID,
		Symbol:    b.Symbol,
		ExDate:    b.ExDate,
		PayDate:   b.PayDate,
		PerShare:  b.PerShare,
		Shares:    b.Shares,
		Amount:    b.Amount,
	}); err != nil {
		return Booking{}, fmt.Errorf("journal dividend: %w", err)
	}

	return b, nil
}
