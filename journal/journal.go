// Package journal persists the engine's append-only records: orders,
// trades, cash ledger entries, dividend bookings, equity snapshots, and
// backtest runs.
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is written on submission and again on every status
// change. The latest row for an order ID is its current state.
type OrderRecord struct {
	OrderID     string
	RunID       string
	AccountID   string
	Symbol      string
	Side        string
	Type        string
	Status      string
	Reason      string // rejection reason code, empty otherwise
	Limit       decimal.Decimal
	Qty         int64
	Filled      int64
	OddLot      bool
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// TradeRecord is one immutable fill. Never updated once written.
type TradeRecord struct {
	TradeID    string
	RunID      string
	OrderID    string
	AccountID  string
	Symbol     string
	Side       string
	Price      decimal.Decimal
	Qty        int64
	Gross      decimal.Decimal
	Commission decimal.Decimal
	Tax        decimal.Decimal
	Time       time.Time
}

// EntryRecord mirrors one cash ledger entry.
type EntryRecord struct {
	RunID        string
	AccountID    string
	Seq          int64
	Type         string
	Ref          string // order/trade/dividend reference
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Time         time.Time
}

// DividendRecord is one idempotent dividend booking.
type DividendRecord struct {
	RunID     string
	AccountID string
	Symbol    string
	ExDate    time.Time
	PayDate   time.Time
	PerShare  decimal.Decimal
	Shares    int64
	Amount    decimal.Decimal
}

// EquitySnapshot samples the equity curve: cash plus mark-to-market
// position value.
type EquitySnapshot struct {
	RunID       string
	AccountID   string
	Time        time.Time
	Cash        decimal.Decimal
	MarketValue decimal.Decimal
	Equity      decimal.Decimal
}

// RunRecord is the summary of one backtest run. Written once, never
// edited.
type RunRecord struct {
	RunID          string
	Created        time.Time
	Strategy       string
	Universe       string // comma-joined symbols
	FillPolicy     string
	Start          time.Time
	End            time.Time
	InitialCash    decimal.Decimal
	FinalEquity    decimal.Decimal
	TotalReturn    decimal.Decimal
	MaxDrawdown    decimal.Decimal
	Turnover       decimal.Decimal
	TradedNotional decimal.Decimal
	Trades         int
	Wins           int
	Losses         int
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordTrade(TradeRecord) error
	RecordEntry(EntryRecord) error
	RecordDividend(DividendRecord) error
	RecordEquity(EquitySnapshot) error
	RecordRun(RunRecord) error
	Close() error
}

// Discard drops every record. Useful for tests and dry runs.
var Discard Journal = discard{}

type discard struct{}

func (discard) RecordOrder(OrderRecord) error { return nil }
func (discard) RecordTrade(TradeRecord) error { return nil }
func (discard) RecordEntry(EntryRecord) error { return nil }
func (discard) RecordDividend(DividendRecord) error { return nil }
func (discard) RecordEquity(EquitySnapshot) error { return nil }
func (discard) RecordRun(RunRecord) error { return nil }
func (discard) Close() error { return nil }
