package sim

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twaquant/etfengine/ledger"
)

var (
	ErrOutsideTradingHours = errors.New("outside trading hours")
	ErrUnknownOrder        = errors.New("unknown order")
)

type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

type Status string

const (
	StatusNew       Status = "NEW"
	StatusPartial   Status = "PARTIAL"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// OrderRequest is what a strategy or manual caller submits.
type OrderRequest struct {
	AccountID string
	Symbol    string
	Side      ledger.Side
	Type      OrderType
	Limit     decimal.Decimal // required for LIMIT, ignored for MARKET
	Qty       int64
	OddLot    bool
}

// Order is owned by the simulator; only the simulator mutates it after
// submission. Filled + Remaining() == Qty at every transition.
type Order struct {
	ID          string
	AccountID   string
	Symbol      string
	Side        ledger.Side
	Type        OrderType
	Limit       decimal.Decimal
	Qty         int64
	Filled      int64
	OddLot      bool
	Status      Status
	Reason      string // reason code, set on rejection or capacity cancellation
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

func (o *Order) Remaining() int64 { return o.Qty - o.Filled }

// CancelResult distinguishes a performed cancel from the no-op on an
// already-terminal order. The latter is not an error.
type CancelResult struct {
	Cancelled       bool
	AlreadyTerminal bool
	Status          Status
}

// Reason codes carried on rejected orders, and on partially filled
// orders whose remainder was cancelled by a capacity failure.
const (
	ReasonInvalidQuantity     = "InvalidQuantity"
	ReasonInvalidPrice        = "InvalidPrice"
	ReasonOutsideTradingHours = "OutsideTradingHours"
	ReasonUnknownInstrument   = "UnknownInstrument"
	ReasonInactiveInstrument  = "InactiveInstrument"
	ReasonInsufficientCash    = "InsufficientCash"
	ReasonInsufficientShares  = "InsufficientShares"
)
