// Package sim simulates order execution against minute bars. It owns
// the order state machine; fills are handed to the ledger before the
// order's remaining quantity is decremented, so the ledger application
// is the commit point.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twaquant/etfengine/fees"
	"github.com/twaquant/etfengine/internal/id"
	"github.com/twaquant/etfengine/journal"
	"github.com/twaquant/etfengine/ledger"
	"github.com/twaquant/etfengine/market"
)

// errJournal marks a journal write failure after the in-memory state
// already holds the change.
var errJournal = errors.New("journal write failed")

// PricePolicy selects the representative bar price for MARKET fills.
type PricePolicy string

const (
	FillAtClose PricePolicy = "close"
	FillAtOpen  PricePolicy = "open"
)

// FillPolicy fixes the execution model for a run. The choices affect
// backtest realism, so they are explicit configuration, never assumed.
type FillPolicy struct {
	Price PricePolicy
	// MaxParticipation bounds a LIMIT order's per-bar fill to this
	// fraction of bar volume.
	MaxParticipation decimal.Decimal
}

func DefaultFillPolicy() FillPolicy {
	return FillPolicy{
		Price:            FillAtClose,
		MaxParticipation: decimal.NewFromFloat(0.25),
	}
}

func (p FillPolicy) validate() error {
	switch p.Price {
	case FillAtClose, FillAtOpen:
	default:
		return fmt.Errorf("fill policy: unknown price policy %q", p.Price)
	}
	if !p.MaxParticipation.IsPositive() || p.MaxParticipation.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("fill policy: max participation %s outside (0,1]", p.MaxParticipation)
	}
	return nil
}

// Simulator drives live orders through their state machine as bars
// arrive.
type Simulator struct {
	mu      sync.Mutex
	catalog *market.Catalog
	calc    fees.Calculator
	ledger  *ledger.Ledger
	journal journal.Journal
	policy  FillPolicy
	runID   string

	orders map[string]*Order
	live   []string // live order IDs in submission order
}

func NewSimulator(catalog *market.Catalog, calc fees.Calculator, led *ledger.Ledger, j journal.Journal, policy FillPolicy) (*Simulator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("new simulator: nil catalog")
	}
	if led == nil {
		return nil, fmt.Errorf("new simulator: nil ledger")
	}
	if j == nil {
		j = journal.Discard
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		catalog: catalog,
		calc:    calc,
		ledger:  led,
		journal: j,
		policy:  policy,
		orders:  make(map[string]*Order),
	}, nil
}

// SetRun tags subsequent journal records with a backtest run ID.
func (s *Simulator) SetRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
}

// Submit validates the request and admits the order, or records it as
// REJECTED with a specific reason. The returned error carries the
// validation sentinel; a rejected order is never retried automatically.
func (s *Simulator) Submit(req OrderRequest, at time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := &Order{
		ID:          id.New(),
		AccountID:   req.AccountID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Limit:       req.Limit,
		Qty:         req.Qty,
		OddLot:      req.OddLot,
		Status:      StatusNew,
		SubmittedAt: at,
		UpdatedAt:   at,
	}
	s.orders[o.ID] = o

	if reason, verr := s.validate(req, at); verr != nil {
		o.Status = StatusRejected
		o.Reason = reason
		if jerr := s.record(o); jerr != nil {
			return *o, errors.Join(verr, jerr)
		}
		return *o, verr
	}

	s.live = append(s.live, o.ID)
	if err := s.record(o); err != nil {
		return *o, err
	}
	return *o, nil
}

func (s *Simulator) validate(req OrderRequest, at time.Time) (string, error) {
	in, err := s.catalog.Get(req.Symbol)
	if err != nil {
		return ReasonUnknownInstrument, err
	}
	if !in.Active {
		return ReasonInactiveInstrument, fmt.Errorf("%w: %s is inactive", market.ErrUnknownInstrument, req.Symbol)
	}
	if req.Side != ledger.SideBuy && req.Side != ledger.SideSell {
		return ReasonInvalidQuantity, fmt.Errorf("submit: unknown side %q", req.Side)
	}
	if req.Qty <= 0 {
		return ReasonInvalidQuantity, fmt.Errorf("%w: qty %d must be positive", ledger.ErrInvalidQuantity, req.Qty)
	}
	if !req.OddLot && req.Qty%in.Lot != 0 {
		return ReasonInvalidQuantity, fmt.Errorf("%w: qty %d not a multiple of lot %d", ledger.ErrInvalidQuantity, req.Qty, in.Lot)
	}
	switch req.Type {
	case TypeMarket:
	case TypeLimit:
		if !in.TickAligned(req.Limit) {
			return ReasonInvalidPrice, fmt.Errorf("%w: limit %s not on a legal tick for %s", market.ErrInvalidPrice, req.Limit, req.Symbol)
		}
	default:
		return ReasonInvalidQuantity, fmt.Errorf("submit: unknown order type %q", req.Type)
	}

	inSession := in.InSession(at, s.catalog.Location())
	if req.OddLot {
		inSession = in.InOddLotSession(at, s.catalog.Location())
	}
	if !inSession {
		return ReasonOutsideTradingHours, fmt.Errorf("%w: %s at %s", ErrOutsideTradingHours, req.Symbol, at.Format(time.RFC3339))
	}
	return "", nil
}

// Cancel requests cancellation. On a live order it takes effect before
// the next fill attempt; on a terminal order it is a reported no-op.
func (s *Simulator) Cancel(orderID string, at time.Time) (CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return CancelResult{}, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if o.Status.Terminal() {
		return CancelResult{AlreadyTerminal: true, Status: o.Status}, nil
	}

	o.Status = StatusCancelled
	o.UpdatedAt = at
	return CancelResult{Cancelled: true, Status: o.Status}, s.record(o)
}

// Get returns a snapshot of an order.
func (s *Simulator) Get(orderID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	return *o, nil
}

// OpenOrders returns the live orders in submission order.
func (s *Simulator) OpenOrders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, oid := range s.live {
		if o := s.orders[oid]; o != nil && !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

// Execution pairs one fill with its ledger outcome.
type Execution struct {
	Trade      ledger.Trade
	Entry      ledger.CashEntry
	RealizedPL decimal.Decimal
}

// OnBar attempts fills for every live order on the bar's symbol, in
// submission order, and returns the executions produced. A consistency
// failure in the ledger aborts the run.
func (s *Simulator) OnBar(b market.Bar) ([]Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var execs []Execution
	keep := make([]string, 0, len(s.live))

	for _, oid := range s.live {
		o := s.orders[oid]
		if o == nil || o.Status.Terminal() {
			continue
		}
		if o.Symbol != b.Symbol {
			keep = append(keep, oid)
			continue
		}

		exec, filled, err := s.tryFill(o, b)
		if err != nil {
			if errors.Is(err, ledger.ErrLedgerInconsistency) || errors.Is(err, errJournal) {
				// Fatal: halt this run's processing, keep the order live
				// for reconciliation.
				s.live = append(append(keep, oid), remainingAfter(s.live, oid)...)
				return execs, err
			}
			// Capacity failure: terminal, this fill mutated nothing. A
			// fresh order is rejected; an order with fills already on
			// the ledger has its remainder cancelled instead.
			if o.Filled > 0 {
				o.Status = StatusCancelled
			} else {
				o.Status = StatusRejected
			}
			o.Reason = rejectReason(err)
			o.UpdatedAt = b.Start
			if jerr := s.record(o); jerr != nil {
				s.live = append(keep, remainingAfter(s.live, oid)...)
				return execs, jerr
			}
			continue
		}
		if !filled {
			keep = append(keep, oid)
			continue
		}

		execs = append(execs, exec)
		o.Filled += exec.Trade.Qty
		o.UpdatedAt = b.Start
		if o.Remaining() == 0 {
			o.Status = StatusFilled
		} else {
			o.Status = StatusPartial
			keep = append(keep, oid)
		}
		if jerr := s.record(o); jerr != nil {
			s.live = append(keep, remainingAfter(s.live, oid)...)
			return execs, jerr
		}
	}

	s.live = keep
	return execs, nil
}

// tryFill computes one fill for the order against the bar, applies it
// to the ledger, and only then reports it. filled=false means the bar
// offered no execution (limit not crossed, no volume).
func (s *Simulator) tryFill(o *Order, b market.Bar) (Execution, bool, error) {
	in, err := s.catalog.Get(o.Symbol)
	if err != nil {
		return Execution{}, false, err
	}

	var price decimal.Decimal
	var qty int64

	switch o.Type {
	case TypeMarket:
		price = b.Close
		if s.policy.Price == FillAtOpen {
			price = b.Open
		}
		qty = o.Remaining()

	case TypeLimit:
		if !b.Crosses(o.Limit) {
			return Execution{}, false, nil
		}
		price = o.Limit
		max := s.policy.MaxParticipation.Mul(decimal.NewFromInt(b.Volume)).IntPart()
		if !o.OddLot {
			max -= max % in.Lot
		}
		if max <= 0 {
			return Execution{}, false, nil
		}
		qty = o.Remaining()
		if max < qty {
			qty = max
		}
	}

	feeSide := fees.Buy
	if o.Side == ledger.SideSell {
		feeSide = fees.Sell
	}
	gross, commission, tax, err := s.calc.ForFill(price, qty, in.TaxRate, feeSide)
	if err != nil {
		return Execution{}, false, err
	}

	trade := ledger.Trade{
		ID:         id.New(),
		OrderID:    o.ID,
		AccountID:  o.AccountID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Price:      price,
		Qty:        qty,
		Gross:      gross,
		Commission: commission,
		Tax:        tax,
		Time:       b.Start,
	}

	// Commit point: the ledger applies the fill before the order state
	// advances. A crash after this call can replay the order, never
	// lose the fill.
	res, err := s.ledger.Apply(trade)
	if err != nil {
		return Execution{}, false, err
	}

	if err := s.journal.RecordTrade(journal.TradeRecord{
		TradeID:    trade.ID,
		RunID:      s.runID,
		OrderID:    trade.OrderID,
		AccountID:  trade.AccountID,
		Symbol:     trade.Symbol,
		Side:       string(trade.Side),
		Price:      trade.Price,
		Qty:        trade.Qty,
		Gross:      trade.Gross,
		Commission: trade.Commission,
		Tax:        trade.Tax,
		Time:       trade.Time,
	}); err != nil {
		return Execution{}, false, fmt.Errorf("%w: trade %s: %v", errJournal, trade.ID, err)
	}

	return Execution{Trade: trade, Entry: res.Entry, RealizedPL: res.RealizedPL}, true, nil
}

func (s *Simulator) record(o *Order) error {
	err := s.journal.RecordOrder(journal.OrderRecord{
		OrderID:     o.ID,
		RunID:       s.runID,
		AccountID:   o.AccountID,
		Symbol:      o.Symbol,
		Side:        string(o.Side),
		Type:        string(o.Type),
		Status:      string(o.Status),
		Reason:      o.Reason,
		Limit:       o.Limit,
		Qty:         o.Qty,
		Filled:      o.Filled,
		OddLot:      o.OddLot,
		SubmittedAt: o.SubmittedAt,
		UpdatedAt:   o.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: order %s: %v", errJournal, o.ID, err)
	}
	return nil
}

func remainingAfter(ids []string, current string) []string {
	for i, v := range ids {
		if v == current {
			return ids[i+1:]
		}
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCash):
		return ReasonInsufficientCash
	case errors.Is(err, ledger.ErrInsufficientShares):
		return ReasonInsufficientShares
	case errors.Is(err, market.ErrInvalidPrice):
		return ReasonInvalidPrice
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return ReasonInvalidQuantity
	}
	return "Rejected"
}
