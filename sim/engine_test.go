package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twaquant/etfengine/fees"
	"github.com/twaquant/etfengine/journal"
	"github.com/twaquant/etfengine/ledger"
	"github.com/twaquant/etfengine/market"
)

// stubJournal fails selected writes on demand.
type stubJournal struct {
	journal.Journal
	orderErr error
	tradeErr error
}

func (s *stubJournal) RecordOrder(journal.OrderRecord) error { return s.orderErr }
func (s *stubJournal) RecordTrade(journal.TradeRecord) error { return s.tradeErr }

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func taipei() *time.Location {
	return time.FixedZone("Asia/Taipei", 8*3600)
}

// inSession is 10:00 exchange time on a weekday.
func inSession() time.Time {
	return time.Date(2024, 3, 4, 10, 0, 0, 0, taipei())
}

func oddLotSession() time.Time {
	return time.Date(2024, 3, 4, 14, 0, 0, 0, taipei())
}

func newSim(t *testing.T, cash string) (*Simulator, *ledger.Ledger) {
	t.Helper()
	return newSimJournal(t, cash, nil)
}

func newSimJournal(t *testing.T, cash string, j journal.Journal) (*Simulator, *ledger.Ledger) {
	t.Helper()

	catalog, err := market.NewCatalog([]market.Instrument{
		market.NewTWSEInstrument("0050", "Yuanta Taiwan Top 50 ETF"),
	}, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	led := ledger.New(nil)
	if err := led.Open(ledger.Account{
		ID:             "acct-1",
		Currency:       "TWD",
		Precision:      0,
		MaxUsableRatio: d("0.8"),
	}); err != nil {
		t.Fatalf("open account: %v", err)
	}
	if _, err := led.Deposit("acct-1", d(cash), inSession()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	s, err := NewSimulator(catalog, fees.NewTWD(), led, j, DefaultFillPolicy())
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}
	return s, led
}

func marketBuy(qty int64) OrderRequest {
	return OrderRequest{
		AccountID: "acct-1",
		Symbol:    "0050",
		Side:      ledger.SideBuy,
		Type:      TypeMarket,
		Qty:       qty,
	}
}

func bar(start time.Time, open, high, low, close string, volume int64) market.Bar {
	return market.Bar{
		Symbol: "0050",
		Start:  start,
		Open:   d(open),
		High:   d(high),
		Low:    d(low),
		Close:  d(close),
		Volume: volume,
	}
}

func TestSubmitValidations(t *testing.T) {
	s, _ := newSim(t, "1000000")
	at := inSession()

	cases := []struct {
		name   string
		req    OrderRequest
		at     time.Time
		reason string
	}{
		{
			name:   "unknown symbol",
			req:    OrderRequest{AccountID: "acct-1", Symbol: "9999", Side: ledger.SideBuy, Type: TypeMarket, Qty: 1000},
			at:     at,
			reason: ReasonUnknownInstrument,
		},
		{
			name:   "zero qty",
			req:    OrderRequest{AccountID: "acct-1", Symbol: "0050", Side: ledger.SideBuy, Type: TypeMarket, Qty: 0},
			at:     at,
			reason: ReasonInvalidQuantity,
		},
		{
			name:   "non lot multiple",
			req:    OrderRequest{AccountID: "acct-1", Symbol: "0050", Side: ledger.SideBuy, Type: TypeMarket, Qty: 1500},
			at:     at,
			reason: ReasonInvalidQuantity,
		},
		{
			name:   "limit off tick",
			req:    OrderRequest{AccountID: "acct-1", Symbol: "0050", Side: ledger.SideBuy, Type: TypeLimit, Limit: d("30.02"), Qty: 1000},
			at:     at,
			reason: ReasonInvalidPrice,
		},
		{
			name:   "outside hours",
			req:    marketBuy(1000),
			at:     time.Date(2024, 3, 4, 8, 0, 0, 0, taipei()),
			reason: ReasonOutsideTradingHours,
		},
		{
			name:   "odd lot outside odd lot session",
			req:    OrderRequest{AccountID: "acct-1", Symbol: "0050", Side: ledger.SideBuy, Type: TypeMarket, Qty: 137, OddLot: true},
			at:     at,
			reason: ReasonOutsideTradingHours,
		},
	}
	for _, c := range cases {
		o, err := s.Submit(c.req, c.at)
		if err == nil {
			t.Fatalf("%s: want error", c.name)
		}
		if o.Status != StatusRejected {
			t.Fatalf("%s: status %s", c.name, o.Status)
		}
		if o.Reason != c.reason {
			t.Fatalf("%s: reason %q want %q", c.name, o.Reason, c.reason)
		}
	}

	if n := len(s.OpenOrders()); n != 0 {
		t.Fatalf("rejected orders stayed live: %d", n)
	}
}

func TestSubmitOddLot(t *testing.T) {
	s, _ := newSim(t, "1000000")

	o, err := s.Submit(OrderRequest{
		AccountID: "acct-1",
		Symbol:    "0050",
		Side:      ledger.SideBuy,
		Type:      TypeMarket,
		Qty:       137,
		OddLot:    true,
	}, oddLotSession())
	if err != nil {
		t.Fatalf("odd lot submit: %v", err)
	}
	if o.Status != StatusNew {
		t.Fatalf("status: %s", o.Status)
	}
}

func TestSubmitInactiveInstrument(t *testing.T) {
	in := market.NewTWSEInstrument("0050", "test")
	in.Active = false
	catalog, err := market.NewCatalog([]market.Instrument{in}, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	led := ledger.New(nil)
	s, err := NewSimulator(catalog, fees.NewTWD(), led, nil, DefaultFillPolicy())
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}

	o, err := s.Submit(marketBuy(1000), inSession())
	if err == nil {
		t.Fatal("want error")
	}
	if o.Reason != ReasonInactiveInstrument {
		t.Fatalf("reason: %q", o.Reason)
	}
}

func TestMarketFillAtClose(t *testing.T) {
	s, led := newSim(t, "1000000")

	o, err := s.Submit(marketBuy(1000), inSession())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.10", 1_000_000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("executions: %d", len(execs))
	}
	tr := execs[0].Trade
	if !tr.Price.Equal(d("30.10")) {
		t.Fatalf("fill price: %s", tr.Price)
	}
	if tr.Qty != 1000 {
		t.Fatalf("fill qty: %d", tr.Qty)
	}

	got, err := s.Get(o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFilled || got.Remaining() != 0 {
		t.Fatalf("order after fill: %+v", got)
	}

	pos, err := led.Position("acct-1", "0050")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Qty != 1000 || !pos.AvgCost.Equal(d("30.10")) {
		t.Fatalf("position: %+v", pos)
	}
}

func TestMarketFillAtOpen(t *testing.T) {
	catalog, err := market.NewCatalog([]market.Instrument{
		market.NewTWSEInstrument("0050", "test"),
	}, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	led := ledger.New(nil)
	if err := led.Open(ledger.Account{ID: "acct-1", Currency: "TWD", MaxUsableRatio: d("1")}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := led.Deposit("acct-1", d("1000000"), inSession()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	policy := FillPolicy{Price: FillAtOpen, MaxParticipation: d("0.25")}
	s, err := NewSimulator(catalog, fees.NewTWD(), led, nil, policy)
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}

	if _, err := s.Submit(marketBuy(1000), inSession()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.10", 1_000_000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 1 || !execs[0].Trade.Price.Equal(d("30.00")) {
		t.Fatalf("executions: %+v", execs)
	}
}

func TestLimitFillRequiresCross(t *testing.T) {
	s, _ := newSim(t, "1000000")

	o, err := s.Submit(OrderRequest{
		AccountID: "acct-1",
		Symbol:    "0050",
		Side:      ledger.SideBuy,
		Type:      TypeLimit,
		Limit:     d("29.50"),
		Qty:       1000,
	}, inSession())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Bar range never touches 29.50: no fill, order stays live.
	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.10", 1_000_000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 0 {
		t.Fatalf("unexpected fill: %+v", execs)
	}
	got, _ := s.Get(o.ID)
	if got.Status != StatusNew {
		t.Fatalf("status: %s", got.Status)
	}

	// Next bar trades through the limit.
	execs, err = s.OnBar(bar(inSession().Add(2*time.Minute), "29.80", "29.90", "29.40", "29.60", 1_000_000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("executions: %d", len(execs))
	}
	if !execs[0].Trade.Price.Equal(d("29.50")) {
		t.Fatalf("limit fill price: %s", execs[0].Trade.Price)
	}
}

func TestLimitPartialFillConservation(t *testing.T) {
	s, _ := newSim(t, "10000000")

	o, err := s.Submit(OrderRequest{
		AccountID: "acct-1",
		Symbol:    "0050",
		Side:      ledger.SideBuy,
		Type:      TypeLimit,
		Limit:     d("30.00"),
		Qty:       10000,
	}, inSession())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// 25% of 16000 shares is 4000, a lot multiple: partial fill.
	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.10", "29.90", "30.00", 16000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 1 || execs[0].Trade.Qty != 4000 {
		t.Fatalf("partial fill: %+v", execs)
	}

	got, _ := s.Get(o.ID)
	if got.Status != StatusPartial {
		t.Fatalf("status: %s", got.Status)
	}
	if got.Filled+got.Remaining() != got.Qty {
		t.Fatalf("conservation: filled %d remaining %d qty %d", got.Filled, got.Remaining(), got.Qty)
	}

	// Enough volume to finish the order.
	execs, err = s.OnBar(bar(inSession().Add(2*time.Minute), "30.00", "30.10", "29.90", "30.00", 100000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 1 || execs[0].Trade.Qty != 6000 {
		t.Fatalf("completing fill: %+v", execs)
	}
	got, _ = s.Get(o.ID)
	if got.Status != StatusFilled || got.Remaining() != 0 {
		t.Fatalf("final order: %+v", got)
	}
}

func TestLimitParticipationFloorsToLot(t *testing.T) {
	s, _ := newSim(t, "1000000")

	if _, err := s.Submit(OrderRequest{
		AccountID: "acct-1",
		Symbol:    "0050",
		Side:      ledger.SideBuy,
		Type:      TypeLimit,
		Limit:     d("30.00"),
		Qty:       1000,
	}, inSession()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// 25% of 2000 = 500 shares, below one board lot: no fill.
	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.10", "29.90", "30.00", 2000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 0 {
		t.Fatalf("sub-lot fill: %+v", execs)
	}
}

func TestInsufficientCashRejectsOrder(t *testing.T) {
	s, led := newSim(t, "100000")

	// 3000 * ~30 gross far exceeds 80000 usable cash.
	o, err := s.Submit(marketBuy(3000), inSession())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.10", 1_000_000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 0 {
		t.Fatalf("executions: %+v", execs)
	}

	got, _ := s.Get(o.ID)
	if got.Status != StatusRejected || got.Reason != ReasonInsufficientCash {
		t.Fatalf("order: %+v", got)
	}

	// Nothing was mutated.
	entries, _ := led.Entries("acct-1")
	if len(entries) != 1 {
		t.Fatalf("entries: %d", len(entries))
	}
}

func TestPartialOrderCashShortfallCancelsRemainder(t *testing.T) {
	s, led := newSim(t, "67000")

	o, err := s.Submit(OrderRequest{
		AccountID: "acct-1",
		Symbol:    "0050",
		Side:      ledger.SideBuy,
		Type:      TypeLimit,
		Limit:     d("30.00"),
		Qty:       2000,
	}, inSession())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// 25% of 4000 shares caps the first bar at one lot. 30043 of the
	// 53600 usable is spent.
	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.10", "29.90", "30.00", 4000))
	if err != nil {
		t.Fatalf("bar 1: %v", err)
	}
	if len(execs) != 1 || execs[0].Trade.Qty != 1000 {
		t.Fatalf("partial fill: %+v", execs)
	}
	got, _ := s.Get(o.ID)
	if got.Status != StatusPartial {
		t.Fatalf("status after bar 1: %s", got.Status)
	}

	// The second lot costs 30043 against 29565.6 usable. The remainder
	// is cancelled, never rejected: the first fill stands on the ledger.
	execs, err = s.OnBar(bar(inSession().Add(2*time.Minute), "30.00", "30.10", "29.90", "30.00", 1_000_000))
	if err != nil {
		t.Fatalf("bar 2: %v", err)
	}
	if len(execs) != 0 {
		t.Fatalf("executions: %+v", execs)
	}

	got, _ = s.Get(o.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status after shortfall: %s", got.Status)
	}
	if got.Reason != ReasonInsufficientCash {
		t.Fatalf("reason: %q", got.Reason)
	}
	if got.Filled != 1000 {
		t.Fatalf("filled: %d", got.Filled)
	}
	if n := len(s.OpenOrders()); n != 0 {
		t.Fatalf("cancelled order stayed live: %d", n)
	}

	// Deposit plus the one applied fill.
	entries, _ := led.Entries("acct-1")
	if len(entries) != 2 {
		t.Fatalf("entries: %d", len(entries))
	}
}

func TestJournalOrderWriteFailureSurfaces(t *testing.T) {
	j := &stubJournal{Journal: journal.Discard, orderErr: errors.New("disk full")}
	s, _ := newSimJournal(t, "1000000", j)

	if _, err := s.Submit(marketBuy(1000), inSession()); err == nil {
		t.Fatal("submit with failing journal: want error")
	}
}

func TestJournalTradeWriteFailureKeepsOrderLive(t *testing.T) {
	j := &stubJournal{Journal: journal.Discard}
	s, led := newSimJournal(t, "1000000", j)

	o, err := s.Submit(marketBuy(1000), inSession())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	j.tradeErr = errors.New("disk full")
	if _, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.10", 1_000_000)); err == nil {
		t.Fatal("on bar with failing journal: want error")
	}

	// The fill was ledgered before the journal failed; the order is held
	// live, not rejected, so the mismatch is visible for reconciliation.
	got, _ := s.Get(o.ID)
	if got.Status != StatusNew {
		t.Fatalf("status: %s", got.Status)
	}
	if n := len(s.OpenOrders()); n != 1 {
		t.Fatalf("live orders: %d", n)
	}
	entries, _ := led.Entries("acct-1")
	if len(entries) != 2 {
		t.Fatalf("entries: %d", len(entries))
	}
}

func TestCancel(t *testing.T) {
	s, _ := newSim(t, "1000000")

	o, err := s.Submit(marketBuy(1000), inSession())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := s.Cancel(o.ID, inSession().Add(time.Second))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !res.Cancelled || res.Status != StatusCancelled {
		t.Fatalf("cancel result: %+v", res)
	}

	// A cancelled order never fills.
	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.10", 1_000_000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 0 {
		t.Fatalf("cancelled order filled: %+v", execs)
	}

	// Cancelling again is a reported no-op, not an error.
	res, err = s.Cancel(o.ID, inSession().Add(2*time.Second))
	if err != nil {
		t.Fatalf("re-cancel: %v", err)
	}
	if !res.AlreadyTerminal || res.Cancelled {
		t.Fatalf("re-cancel result: %+v", res)
	}

	if _, err := s.Cancel("no-such-order", inSession()); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("unknown order: %v", err)
	}
}

func TestFillsInSubmissionOrder(t *testing.T) {
	s, _ := newSim(t, "10000000")

	first, err := s.Submit(marketBuy(1000), inSession())
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	second, err := s.Submit(marketBuy(2000), inSession().Add(time.Second))
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}

	execs, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.10", 1_000_000))
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 2 {
		t.Fatalf("executions: %d", len(execs))
	}
	if execs[0].Trade.OrderID != first.ID || execs[1].Trade.OrderID != second.ID {
		t.Fatal("fills out of submission order")
	}
}

func TestOnBarIgnoresOtherSymbols(t *testing.T) {
	s, _ := newSim(t, "1000000")

	o, err := s.Submit(marketBuy(1000), inSession())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	other := bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.10", 1_000_000)
	other.Symbol = "0056"
	execs, err := s.OnBar(other)
	if err != nil {
		t.Fatalf("on bar: %v", err)
	}
	if len(execs) != 0 {
		t.Fatalf("cross-symbol fill: %+v", execs)
	}
	got, _ := s.Get(o.ID)
	if got.Status != StatusNew {
		t.Fatalf("status: %s", got.Status)
	}
}

func TestSellRealizedPLInExecution(t *testing.T) {
	s, _ := newSim(t, "1000000")

	if _, err := s.Submit(marketBuy(1000), inSession()); err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if _, err := s.OnBar(bar(inSession().Add(time.Minute), "30.00", "30.20", "29.90", "30.00", 1_000_000)); err != nil {
		t.Fatalf("buy bar: %v", err)
	}

	sell := marketBuy(1000)
	sell.Side = ledger.SideSell
	if _, err := s.Submit(sell, inSession().Add(2*time.Minute)); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	execs, err := s.OnBar(bar(inSession().Add(3*time.Minute), "31.00", "31.20", "30.90", "31.00", 1_000_000))
	if err != nil {
		t.Fatalf("sell bar: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("executions: %d", len(execs))
	}
	// (31 - 30) * 1000.
	if !execs[0].RealizedPL.Equal(d("1000")) {
		t.Fatalf("realized: %s", execs[0].RealizedPL)
	}
}
