// Package backtest replays bars and signals chronologically through the
// execution simulator and the portfolio ledger, and computes summary
// metrics. The replay is single-threaded and strictly ordered: that is
// what makes runs deterministic and free of look-ahead.
package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twaquant/etfengine/internal/id"
	"github.com/twaquant/etfengine/journal"
	"github.com/twaquant/etfengine/ledger"
	"github.com/twaquant/etfengine/market"
	"github.com/twaquant/etfengine/sim"
	"github.com/twaquant/etfengine/strategies"
)

type Config struct {
	Account      ledger.Account
	InitialCash  decimal.Decimal
	LotsPerOrder int64 // board lots bought per BUY signal
}

func (c Config) validate() error {
	if c.Account.ID == "" {
		return fmt.Errorf("backtest config: account id required")
	}
	if !c.InitialCash.IsPositive() {
		return fmt.Errorf("backtest config: initial cash %s must be positive", c.InitialCash)
	}
	if c.LotsPerOrder <= 0 {
		return fmt.Errorf("backtest config: lots per order %d must be positive", c.LotsPerOrder)
	}
	return nil
}

type Engine struct {
	catalog *market.Catalog
	led     *ledger.Ledger
	sim     *sim.Simulator
	journal journal.Journal
	policy  sim.FillPolicy
	cfg     Config
}

func NewEngine(catalog *market.Catalog, led *ledger.Ledger, s *sim.Simulator, j journal.Journal, policy sim.FillPolicy, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if j == nil {
		j = journal.Discard
	}
	return &Engine{catalog: catalog, led: led, sim: s, journal: j, policy: policy, cfg: cfg}, nil
}

// Run replays bars in input order, which must be chronological overall
// and per symbol. A signal timestamped t is submitted when the first
// later bar of its symbol arrives, so execution always lags the
// triggering bar by one. Returns the written run record.
func (e *Engine) Run(bars []market.Bar, signals []strategies.Signal, dividends []ledger.DividendEvent, strategyName string) (journal.RunRecord, error) {
	if len(bars) == 0 {
		return journal.RunRecord{}, fmt.Errorf("backtest: no bars")
	}

	runID := id.New()
	e.led.SetRun(runID)
	e.sim.SetRun(runID)

	// The run owns its account: opened fresh, funded at the first bar.
	if err := e.led.Open(e.cfg.Account); err != nil {
		return journal.RunRecord{}, fmt.Errorf("backtest: %w", err)
	}
	if _, err := e.led.Deposit(e.cfg.Account.ID, e.cfg.InitialCash, bars[0].Start); err != nil {
		return journal.RunRecord{}, fmt.Errorf("backtest: %w", err)
	}

	// Signals are ordered by time; the stable sort keeps the input
	// order of same-timestamp signals, so reruns are identical.
	pending := make([]strategies.Signal, len(signals))
	copy(pending, signals)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Time.Before(pending[j].Time) })

	divs := make([]ledger.DividendEvent, len(dividends))
	copy(divs, dividends)
	sort.SliceStable(divs, func(i, j int) bool { return divs[i].ExDate.Before(divs[j].ExDate) })

	guard := market.NewSequenceGuard()
	var prevStart time.Time

	m := newMetrics(e.cfg.InitialCash)
	lastClose := make(map[string]decimal.Decimal)
	universe := make(map[string]struct{})

	for _, b := range bars {
		if err := guard.Check(b); err != nil {
			return journal.RunRecord{}, err
		}
		if b.Start.Before(prevStart) {
			return journal.RunRecord{}, fmt.Errorf("%w: bar %s@%s before %s",
				market.ErrStaleBar, b.Symbol, b.Start.Format(time.RFC3339), prevStart.Format(time.RFC3339))
		}
		prevStart = b.Start
		universe[b.Symbol] = struct{}{}

		// Dividends whose ex-date has been reached credit cash before
		// any trading on the bar.
		for len(divs) > 0 && !divs[0].ExDate.After(b.Start) {
			if _, err := e.led.BookDividend(e.cfg.Account.ID, divs[0]); err != nil {
				return journal.RunRecord{}, fmt.Errorf("backtest: %w", err)
			}
			divs = divs[1:]
		}

		// Signals strictly older than this bar become orders now and
		// can first fill on this bar, never the one that produced them.
		rest := pending[:0]
		for _, sig := range pending {
			if sig.Symbol != b.Symbol || !sig.Time.Before(b.Start) {
				rest = append(rest, sig)
				continue
			}
			if err := e.submitSignal(sig, b.Start); err != nil {
				return journal.RunRecord{}, err
			}
		}
		pending = rest

		execs, err := e.sim.OnBar(b)
		if err != nil {
			return journal.RunRecord{}, fmt.Errorf("backtest: %w", err)
		}
		for _, ex := range execs {
			m.addExecution(ex)
		}

		lastClose[b.Symbol] = b.Close
		snap, err := e.snapshot(runID, b.Start, lastClose)
		if err != nil {
			return journal.RunRecord{}, err
		}
		m.addEquity(snap.Equity)
		if err := e.journal.RecordEquity(snap); err != nil {
			return journal.RunRecord{}, fmt.Errorf("journal equity: %w", err)
		}
	}

	symbols := make([]string, 0, len(universe))
	for s := range universe {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	rec := m.runRecord(runID, strategyName, symbols, string(e.policy.Price), bars[0].Start, bars[len(bars)-1].Start)
	if err := e.journal.RecordRun(rec); err != nil {
		return journal.RunRecord{}, fmt.Errorf("journal run: %w", err)
	}
	return rec, nil
}

// submitSignal turns a signal into a MARKET order. BUY sizes a fixed
// number of board lots; SELL exits the whole held position. Rejected
// orders are recorded by the simulator and do not abort the run.
func (e *Engine) submitSignal(sig strategies.Signal, at time.Time) error {
	if sig.Action == strategies.ActionHold {
		return nil
	}

	in, err := e.catalog.Get(sig.Symbol)
	if err != nil {
		return fmt.Errorf("backtest signal: %w", err)
	}

	req := sim.OrderRequest{
		AccountID: e.cfg.Account.ID,
		Symbol:    sig.Symbol,
		Type:      sim.TypeMarket,
	}
	switch sig.Action {
	case strategies.ActionBuy:
		req.Side = ledger.SideBuy
		req.Qty = e.cfg.LotsPerOrder * in.Lot
	case strategies.ActionSell:
		pos, err := e.led.Position(e.cfg.Account.ID, sig.Symbol)
		if err != nil {
			return err
		}
		if pos.Qty == 0 {
			return nil
		}
		req.Side = ledger.SideSell
		req.Qty = pos.Qty
		req.OddLot = pos.Qty%in.Lot != 0
	default:
		return fmt.Errorf("backtest signal: unknown action %q", sig.Action)
	}

	// Validation rejections are terminal for the order, not the run.
	_, _ = e.sim.Submit(req, at)
	return nil
}

func (e *Engine) snapshot(runID string, at time.Time, lastClose map[string]decimal.Decimal) (journal.EquitySnapshot, error) {
	cash, err := e.led.Balance(e.cfg.Account.ID)
	if err != nil {
		return journal.EquitySnapshot{}, err
	}
	positions, err := e.led.Positions(e.cfg.Account.ID)
	if err != nil {
		return journal.EquitySnapshot{}, err
	}

	mv := decimal.Zero
	for _, p := range positions {
		if p.Qty == 0 {
			continue
		}
		px, ok := lastClose[p.Symbol]
		if !ok {
			continue // never priced in this run
		}
		mv = mv.Add(p.MarketValue(px))
	}

	return journal.EquitySnapshot{
		RunID:       runID,
		AccountID:   e.cfg.Account.ID,
		Time:        at,
		Cash:        cash,
		MarketValue: mv,
		Equity:      cash.Add(mv),
	}, nil
}
