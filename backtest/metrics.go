package backtest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twaquant/etfengine/journal"
	"github.com/twaquant/etfengine/sim"
)

// metrics accumulates the equity curve and trade statistics during a
// replay. All arithmetic stays in decimal so identical inputs always
// produce identical run records.
type metrics struct {
	initial  decimal.Decimal
	equity   []decimal.Decimal
	notional decimal.Decimal
	trades   int
	wins     int
	losses   int
}

func newMetrics(initial decimal.Decimal) *metrics {
	return &metrics{initial: initial}
}

func (m *metrics) addExecution(ex sim.Execution) {
	m.trades++
	m.notional = m.notional.Add(ex.Trade.Gross)
	switch {
	case ex.RealizedPL.IsPositive():
		m.wins++
	case ex.RealizedPL.IsNegative():
		m.losses++
	}
}

func (m *metrics) addEquity(e decimal.Decimal) {
	m.equity = append(m.equity, e)
}

// totalReturn is (final - initial) / initial.
func (m *metrics) totalReturn() decimal.Decimal {
	if len(m.equity) == 0 || m.initial.IsZero() {
		return decimal.Zero
	}
	final := m.equity[len(m.equity)-1]
	return final.Sub(m.initial).Div(m.initial)
}

// maxDrawdown is the largest peak-to-trough loss fraction on the
// equity curve.
func (m *metrics) maxDrawdown() decimal.Decimal {
	peak := m.initial
	maxDD := decimal.Zero
	for _, e := range m.equity {
		if e.GreaterThan(peak) {
			peak = e
			continue
		}
		if peak.IsPositive() {
			dd := peak.Sub(e).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// turnover is total traded notional over average equity.
func (m *metrics) turnover() decimal.Decimal {
	if len(m.equity) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, e := range m.equity {
		sum = sum.Add(e)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(m.equity))))
	if avg.IsZero() {
		return decimal.Zero
	}
	return m.notional.Div(avg)
}

func (m *metrics) finalEquity() decimal.Decimal {
	if len(m.equity) == 0 {
		return m.initial
	}
	return m.equity[len(m.equity)-1]
}

func (m *metrics) runRecord(runID, strategy string, symbols []string, fillPolicy string, start, end time.Time) journal.RunRecord {
	return journal.RunRecord{
		RunID:          runID,
		Created:        time.Now().UTC(),
		Strategy:       strategy,
		Universe:       strings.Join(symbols, ","),
		FillPolicy:     fillPolicy,
		Start:          start,
		End:            end,
		InitialCash:    m.initial,
		FinalEquity:    m.finalEquity(),
		TotalReturn:    m.totalReturn(),
		MaxDrawdown:    m.maxDrawdown(),
		Turnover:       m.turnover(),
		TradedNotional: m.notional,
		Trades:         m.trades,
		Wins:           m.wins,
		Losses:         m.losses,
	}
}
