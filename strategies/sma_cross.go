package strategies

import (
	"github.com/shopspring/decimal"

	"github.com/twaquant/etfengine/market"
)

// SMACross signals on a fast/slow simple-moving-average crossover of
// bar closes, one instrument state per symbol. Confidence is the
// normalized distance between the two averages at the cross.
type SMACross struct {
	fast, slow int
	state      map[string]*smaState
}

type smaState struct {
	fast, slow *sma
	lastDiff   decimal.Decimal
	haveLast   bool
}

func NewSMACross(fast, slow int) *SMACross {
	if fast <= 0 {
		fast = 5
	}
	if slow <= fast {
		slow = fast * 4
	}
	s := &SMACross{fast: fast, slow: slow}
	s.Reset()
	return s
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) Reset() {
	s.state = make(map[string]*smaState)
}

func (s *SMACross) OnBar(b market.Bar) *Signal {
	st, ok := s.state[b.Symbol]
	if !ok {
		st = &smaState{fast: newSMA(s.fast), slow: newSMA(s.slow)}
		s.state[b.Symbol] = st
	}

	fv, fok := st.fast.push(b.Close)
	sv, sok := st.slow.push(b.Close)
	if !fok || !sok {
		return nil
	}

	diff := fv.Sub(sv)
	defer func() {
		st.lastDiff = diff
		st.haveLast = true
	}()

	if !st.haveLast {
		return nil
	}

	var action Action
	switch {
	case st.lastDiff.LessThanOrEqual(decimal.Zero) && diff.IsPositive():
		action = ActionBuy
	case st.lastDiff.GreaterThanOrEqual(decimal.Zero) && diff.IsNegative():
		action = ActionSell
	default:
		return nil
	}

	confidence := 0.0
	if !sv.IsZero() {
		confidence, _ = diff.Abs().Div(sv).Float64()
		if confidence > 1 {
			confidence = 1
		}
	}

	return &Signal{
		StrategyID: s.Name(),
		Symbol:     b.Symbol,
		Time:       b.Start,
		Action:     action,
		Confidence: confidence,
	}
}

// sma is a fixed-window simple moving average over decimals.
type sma struct {
	window []decimal.Decimal
	size   int
	sum    decimal.Decimal
}

func newSMA(n int) *sma { return &sma{size: n} }

func (m *sma) push(v decimal.Decimal) (decimal.Decimal, bool) {
	m.window = append(m.window, v)
	m.sum = m.sum.Add(v)
	if len(m.window) > m.size {
		m.sum = m.sum.Sub(m.window[0])
		m.window = m.window[1:]
	}
	if len(m.window) < m.size {
		return decimal.Decimal{}, false
	}
	return m.sum.Div(decimal.NewFromInt(int64(m.size))), true
}
