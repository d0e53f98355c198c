// Package strategies defines the signal contract consumed by the
// backtest engine, plus a small built-in strategy set. Signal
// generation is a producer role: strategies never touch orders or the
// ledger directly.
package strategies

import (
	"fmt"
	"strings"
	"time"

	"github.com/twaquant/etfengine/market"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is one strategy decision. Confidence is optional (0 when the
// strategy does not score its calls).
type Signal struct {
	StrategyID string
	Symbol     string
	Time       time.Time
	Action     Action
	Confidence float64
}

// BarStrategy consumes bars in chronological order and may emit one
// signal per bar. Returning nil means HOLD.
type BarStrategy interface {
	Name() string
	Reset()
	OnBar(b market.Bar) *Signal
}

// ByName builds one of the built-in strategies.
func ByName(name string, fast, slow int) (BarStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil
	case "sma-cross", "smacross":
		return NewSMACross(fast, slow), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, sma-cross)", name)
	}
}

// GenerateSignals replays bars through a strategy and collects every
// signal it emits. Bars must already be in chronological order.
func GenerateSignals(strat BarStrategy, bars []market.Bar) []Signal {
	strat.Reset()
	var out []Signal
	for _, b := range bars {
		if sig := strat.OnBar(b); sig != nil {
			out = append(out, *sig)
		}
	}
	return out
}

// Noop emits nothing. Baseline for engine tests.
type Noop struct{}

func (Noop) Name() string { return "noop" }
func (Noop) Reset() {}
func (Noop) OnBar(market.Bar) *Signal { return nil }
