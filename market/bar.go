package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrStaleBar = errors.New("stale bar sequence")

// Bar is one aggregated price interval for a symbol.
type Bar struct {
	Symbol   string
	Start    time.Time // interval start, UTC
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   int64 // shares traded in the interval
	Turnover decimal.Decimal
	Source   string
}

func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar: symbol required")
	}
	if b.Start.IsZero() {
		return fmt.Errorf("bar %s: zero timestamp", b.Symbol)
	}
	if !b.Open.IsPositive() || !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive() {
		return fmt.Errorf("bar %s@%s: %w: non-positive OHLC", b.Symbol, b.Start.Format(time.RFC3339), ErrInvalidPrice)
	}
	if b.High.LessThan(b.Low) {
		return fmt.Errorf("bar %s@%s: high below low", b.Symbol, b.Start.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s@%s: negative volume", b.Symbol, b.Start.Format(time.RFC3339))
	}
	return nil
}

// Crosses reports whether the bar's traded range touched price p.
func (b Bar) Crosses(p decimal.Decimal) bool {
	return !p.LessThan(b.Low) && !p.GreaterThan(b.High)
}

// SequenceGuard rejects bars arriving out of chronological order for a
// symbol. The replay never reorders; a stale bar is an input defect.
type SequenceGuard struct {
	last map[string]time.Time
}

func NewSequenceGuard() *SequenceGuard {
	return &SequenceGuard{last: make(map[string]time.Time)}
}

// Check validates b and admits it only if its start time is strictly
// after every previously admitted bar for the same symbol.
func (g *SequenceGuard) Check(b Bar) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if prev, ok := g.last[b.Symbol]; ok && !b.Start.After(prev) {
		return fmt.Errorf("%w: %s bar %s not after %s",
			ErrStaleBar, b.Symbol, b.Start.Format(time.RFC3339), prev.Format(time.RFC3339))
	}
	g.last[b.Symbol] = b.Start
	return nil
}
