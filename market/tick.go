package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice      = errors.New("invalid price")
	ErrUnknownInstrument = errors.New("unknown instrument")
)

// RoundMode selects the direction RoundToTick snaps a raw price.
type RoundMode int

const (
	RoundDown RoundMode = iota
	RoundUp
	RoundNearest
)

// TickAt returns the minimum price increment for price p. Band bounds
// are inclusive below and exclusive above, so a price sitting exactly
// on a boundary uses the higher band's tick. Falls back to the
// instrument's single fallback tick when no band matches.
func (in Instrument) TickAt(p decimal.Decimal) (decimal.Decimal, error) {
	if !p.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be positive", ErrInvalidPrice, p)
	}
	for _, b := range in.Ticks {
		if b.contains(p) {
			return b.Tick, nil
		}
	}
	if in.Fallback.IsPositive() {
		return in.Fallback, nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: %s outside all tick bands for %s", ErrInvalidPrice, p, in.Symbol)
}

// RoundToTick snaps p to a legal price for the instrument. The tick in
// effect is the one of the band containing p itself.
func (in Instrument) RoundToTick(p decimal.Decimal, mode RoundMode) (decimal.Decimal, error) {
	tick, err := in.TickAt(p)
	if err != nil {
		return decimal.Decimal{}, err
	}

	steps := p.Div(tick)
	switch mode {
	case RoundDown:
		steps = steps.Floor()
	case RoundUp:
		steps = steps.Ceil()
	case RoundNearest:
		steps = steps.Round(0)
	default:
		return decimal.Decimal{}, fmt.Errorf("round to tick: unknown mode %d", mode)
	}
	return steps.Mul(tick), nil
}

// TickAligned reports whether p already sits on a legal tick.
func (in Instrument) TickAligned(p decimal.Decimal) bool {
	tick, err := in.TickAt(p)
	if err != nil {
		return false
	}
	return p.Mod(tick).IsZero()
}
