package market

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TickBand is one band of a piecewise tick schedule: prices in
// [Low, High) trade in increments of Tick. A zero High means the band
// is unbounded above.
type TickBand struct {
	Low  decimal.Decimal `json:"low" yaml:"low"`
	High decimal.Decimal `json:"high" yaml:"high"`
	Tick decimal.Decimal `json:"tick" yaml:"tick"`
}

func (b TickBand) contains(p decimal.Decimal) bool {
	if p.LessThan(b.Low) {
		return false
	}
	if b.High.IsZero() {
		return true
	}
	return p.LessThan(b.High)
}

// Window is a trading session expressed as minutes since midnight in
// the exchange's local time, inclusive of both ends.
type Window struct {
	Start int
	End   int
}

// ParseWindow parses "09:00-13:30" into a Window.
func ParseWindow(s string) (Window, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("parse window %q: want HH:MM-HH:MM", s)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Window{}, fmt.Errorf("parse window %q: %w", s, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Window{}, fmt.Errorf("parse window %q: %w", s, err)
	}
	if end <= start {
		return Window{}, fmt.Errorf("parse window %q: end before start", s)
	}
	return Window{Start: start, End: end}, nil
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	return h*60 + m, nil
}

func (w Window) contains(minute int) bool {
	return minute >= w.Start && minute <= w.End
}

// Instrument carries the trading rules for one symbol. It is an
// immutable snapshot: the catalog is built once per run and never
// mutated afterwards.
type Instrument struct {
	Symbol   string
	Name     string
	Currency string // ISO code, "TWD"
	Lot      int64  // board-lot size in shares
	TaxRate  decimal.Decimal
	Ticks    []TickBand // ordered, non-overlapping
	Fallback decimal.Decimal
	Hours    []Window // regular session(s)
	OddLot   []Window // after-hours odd-lot session(s)
	Active   bool
}

// Defaults for TWSE-listed ETFs, applied when instrument metadata omits
// a field. The tick schedule matches the exchange's published bands.
var (
	DefaultTWSELot     int64 = 1000
	DefaultTWSETaxRate       = decimal.NewFromFloat(0.001)

	DefaultTWSETicks = []TickBand{
		{Low: dec(0), High: dec(10), Tick: decimal.NewFromFloat(0.01)},
		{Low: dec(10), High: dec(50), Tick: decimal.NewFromFloat(0.05)},
		{Low: dec(50), High: dec(100), Tick: decimal.NewFromFloat(0.1)},
		{Low: dec(100), High: dec(500), Tick: decimal.NewFromFloat(0.5)},
		{Low: dec(500), High: dec(1000), Tick: dec(5)},
		{Low: dec(1000), High: decimal.Decimal{}, Tick: dec(10)},
	}

	DefaultTWSEHours  = []Window{{Start: 9 * 60, End: 13*60 + 30}}
	DefaultTWSEOddLot = []Window{{Start: 13*60 + 40, End: 14*60 + 30}}
)

func dec(i int64) decimal.Decimal { return decimal.NewFromInt(i) }

// NewTWSEInstrument builds an instrument with exchange defaults for
// every field the caller leaves empty.
func NewTWSEInstrument(symbol, name string) Instrument {
	return Instrument{
		Symbol:   symbol,
		Name:     name,
		Currency: "TWD",
		Lot:      DefaultTWSELot,
		TaxRate:  DefaultTWSETaxRate,
		Ticks:    DefaultTWSETicks,
		Hours:    DefaultTWSEHours,
		OddLot:   DefaultTWSEOddLot,
		Active:   true,
	}
}

func (in Instrument) validate() error {
	if in.Symbol == "" {
		return fmt.Errorf("instrument: symbol required")
	}
	if in.Lot <= 0 {
		return fmt.Errorf("instrument %s: lot size must be positive", in.Symbol)
	}
	if in.TaxRate.IsNegative() {
		return fmt.Errorf("instrument %s: negative tax rate", in.Symbol)
	}
	if len(in.Ticks) == 0 && in.Fallback.IsZero() {
		return fmt.Errorf("instrument %s: no tick schedule and no fallback tick", in.Symbol)
	}
	for i, b := range in.Ticks {
		if !b.Tick.IsPositive() {
			return fmt.Errorf("instrument %s: band %d tick must be positive", in.Symbol, i)
		}
		if !b.High.IsZero() && !b.High.GreaterThan(b.Low) {
			return fmt.Errorf("instrument %s: band %d has high <= low", in.Symbol, i)
		}
		if i > 0 {
			prev := in.Ticks[i-1]
			if prev.High.IsZero() || !b.Low.Equal(prev.High) {
				return fmt.Errorf("instrument %s: bands %d..%d not contiguous", in.Symbol, i-1, i)
			}
		}
	}
	if len(in.Hours) == 0 {
		return fmt.Errorf("instrument %s: no trading hours", in.Symbol)
	}
	return nil
}

// InSession reports whether t falls inside the instrument's regular
// session. Odd-lot orders validate against the odd-lot session instead.
func (in Instrument) InSession(t time.Time, loc *time.Location) bool {
	return inAnyWindow(in.Hours, t, loc)
}

func (in Instrument) InOddLotSession(t time.Time, loc *time.Location) bool {
	return inAnyWindow(in.OddLot, t, loc)
}

func inAnyWindow(ws []Window, t time.Time, loc *time.Location) bool {
	lt := t.In(loc)
	minute := lt.Hour()*60 + lt.Minute()
	for _, w := range ws {
		if w.contains(minute) {
			return true
		}
	}
	return false
}

// Catalog is a read-only snapshot of instrument metadata for one engine
// run. Components receive it explicitly; there is no global lookup.
type Catalog struct {
	bysym map[string]Instrument
	loc   *time.Location
}

// NewCatalog validates every instrument and freezes the snapshot.
// Malformed metadata is rejected here, before the engine starts.
func NewCatalog(instruments []Instrument, loc *time.Location) (*Catalog, error) {
	if loc == nil {
		loc = time.FixedZone("Asia/Taipei", 8*3600)
	}
	m := make(map[string]Instrument, len(instruments))
	for _, in := range instruments {
		if err := in.validate(); err != nil {
			return nil, err
		}
		if _, dup := m[in.Symbol]; dup {
			return nil, fmt.Errorf("instrument %s: duplicate symbol", in.Symbol)
		}
		// Keep bands sorted by lower bound so lookups scan in order.
		sort.SliceStable(in.Ticks, func(i, j int) bool {
			return in.Ticks[i].Low.LessThan(in.Ticks[j].Low)
		})
		m[in.Symbol] = in
	}
	return &Catalog{bysym: m, loc: loc}, nil
}

// Get returns the instrument for symbol, or ErrUnknownInstrument.
func (c *Catalog) Get(symbol string) (Instrument, error) {
	in, ok := c.bysym[symbol]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	return in, nil
}

// Symbols returns the catalog's symbols in lexical order.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.bysym))
	for s := range c.bysym {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Location is the exchange's local timezone, used for session checks.
func (c *Catalog) Location() *time.Location { return c.loc }
