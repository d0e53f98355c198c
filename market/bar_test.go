package market

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validBar(symbol string, start time.Time) Bar {
	return Bar{
		Symbol: symbol,
		Start:  start,
		Open:   d("30.00"),
		High:   d("30.20"),
		Low:    d("29.90"),
		Close:  d("30.10"),
		Volume: 1_000_000,
	}
}

func TestBarValidate(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC)

	if err := validBar("0050", t0).Validate(); err != nil {
		t.Fatalf("valid bar: %v", err)
	}

	b := validBar("0050", t0)
	b.Symbol = ""
	if err := b.Validate(); err == nil {
		t.Fatal("empty symbol: want error")
	}

	b = validBar("0050", t0)
	b.Start = time.Time{}
	if err := b.Validate(); err == nil {
		t.Fatal("zero time: want error")
	}

	b = validBar("0050", t0)
	b.Low = d("0")
	if err := b.Validate(); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero low: got %v, want ErrInvalidPrice", err)
	}

	b = validBar("0050", t0)
	b.High, b.Low = b.Low, b.High
	if err := b.Validate(); err == nil {
		t.Fatal("high < low: want error")
	}

	b = validBar("0050", t0)
	b.Volume = -1
	if err := b.Validate(); err == nil {
		t.Fatal("negative volume: want error")
	}
}

func TestBarCrosses(t *testing.T) {
	b := validBar("0050", time.Now())

	for _, p := range []string{"29.90", "30.00", "30.20"} {
		if !b.Crosses(d(p)) {
			t.Fatalf("Crosses(%s): want true", p)
		}
	}
	for _, p := range []string{"29.85", "30.25"} {
		if b.Crosses(d(p)) {
			t.Fatalf("Crosses(%s): want false", p)
		}
	}
}

func TestSequenceGuard(t *testing.T) {
	g := NewSequenceGuard()
	t0 := time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC)

	if err := g.Check(validBar("0050", t0)); err != nil {
		t.Fatalf("first bar: %v", err)
	}
	if err := g.Check(validBar("0050", t0.Add(time.Minute))); err != nil {
		t.Fatalf("next bar: %v", err)
	}

	// Same timestamp is stale, not just earlier ones.
	if err := g.Check(validBar("0050", t0.Add(time.Minute))); !errors.Is(err, ErrStaleBar) {
		t.Fatalf("duplicate bar: got %v, want ErrStaleBar", err)
	}
	if err := g.Check(validBar("0050", t0)); !errors.Is(err, ErrStaleBar) {
		t.Fatalf("old bar: got %v, want ErrStaleBar", err)
	}

	// Tracking is per symbol.
	if err := g.Check(validBar("0056", t0)); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
}

func TestLoadBarsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	data := "time,symbol,open,high,low,close,volume,turnover,source\n" +
		"2024-03-04T01:00:00Z,0050,30.00,30.20,29.90,30.10,1000000,30100000,twse\n" +
		"2024-03-04T01:01:00Z,0050,30.10,30.15,30.00,30.05,500000,,\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	bars, err := LoadBarsCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Symbol != "0050" || !bars[0].Close.Equal(d("30.10")) || bars[0].Volume != 1000000 {
		t.Fatalf("bar 0: %+v", bars[0])
	}
	if bars[0].Source != "twse" || !bars[0].Turnover.Equal(d("30100000")) {
		t.Fatalf("bar 0 extras: %+v", bars[0])
	}
	if bars[1].Source != "csv" {
		t.Fatalf("bar 1 default source: %q", bars[1].Source)
	}
}

func TestLoadBarsCSVRejectsStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	data := "2024-03-04T01:01:00Z,0050,30.00,30.20,29.90,30.10,1000\n" +
		"2024-03-04T01:00:00Z,0050,30.00,30.20,29.90,30.10,1000\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadBarsCSV(path); !errors.Is(err, ErrStaleBar) {
		t.Fatalf("got %v, want ErrStaleBar", err)
	}
}
