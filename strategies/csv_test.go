package strategies

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSignalsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	data := "time,strategy_id,symbol,action,confidence\n" +
		"2024-03-04T01:30:00Z,manual,0050,buy,0.7\n" +
		"2024-03-05T01:30:00Z,manual,0050,SELL\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	signals, err := LoadSignalsCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("got %d signals, want 2", len(signals))
	}
	if signals[0].Action != ActionBuy || signals[0].Confidence != 0.7 {
		t.Fatalf("signal 0: %+v", signals[0])
	}
	if signals[1].Action != ActionSell || signals[1].Confidence != 0 {
		t.Fatalf("signal 1: %+v", signals[1])
	}
}

func TestLoadSignalsCSVRejectsUnknownAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	data := "2024-03-04T01:30:00Z,manual,0050,SHORT\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadSignalsCSV(path); err == nil {
		t.Fatal("want error")
	}
}
