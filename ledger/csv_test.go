package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDividendsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dividends.csv")
	data := "symbol,ex_date,record_date,pay_date,per_share\n" +
		"0050,2024-07-15,2024-07-17,2024-08-09,1.8\n" +
		"0056,2024-10-21,,,2.1\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	evs, err := LoadDividendsCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Symbol != "0050" || !evs[0].PerShare.Equal(d("1.8")) {
		t.Fatalf("event 0: %+v", evs[0])
	}
	if evs[0].ExDate.Format("2006-01-02") != "2024-07-15" {
		t.Fatalf("event 0 ex date: %s", evs[0].ExDate)
	}
	if !evs[1].RecordDate.IsZero() || !evs[1].PayDate.IsZero() {
		t.Fatalf("event 1 optional dates: %+v", evs[1])
	}
}

func TestLoadDividendsCSVRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"bad per_share":   "0050,2024-07-15,,,abc\n",
		"zero per_share":  "0050,2024-07-15,,,0\n",
		"missing columns": "0050,2024-07-15\n",
		"bad ex_date":     "symbol,ex_date,record_date,pay_date,per_share\n0050,July 15,,,1.8\n",
	}
	for name, data := range cases {
		path := filepath.Join(t.TempDir(), "dividends.csv")
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadDividendsCSV(path); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
}
