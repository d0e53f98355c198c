package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LoadDividendsCSV reads a dividend calendar from a CSV file with the
// columns
//
//	symbol,ex_date,record_date,pay_date,per_share
//
// Dates are YYYY-MM-DD; record_date and pay_date may be empty. A
// header row is skipped.
func LoadDividendsCSV(path string) ([]DividendEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dividends: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []DividendEvent
	line := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dividends: %w", err)
		}
		line++

		if len(rec) < 5 {
			return nil, fmt.Errorf("dividends line %d: need 5 columns, got %d", line, len(rec))
		}

		exRaw := strings.TrimSpace(rec[1])
		ex, err := time.Parse("2006-01-02", exRaw)
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("dividends line %d: bad ex_date %q: %w", line, exRaw, err)
		}

		ev := DividendEvent{
			Symbol: strings.TrimSpace(rec[0]),
			ExDate: ex,
		}
		if s := strings.TrimSpace(rec[2]); s != "" {
			if ev.RecordDate, err = time.Parse("2006-01-02", s); err != nil {
				return nil, fmt.Errorf("dividends line %d: bad record_date %q: %w", line, s, err)
			}
		}
		if s := strings.TrimSpace(rec[3]); s != "" {
			if ev.PayDate, err = time.Parse("2006-01-02", s); err != nil {
				return nil, fmt.Errorf("dividends line %d: bad pay_date %q: %w", line, s, err)
			}
		}
		if ev.PerShare, err = decimal.NewFromString(strings.TrimSpace(rec[4])); err != nil {
			return nil, fmt.Errorf("dividends line %d: bad per_share %q: %w", line, rec[4], err)
		}
		if ev.Symbol == "" {
			return nil, fmt.Errorf("dividends line %d: empty symbol", line)
		}
		if ev.PerShare.Sign() <= 0 {
			return nil, fmt.Errorf("dividends line %d: per_share must be positive", line)
		}

		out = append(out, ev)
	}

	return out, nil
}
