package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LoadBarsCSV reads minute bars from a CSV file with the columns
//
//	time,symbol,open,high,low,close,volume[,turnover[,source]]
//
// Time is RFC3339. A header row is skipped if the first field does not
// parse as a time. Bars are validated and sequence-checked per symbol.
func LoadBarsCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	guard := NewSequenceGuard()
	var bars []Bar
	line := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bars: %w", err)
		}
		line++

		if len(rec) < 7 {
			return nil, fmt.Errorf("read bars: line %d: want at least 7 fields, got %d", line, len(rec))
		}

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("read bars: line %d: bad time %q", line, rec[0])
		}

		b := Bar{
			Symbol: strings.TrimSpace(rec[1]),
			Start:  ts.UTC(),
			Source: "csv",
		}
		if b.Open, err = decimal.NewFromString(strings.TrimSpace(rec[2])); err != nil {
			return nil, fmt.Errorf("read bars: line %d: open: %w", line, err)
		}
		if b.High, err = decimal.NewFromString(strings.TrimSpace(rec[3])); err != nil {
			return nil, fmt.Errorf("read bars: line %d: high: %w", line, err)
		}
		if b.Low, err = decimal.NewFromString(strings.TrimSpace(rec[4])); err != nil {
			return nil, fmt.Errorf("read bars: line %d: low: %w", line, err)
		}
		if b.Close, err = decimal.NewFromString(strings.TrimSpace(rec[5])); err != nil {
			return nil, fmt.Errorf("read bars: line %d: close: %w", line, err)
		}
		if b.Volume, err = strconv.ParseInt(strings.TrimSpace(rec[6]), 10, 64); err != nil {
			return nil, fmt.Errorf("read bars: line %d: volume: %w", line, err)
		}
		if len(rec) > 7 && strings.TrimSpace(rec[7]) != "" {
			if b.Turnover, err = decimal.NewFromString(strings.TrimSpace(rec[7])); err != nil {
				return nil, fmt.Errorf("read bars: line %d: turnover: %w", line, err)
			}
		}
		if len(rec) > 8 && strings.TrimSpace(rec[8]) != "" {
			b.Source = strings.TrimSpace(rec[8])
		}

		if err := guard.Check(b); err != nil {
			return nil, fmt.Errorf("read bars: line %d: %w", line, err)
		}
		bars = append(bars, b)
	}

	return bars, nil
}
