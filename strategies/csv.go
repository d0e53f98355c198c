package strategies

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadSignalsCSV reads externally generated signals from a CSV file
// with the columns
//
//	time,strategy_id,symbol,action,confidence
//
// Time is RFC3339; action is BUY, SELL, or HOLD. A header row is
// skipped if the first field does not parse as a time.
func LoadSignalsCSV(path string) ([]Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signals: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []Signal
	line := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read signals: %w", err)
		}
		line++

		if len(rec) < 4 {
			return nil, fmt.Errorf("read signals: line %d: want at least 4 fields, got %d", line, len(rec))
		}

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("read signals: line %d: bad time %q", line, rec[0])
		}

		sig := Signal{
			Time:       ts.UTC(),
			StrategyID: strings.TrimSpace(rec[1]),
			Symbol:     strings.TrimSpace(rec[2]),
		}
		switch a := Action(strings.ToUpper(strings.TrimSpace(rec[3]))); a {
		case ActionBuy, ActionSell, ActionHold:
			sig.Action = a
		default:
			return nil, fmt.Errorf("read signals: line %d: unknown action %q", line, rec[3])
		}
		if len(rec) > 4 && strings.TrimSpace(rec[4]) != "" {
			if sig.Confidence, err = strconv.ParseFloat(strings.TrimSpace(rec[4]), 64); err != nil {
				return nil, fmt.Errorf("read signals: line %d: confidence: %w", line, err)
			}
		}

		out = append(out, sig)
	}

	return out, nil
}
