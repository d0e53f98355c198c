package config

import (
	"fmt"

	"github.com/twaquant/etfengine/journal"
)

// OpenJournal opens the configured journal backend. The caller owns
// the returned journal and must Close it.
func (c *Config) OpenJournal() (journal.Journal, error) {
	switch c.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(c.Journal.DBPath)
	case "csv":
		return journal.NewCSV(c.Journal.TradesFile, c.Journal.EquityFile)
	case "none":
		return journal.Discard, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", c.Journal.Type)
	}
}
