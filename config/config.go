package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/twaquant/etfengine/backtest"
	"github.com/twaquant/etfengine/fees"
	"github.com/twaquant/etfengine/ledger"
	"github.com/twaquant/etfengine/market"
	"github.com/twaquant/etfengine/sim"
)

// Config is the complete engine configuration. Everything that
// affects backtest results lives here so a run is reproducible from
// its config alone.
type Config struct {
	Account     AccountConfig      `json:"account" yaml:"account"`
	Fees        FeesConfig         `json:"fees" yaml:"fees"`
	Execution   ExecutionConfig    `json:"execution" yaml:"execution"`
	Backtest    BacktestConfig     `json:"backtest" yaml:"backtest"`
	Journal     JournalConfig      `json:"journal" yaml:"journal"`
	Instruments []InstrumentConfig `json:"instruments" yaml:"instruments"`
}

// AccountConfig initializes the backtest account.
type AccountConfig struct {
	ID             string  `json:"id" yaml:"id"`
	Currency       string  `json:"currency" yaml:"currency"`
	Precision      int32   `json:"precision" yaml:"precision"`
	InitialCash    float64 `json:"initial_cash" yaml:"initial_cash"`
	MaxUsableRatio float64 `json:"max_usable_ratio" yaml:"max_usable_ratio"`
}

// FeesConfig prices commissions. The transaction tax rate is
// per-instrument, not configured here.
type FeesConfig struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	MinCommission  float64 `json:"min_commission" yaml:"min_commission"`
}

// ExecutionConfig fixes the fill model.
type ExecutionConfig struct {
	FillPrice        string  `json:"fill_price" yaml:"fill_price"`               // "open" or "close"
	MaxParticipation float64 `json:"max_participation" yaml:"max_participation"` // fraction of bar volume
}

type BacktestConfig struct {
	LotsPerOrder int64 `json:"lots_per_order" yaml:"lots_per_order"`
}

// JournalConfig selects the persistence backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv", or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

// InstrumentConfig is one symbol's trading rules. Empty fields fall
// back to the TWSE ETF defaults.
type InstrumentConfig struct {
	Symbol  string           `json:"symbol" yaml:"symbol"`
	Name    string           `json:"name" yaml:"name"`
	Lot     int64            `json:"lot_size,omitempty" yaml:"lot_size,omitempty"`
	TaxRate float64          `json:"tax_rate,omitempty" yaml:"tax_rate,omitempty"`
	Ticks   []TickBandConfig `json:"tick_steps,omitempty" yaml:"tick_steps,omitempty"`
	Hours   []string         `json:"trading_hours,omitempty" yaml:"trading_hours,omitempty"`
	OddLot  []string         `json:"odd_lot_hours,omitempty" yaml:"odd_lot_hours,omitempty"`
	Active  *bool            `json:"active,omitempty" yaml:"active,omitempty"`
}

type TickBandConfig struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"` // 0 means unbounded
	Tick float64 `json:"tick" yaml:"tick"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration as YAML (.yaml/.yml) or JSON.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate rejects malformed configuration before the engine starts.
func (c *Config) Validate() error {
	if c.Account.ID == "" {
		return fmt.Errorf("account.id is required")
	}
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("account.initial_cash must be positive")
	}
	if c.Account.MaxUsableRatio <= 0 || c.Account.MaxUsableRatio > 1 {
		return fmt.Errorf("account.max_usable_ratio must be in (0, 1]")
	}
	if c.Fees.CommissionRate < 0 {
		return fmt.Errorf("fees.commission_rate must not be negative")
	}
	if c.Fees.MinCommission < 0 {
		return fmt.Errorf("fees.min_commission must not be negative")
	}
	if c.Execution.FillPrice != "open" && c.Execution.FillPrice != "close" {
		return fmt.Errorf("execution.fill_price must be 'open' or 'close'")
	}
	if c.Execution.MaxParticipation <= 0 || c.Execution.MaxParticipation > 1 {
		return fmt.Errorf("execution.max_participation must be in (0, 1]")
	}
	if c.Backtest.LotsPerOrder <= 0 {
		return fmt.Errorf("backtest.lots_per_order must be positive")
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for csv type")
		}
	case "none":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv', or 'none'")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	for i, in := range c.Instruments {
		if in.Symbol == "" {
			return fmt.Errorf("instruments[%d].symbol is required", i)
		}
		for _, h := range in.Hours {
			if _, err := market.ParseWindow(h); err != nil {
				return fmt.Errorf("instrument %s: %w", in.Symbol, err)
			}
		}
		for _, h := range in.OddLot {
			if _, err := market.ParseWindow(h); err != nil {
				return fmt.Errorf("instrument %s: %w", in.Symbol, err)
			}
		}
	}
	return nil
}

// BuildCatalog materializes the instrument snapshot used by one run.
func (c *Config) BuildCatalog(loc *time.Location) (*market.Catalog, error) {
	instruments := make([]market.Instrument, 0, len(c.Instruments))
	for _, ic := range c.Instruments {
		in := market.NewTWSEInstrument(ic.Symbol, ic.Name)
		in.Currency = c.Account.Currency
		if ic.Lot > 0 {
			in.Lot = ic.Lot
		}
		if ic.TaxRate > 0 {
			in.TaxRate = decimal.NewFromFloat(ic.TaxRate)
		}
		if len(ic.Ticks) > 0 {
			bands := make([]market.TickBand, len(ic.Ticks))
			for i, b := range ic.Ticks {
				bands[i] = market.TickBand{
					Low:  decimal.NewFromFloat(b.Low),
					High: decimal.NewFromFloat(b.High),
					Tick: decimal.NewFromFloat(b.Tick),
				}
			}
			in.Ticks = bands
		}
		if len(ic.Hours) > 0 {
			ws, err := parseWindows(ic.Hours)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: %w", ic.Symbol, err)
			}
			in.Hours = ws
		}
		if len(ic.OddLot) > 0 {
			ws, err := parseWindows(ic.OddLot)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: %w", ic.Symbol, err)
			}
			in.OddLot = ws
		}
		if ic.Active != nil {
			in.Active = *ic.Active
		}
		instruments = append(instruments, in)
	}
	return market.NewCatalog(instruments, loc)
}

func parseWindows(specs []string) ([]market.Window, error) {
	out := make([]market.Window, 0, len(specs))
	for _, s := range specs {
		w, err := market.ParseWindow(s)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// FeeCalculator builds the fee calculator for the configured account.
func (c *Config) FeeCalculator() fees.Calculator {
	return fees.Calculator{
		CommissionRate: decimal.NewFromFloat(c.Fees.CommissionRate),
		MinCommission:  decimal.NewFromFloat(c.Fees.MinCommission),
		Precision:      c.Account.Precision,
	}
}

// FillPolicy builds the execution policy.
func (c *Config) FillPolicy() sim.FillPolicy {
	return sim.FillPolicy{
		Price:            sim.PricePolicy(c.Execution.FillPrice),
		MaxParticipation: decimal.NewFromFloat(c.Execution.MaxParticipation),
	}
}

// LedgerAccount builds the account record for the run.
func (c *Config) LedgerAccount() ledger.Account {
	return ledger.Account{
		ID:             c.Account.ID,
		Currency:       c.Account.Currency,
		Precision:      c.Account.Precision,
		MaxUsableRatio: decimal.NewFromFloat(c.Account.MaxUsableRatio),
	}
}

// EngineConfig builds the backtest engine config for the run.
func (c *Config) EngineConfig() backtest.Config {
	return backtest.Config{
		Account:      c.LedgerAccount(),
		InitialCash:  decimal.NewFromFloat(c.Account.InitialCash),
		LotsPerOrder: c.Backtest.LotsPerOrder,
	}
}

// Default returns a configuration with TWSE ETF defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:             "SIM-001",
			Currency:       "TWD",
			Precision:      0,
			InitialCash:    1_000_000,
			MaxUsableRatio: 0.8,
		},
		Fees: FeesConfig{
			CommissionRate: 0.001425,
			MinCommission:  20,
		},
		Execution: ExecutionConfig{
			FillPrice:        "close",
			MaxParticipation: 0.25,
		},
		Backtest: BacktestConfig{
			LotsPerOrder: 1,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./backtest.sqlite",
		},
		Instruments: []InstrumentConfig{
			{Symbol: "0050", Name: "Yuanta Taiwan Top 50 ETF"},
			{Symbol: "0056", Name: "Yuanta Taiwan Dividend Plus ETF"},
		},
	}
}
