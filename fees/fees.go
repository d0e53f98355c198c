// Package fees computes commission and transaction tax for fills.
//
// All monetary results round half-up at the currency's minor-unit
// precision, applied exactly once at the end of each computation.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidFeeInput = errors.New("invalid fee input")

// Taiwan retail defaults: 0.1425% brokerage commission with a NT$20
// floor. TWD has no minor unit, so amounts round to whole dollars.
var (
	DefaultCommissionRate = decimal.NewFromFloat(0.001425)
	DefaultMinCommission  = decimal.NewFromInt(20)
)

// Side mirrors the order side for tax purposes; the transaction tax is
// levied on sells only.
type Side int

const (
	Buy Side = iota
	Sell
)

// Calculator prices the costs of a single fill.
type Calculator struct {
	CommissionRate decimal.Decimal
	MinCommission  decimal.Decimal
	Precision      int32 // minor-unit decimals of the settlement currency
}

// NewTWD returns a calculator for TWD-settled instruments.
func NewTWD() Calculator {
	return Calculator{
		CommissionRate: DefaultCommissionRate,
		MinCommission:  DefaultMinCommission,
		Precision:      0,
	}
}

// Commission is max(price*qty*rate, floor), rounded once.
func (c Calculator) Commission(price decimal.Decimal, qty int64) (decimal.Decimal, error) {
	if err := checkInput(price, qty); err != nil {
		return decimal.Decimal{}, err
	}
	comm := price.Mul(decimal.NewFromInt(qty)).Mul(c.CommissionRate)
	if comm.LessThan(c.MinCommission) {
		comm = c.MinCommission
	}
	return comm.Round(c.Precision), nil
}

// Tax is price*qty*taxRate on the sell side, zero on the buy side,
// rounded once.
func (c Calculator) Tax(price decimal.Decimal, qty int64, taxRate decimal.Decimal, side Side) (decimal.Decimal, error) {
	if err := checkInput(price, qty); err != nil {
		return decimal.Decimal{}, err
	}
	if taxRate.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: negative tax rate %s", ErrInvalidFeeInput, taxRate)
	}
	if side != Sell {
		return decimal.Zero, nil
	}
	return price.Mul(decimal.NewFromInt(qty)).Mul(taxRate).Round(c.Precision), nil
}

// ForFill returns the gross amount, commission, and tax for one fill.
func (c Calculator) ForFill(price decimal.Decimal, qty int64, taxRate decimal.Decimal, side Side) (gross, commission, tax decimal.Decimal, err error) {
	if commission, err = c.Commission(price, qty); err != nil {
		return
	}
	if tax, err = c.Tax(price, qty, taxRate, side); err != nil {
		return
	}
	gross = price.Mul(decimal.NewFromInt(qty)).Round(c.Precision)
	return
}

func checkInput(price decimal.Decimal, qty int64) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price %s must be positive", ErrInvalidFeeInput, price)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: quantity %d must be positive", ErrInvalidFeeInput, qty)
	}
	return nil
}
