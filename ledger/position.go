package ledger

import "github.com/shopspring/decimal"

// Position is the per (account, symbol) holding. Quantity never goes
// negative; short selling is not modeled. The record is kept at zero
// quantity so cumulative realized P/L survives a full exit.
type Position struct {
	AccountID  string
	Symbol     string
	Qty        int64
	AvgCost    decimal.Decimal
	RealizedPL decimal.Decimal
}

// buy folds a fill into the weighted-average cost:
// (old_qty*old_cost + fill_qty*fill_price) / (old_qty + fill_qty).
func (p *Position) buy(qty int64, price decimal.Decimal) {
	oldNotional := p.AvgCost.Mul(decimal.NewFromInt(p.Qty))
	fillNotional := price.Mul(decimal.NewFromInt(qty))
	newQty := p.Qty + qty
	p.AvgCost = oldNotional.Add(fillNotional).Div(decimal.NewFromInt(newQty))
	p.Qty = newQty
}

// sell realizes fill_qty*(fill_price - avg_cost) and reduces quantity;
// average cost is unchanged. Callers guarantee qty <= p.Qty.
func (p *Position) sell(qty int64, price decimal.Decimal) decimal.Decimal {
	realized := price.Sub(p.AvgCost).Mul(decimal.NewFromInt(qty))
	p.RealizedPL = p.RealizedPL.Add(realized)
	p.Qty -= qty
	if p.Qty == 0 {
		p.AvgCost = decimal.Zero
	}
	return realized
}

// MarketValue marks the position at the given price.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Qty))
}
