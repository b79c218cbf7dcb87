package position

import (
	"github.com/shopspring/decimal"

	"tradeserver/pkg/errors"
)

// FeeRate is the taker fee charged per leg (2 bps)
var FeeRate = decimal.RequireFromString("0.0002")

var two = decimal.NewFromInt(2)

// Quantity converts a quote-denominated position size into base units.
// A zero entry price is rejected rather than silently producing zero.
func Quantity(size, entryPrice decimal.Decimal) (decimal.Decimal, error) {
	if entryPrice.IsZero() {
		return decimal.Zero, errors.ErrZeroEntryPrice
	}
	return size.Div(entryPrice), nil
}

// GrossPnL computes the fee-free PnL of a position at the given mark price.
func GrossPnL(side Side, entryPrice, markPrice, quantity decimal.Decimal) decimal.Decimal {
	if side == SideLong {
		return markPrice.Sub(entryPrice).Mul(quantity)
	}
	return entryPrice.Sub(markPrice).Mul(quantity)
}

// Fee returns the round-trip fee for a position of the given size,
// charging FeeRate on both the entry and the exit leg.
func Fee(size decimal.Decimal) decimal.Decimal {
	return size.Mul(FeeRate).Mul(two)
}

// NetPnL computes the fee-adjusted PnL at the given mark price.
func NetPnL(side Side, entryPrice, markPrice, size decimal.Decimal) (decimal.Decimal, error) {
	qty, err := Quantity(size, entryPrice)
	if err != nil {
		return decimal.Zero, err
	}
	gross := GrossPnL(side, entryPrice, markPrice, qty)
	return gross.Sub(Fee(size)), nil
}

// UnrealizedPnL computes the position's current net PnL at the mark price.
func (p *Position) UnrealizedPnL(markPrice decimal.Decimal) (decimal.Decimal, error) {
	return NetPnL(p.Side, p.EntryPrice, markPrice, p.Size)
}
