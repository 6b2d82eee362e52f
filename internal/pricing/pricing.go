// Package pricing holds the fund-wide unit price rule. Everything here is a
// pure function over decimals; no state, no storage.
package pricing

import "github.com/shopspring/decimal"

// SeedPrice is the price per unit while the fund has zero circulating units.
var SeedPrice = decimal.NewFromInt(10000)

// PriceScale is the storage precision for prices per unit.
const PriceScale = 6

// UnitScale is the storage precision for unit counts.
const UnitScale = 8

// PricePerUnit returns totalNAV / totalUnits rounded to PriceScale, or the
// seed price when the unit supply is zero or negative dust.
func PricePerUnit(totalNAV, totalUnits decimal.Decimal) decimal.Decimal {
	if totalUnits.Sign() <= 0 {
		return SeedPrice
	}
	return totalNAV.Div(totalUnits).Round(PriceScale)
}

// UnitsForCash returns cash / price, unrounded. Callers round to UnitScale at
// the storage boundary.
func UnitsForCash(cash, price decimal.Decimal) decimal.Decimal {
	return cash.Div(price)
}
