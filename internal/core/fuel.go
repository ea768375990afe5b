package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// LitersPrecision is the number of decimal places kept for derived liters.
const LitersPrecision = 3

var fuelMarkers = []string{"combustível", "combustivel"}

// IsFuelCategory reports whether a category name looks like a fuel purchase.
// The match is a case-folded substring search, so "Combustível - Posto" and
// "COMBUSTIVEL" both qualify.
func IsFuelCategory(name string) bool {
	folded := cases.Fold().String(name)
	for _, marker := range fuelMarkers {
		if strings.Contains(folded, marker) {
			return true
		}
	}
	return false
}

// FuelData holds the derived fuel fields of an entry. Both are invalid
// (absent, not zero) when no fuel purchase is recorded.
type FuelData struct {
	Liters        decimal.NullDecimal
	PricePerLiter decimal.NullDecimal
}

// DeriveFuel computes liters = amount / price per liter for fuel categories.
// Nothing is derived unless the category matches the fuel heuristic and both
// amount and price are positive.
func DeriveFuel(categoryName string, amount Money, pricePerLiter decimal.Decimal) FuelData {
	if !IsFuelCategory(categoryName) {
		return FuelData{}
	}
	if amount.Cents <= 0 || !pricePerLiter.IsPositive() {
		return FuelData{}
	}
	liters := amount.Reais().DivRound(pricePerLiter, LitersPrecision)
	if !liters.IsPositive() {
		return FuelData{}
	}
	return FuelData{
		Liters:        decimal.NullDecimal{Decimal: liters, Valid: true},
		PricePerLiter: decimal.NullDecimal{Decimal: pricePerLiter, Valid: true},
	}
}

// positiveLiters returns the entry's liters when recorded and positive.
func positiveLiters(e Entry) (decimal.Decimal, bool) {
	if !e.FuelLiters.Valid || !e.FuelLiters.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return e.FuelLiters.Decimal, true
}
