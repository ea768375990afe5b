package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsFuelCategory(t *testing.T) {
	cases := map[string]bool{
		"Combustível":           true,
		"COMBUSTIVEL":           true,
		"Combustível - Posto":   true,
		"Gasto com combustivel": true,
		"Manutenção":            false,
		"":                      false,
	}
	for name, want := range cases {
		if got := IsFuelCategory(name); got != want {
			t.Errorf("IsFuelCategory(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDeriveFuel(t *testing.T) {
	price := decimal.RequireFromString("5.899")
	got := DeriveFuel("Combustível", Money{Cents: 20000}, price)
	if !got.Liters.Valid || got.Liters.Decimal.String() != "33.904" {
		t.Fatalf("liters = %+v", got.Liters)
	}
	if !got.PricePerLiter.Valid || !got.PricePerLiter.Decimal.Equal(price) {
		t.Fatalf("price = %+v", got.PricePerLiter)
	}

	cases := []struct {
		name   string
		cat    string
		amount int64
		price  string
	}{
		{"not fuel", "Mercado", 20000, "5.899"},
		{"zero price", "Combustível", 20000, "0"},
		{"negative price", "Combustível", 20000, "-1"},
		{"zero amount", "Combustível", 0, "5.899"},
	}
	for _, tc := range cases {
		got := DeriveFuel(tc.cat, Money{Cents: tc.amount}, decimal.RequireFromString(tc.price))
		if got.Liters.Valid || got.PricePerLiter.Valid {
			t.Errorf("%s: expected no fuel data, got %+v", tc.name, got)
		}
	}
}
