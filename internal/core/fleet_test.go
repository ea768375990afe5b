package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func odo(v int64) *int64 { return &v }

func liters(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestComputeVehicleMetrics(t *testing.T) {
	v := Vehicle{ID: "car-1", InitialOdometer: 1000}
	fuel := withVehicle(entry(KindExpense, 20000, NewDate(2024, 5, 1)), "car-1")
	fuel.Odometer = odo(1200)
	fuel.FuelLiters = liters("40")
	repair := withVehicle(entry(KindExpense, 5000, NewDate(2024, 5, 3)), "car-1")
	repair.Odometer = odo(1500)
	ride := withVehicle(entry(KindIncome, 90000, NewDate(2024, 5, 4)), "car-1")
	ride.Odometer = odo(9999)
	other := withVehicle(entry(KindExpense, 100, NewDate(2024, 5, 4)), "car-2")
	other.Odometer = odo(50000)

	m := ComputeVehicleMetrics(v, []Entry{fuel, repair, ride, other})

	if m.DistanceTotal != 500 || m.DistanceOnFuel != 200 {
		t.Fatalf("distances = %d / %d", m.DistanceTotal, m.DistanceOnFuel)
	}
	if got := m.AvgKmPerLiter.StringFixed(2); got != "5.00" {
		t.Fatalf("avg km/l = %s", got)
	}
	if m.TotalIncome.Cents != 90000 || m.TotalExpense.Cents != 25000 || m.Net.Cents != 65000 {
		t.Fatalf("totals = %+v", m)
	}
	if m.TotalFuelCost.Cents != 20000 || !m.TotalLiters.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("fuel totals = %d / %s", m.TotalFuelCost.Cents, m.TotalLiters)
	}
}

func TestComputeVehicleMetricsNoEntries(t *testing.T) {
	m := ComputeVehicleMetrics(Vehicle{ID: "car-1", InitialOdometer: 700}, nil)
	if m.MaxOdometer != 700 || m.DistanceTotal != 0 || m.DistanceOnFuel != 0 {
		t.Fatalf("empty metrics = %+v", m)
	}
	if !m.AvgKmPerLiter.IsZero() {
		t.Fatalf("avg km/l = %s, want 0", m.AvgKmPerLiter)
	}
}

func TestComputeVehicleMetricsIgnoresNonPositiveLiters(t *testing.T) {
	v := Vehicle{ID: "car-1"}
	e := withVehicle(entry(KindExpense, 1000, NewDate(2024, 5, 1)), "car-1")
	e.Odometer = odo(300)
	e.FuelLiters = liters("0")
	m := ComputeVehicleMetrics(v, []Entry{e})
	if m.TotalFuelCost.Cents != 0 || m.DistanceOnFuel != 0 || !m.AvgKmPerLiter.IsZero() {
		t.Fatalf("zero liters counted as fuel: %+v", m)
	}
	if m.DistanceTotal != 300 {
		t.Fatalf("distance total = %d", m.DistanceTotal)
	}
}

func TestAvgKmPerLiterRounds(t *testing.T) {
	v := Vehicle{ID: "car-1"}
	e := withVehicle(entry(KindExpense, 1000, NewDate(2024, 5, 1)), "car-1")
	e.Odometer = odo(100)
	e.FuelLiters = liters("3")
	m := ComputeVehicleMetrics(v, []Entry{e})
	if got := m.AvgKmPerLiter.String(); got != "33.33" {
		t.Fatalf("avg km/l = %s", got)
	}
}

func TestRenewalDefaults(t *testing.T) {
	end := NewDate(2024, 6, 30)
	v := Vehicle{
		ID: "car-1", Ownership: Rented, InitialOdometer: 100,
		ContractValue: MoneyPtr(250000), ContractEndDate: &end, ProfitGoal: MoneyPtr(400000),
	}
	e := withVehicle(entry(KindExpense, 1000, NewDate(2024, 6, 1)), "car-1")
	e.Odometer = odo(4321)

	r := RenewalDefaults(v, []Entry{e})
	if r.StartDate == nil || r.StartDate.String() != "2024-06-30" {
		t.Fatalf("start = %v", r.StartDate)
	}
	if r.InitialKm == nil || *r.InitialKm != 4321 {
		t.Fatalf("initial km = %v", r.InitialKm)
	}
	if r.ContractValue.Cents != 250000 || r.ProfitGoal.Cents != 400000 {
		t.Fatalf("renewal = %+v", r)
	}

	newEnd := NewDate(2024, 12, 31)
	r.EndDate = &newEnd
	renewed := r.Apply(v)
	if renewed.ContractStartDate.String() != "2024-06-30" || renewed.ContractEndDate.String() != "2024-12-31" {
		t.Fatalf("applied dates = %v %v", renewed.ContractStartDate, renewed.ContractEndDate)
	}
	if *renewed.ContractInitialKm != 4321 {
		t.Fatalf("applied km = %d", *renewed.ContractInitialKm)
	}
}
