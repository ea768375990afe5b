package core

import (
	"github.com/shopspring/decimal"
)

// VehicleMetrics summarises the entries attributed to one vehicle.
type VehicleMetrics struct {
	VehicleID       string          `json:"vehicle_id"`
	TotalIncome     Money           `json:"total_income"`
	TotalExpense    Money           `json:"total_expense"`
	Net             Money           `json:"net"`
	MaxOdometer     int64           `json:"max_odometer"`
	MaxFuelOdometer int64           `json:"max_fuel_odometer"`
	TotalFuelCost   Money           `json:"total_fuel_cost"`
	TotalLiters     decimal.Decimal `json:"total_liters"`
	DistanceTotal   int64           `json:"distance_total"`
	DistanceOnFuel  int64           `json:"distance_on_fuel"`
	AvgKmPerLiter   decimal.Decimal `json:"avg_km_per_liter"`
}

// ComputeVehicleMetrics derives totals, odometer maxima and fuel economy.
// Odometer readings and fuel purchases only count on expense entries.
// AvgKmPerLiter is rounded to two places and is zero when no liters exist.
func ComputeVehicleMetrics(v Vehicle, entries []Entry) VehicleMetrics {
	m := VehicleMetrics{
		VehicleID:       v.ID,
		MaxOdometer:     v.InitialOdometer,
		MaxFuelOdometer: v.InitialOdometer,
		TotalLiters:     decimal.Zero,
		AvgKmPerLiter:   decimal.Zero,
	}
	for _, e := range entries {
		if !e.BelongsTo(v.ID) {
			continue
		}
		amount := nonNegative(e.Amount.Cents)
		if e.Kind == KindIncome {
			m.TotalIncome.Cents += amount
			continue
		}
		if e.Kind != KindExpense {
			continue
		}
		m.TotalExpense.Cents += amount
		if e.Odometer != nil && *e.Odometer > m.MaxOdometer {
			m.MaxOdometer = *e.Odometer
		}
		liters, ok := positiveLiters(e)
		if !ok {
			continue
		}
		m.TotalFuelCost.Cents += amount
		m.TotalLiters = m.TotalLiters.Add(liters)
		if e.Odometer != nil && *e.Odometer > m.MaxFuelOdometer {
			m.MaxFuelOdometer = *e.Odometer
		}
	}
	m.Net.Cents = m.TotalIncome.Cents - m.TotalExpense.Cents
	m.DistanceTotal = m.MaxOdometer - v.InitialOdometer
	m.DistanceOnFuel = m.MaxFuelOdometer - v.InitialOdometer
	if m.TotalLiters.IsPositive() {
		m.AvgKmPerLiter = decimal.NewFromInt(m.DistanceOnFuel).DivRound(m.TotalLiters, 2)
	}
	return m
}

// LastOdometer is the highest reading known for the vehicle, or its
// initial odometer when nothing has been recorded.
func LastOdometer(v Vehicle, entries []Entry) int64 {
	return ComputeVehicleMetrics(v, entries).MaxOdometer
}

// RenewalDefaults pre-fills a contract renewal: the new contract starts
// where the previous one ended and its initial km is the last odometer.
func RenewalDefaults(v Vehicle, entries []Entry) Renewal {
	r := Renewal{
		StartDate: v.ContractEndDate,
	}
	if v.ContractValue != nil {
		r.ContractValue = *v.ContractValue
	}
	if v.ProfitGoal != nil {
		r.ProfitGoal = *v.ProfitGoal
	}
	km := LastOdometer(v, entries)
	r.InitialKm = &km
	return r
}

// Renewal is a new contract period for a rented vehicle.
type Renewal struct {
	ContractValue Money  `json:"contract_value"`
	StartDate     *Date  `json:"contract_start_date,omitempty"`
	EndDate       *Date  `json:"contract_end_date,omitempty"`
	InitialKm     *int64 `json:"contract_initial_km,omitempty"`
	ProfitGoal    Money  `json:"profit_goal"`
}

// Apply writes the renewal onto the vehicle's contract fields.
func (r Renewal) Apply(v Vehicle) Vehicle {
	value, goal := r.ContractValue, r.ProfitGoal
	v.ContractValue = &value
	v.ContractStartDate = r.StartDate
	v.ContractEndDate = r.EndDate
	v.ContractInitialKm = r.InitialKm
	v.ProfitGoal = &goal
	return v
}
