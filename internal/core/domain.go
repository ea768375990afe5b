package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	Owned  Ownership = "owned"
	Rented Ownership = "rented"
)

type (
	// Kind classifies categories and entries as income or expense.
	Kind string

	// Ownership says whether a vehicle is owned or rented.
	Ownership string

	// Date is a calendar date without time of day, stored as UTC midnight.
	Date struct {
		time.Time
	}

	// Money is an amount in centavos.
	Money struct {
		Cents int64
	}

	Category struct {
		ID        string    `db:"id" json:"id"`
		Owner     string    `db:"user_id" json:"owner"`
		Name      string    `db:"name" json:"name"`
		Kind      Kind      `db:"kind" json:"kind"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
	}

	// Vehicle is a fleet asset entries can be attributed to. Contract fields
	// only carry values for rented vehicles; MaintenanceReserve only for owned ones.
	Vehicle struct {
		ID                 string    `db:"id" json:"id"`
		Owner              string    `db:"user_id" json:"owner"`
		Name               string    `db:"name" json:"name"`
		Plate              string    `db:"plate" json:"plate"`
		Ownership          Ownership `db:"ownership" json:"ownership"`
		InitialOdometer    int64     `db:"initial_odometer" json:"initial_odometer"`
		ContractValue      *Money    `db:"contract_value" json:"contract_value,omitempty"`
		ContractStartDate  *Date     `db:"contract_start_date" json:"contract_start_date,omitempty"`
		ContractEndDate    *Date     `db:"contract_end_date" json:"contract_end_date,omitempty"`
		ContractInitialKm  *int64    `db:"contract_initial_km" json:"contract_initial_km,omitempty"`
		ProfitGoal         *Money    `db:"profit_goal" json:"profit_goal,omitempty"`
		MaintenanceReserve *Money    `db:"maintenance_reserve" json:"maintenance_reserve,omitempty"`
		CreatedAt          time.Time `db:"created_at" json:"created_at"`
	}

	// Entry is a single income or expense record (lançamento).
	Entry struct {
		ID                string              `db:"id" json:"id"`
		Owner             string              `db:"user_id" json:"owner"`
		Kind              Kind                `db:"kind" json:"kind"`
		CategoryID        string              `db:"category_id" json:"category_id"`
		Amount            Money               `db:"amount_cents" json:"amount"`
		Date              Date                `db:"date" json:"date"`
		Note              string              `db:"note" json:"note"`
		CreatedAt         time.Time           `db:"created_at" json:"created_at"`
		VehicleID         *string             `db:"vehicle_id" json:"vehicle_id,omitempty"`
		Odometer          *int64              `db:"odometer" json:"odometer,omitempty"`
		FuelLiters        decimal.NullDecimal `db:"fuel_liters" json:"fuel_liters"`
		FuelPricePerLiter decimal.NullDecimal `db:"fuel_price_per_liter" json:"fuel_price_per_liter"`

		// Joined records, filled by the repository when available.
		Category *Category `db:"-" json:"category,omitempty"`
		Vehicle  *Vehicle  `db:"-" json:"vehicle,omitempty"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidKind      = &ValidationError{Field: "kind", Message: "Tipo inválido."}
	ErrInvalidOwnership = &ValidationError{Field: "ownership", Message: "Tipo de veículo inválido."}
	ErrEmptyName        = &ValidationError{Field: "name", Message: "Informe o nome."}
	ErrEmptyPlate       = &ValidationError{Field: "plate", Message: "Informe a placa."}
	ErrNegativeOdometer = &ValidationError{Field: "initial_odometer", Message: "O hodômetro não pode ser negativo."}
)

// ParseKind accepts the English wire values and the Portuguese aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "receita":
		return KindIncome, nil
	case "expense", "despesa":
		return KindExpense, nil
	}
	return "", ErrInvalidKind
}

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Sign returns +1 for income, -1 for expense and 0 for anything else.
func (k Kind) Sign() int64 {
	switch k {
	case KindIncome:
		return 1
	case KindExpense:
		return -1
	}
	return 0
}

// ParseOwnership accepts owned/rented and the legacy own value.
func ParseOwnership(s string) (Ownership, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owned", "own", "proprio", "próprio":
		return Owned, nil
	case "rented", "alugado":
		return Rented, nil
	}
	return "", ErrInvalidOwnership
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Before reports whether d is strictly earlier than other, by calendar day.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// InRange reports whether d lies within [start, end], both inclusive.
func (d Date) InRange(start, end Date) bool {
	return !d.Before(start) && !d.After(end)
}

// SameMonth reports whether both dates fall in the same calendar month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan reads DATE columns from Postgres and TEXT columns from SQLite.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = DateOf(v)
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrAmountNotPositive
	}
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Cents)
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &m.Cents)
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		m.Cents = 0
	case int64:
		m.Cents = v
	case float64:
		m.Cents = int64(v)
	case []byte:
		return m.scanDecimal(string(v))
	case string:
		return m.scanDecimal(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
	return nil
}

func (m *Money) scanDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("scan money %q: %w", s, err)
	}
	m.Cents = d.IntPart()
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.Cents, nil
}

// MoneyPtr is a convenience for optional amount fields.
func MoneyPtr(cents int64) *Money {
	return &Money{Cents: cents}
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (v Vehicle) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(v.Plate) == "" {
		return ErrEmptyPlate
	}
	if v.Ownership != Owned && v.Ownership != Rented {
		return ErrInvalidOwnership
	}
	if v.InitialOdometer < 0 {
		return ErrNegativeOdometer
	}
	return nil
}

// Normalize clears the fields that do not apply to the vehicle's ownership.
// Rented vehicles drop the maintenance reserve; owned vehicles drop every
// contract field. The profit goal applies to both.
func (v Vehicle) Normalize() Vehicle {
	switch v.Ownership {
	case Rented:
		v.MaintenanceReserve = nil
	case Owned:
		v.ContractValue = nil
		v.ContractStartDate = nil
		v.ContractEndDate = nil
		v.ContractInitialKm = nil
	}
	return v
}

func (e Entry) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrRequiredFields
	}
	if err := e.Date.Validate(); err != nil {
		return ErrRequiredFields
	}
	return e.Amount.Validate()
}

// HasVehicle reports whether the entry is attributed to a vehicle.
func (e Entry) HasVehicle() bool {
	return e.VehicleID != nil && *e.VehicleID != ""
}

// BelongsTo reports whether the entry is attributed to the given vehicle.
func (e Entry) BelongsTo(vehicleID string) bool {
	return e.HasVehicle() && *e.VehicleID == vehicleID
}

// SignedAmount is +amount for income, -amount for expense and zero for an
// unknown kind.
func (e Entry) SignedAmount() int64 {
	return e.Kind.Sign() * nonNegative(e.Amount.Cents)
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
