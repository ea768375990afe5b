package core

import (
	"errors"
	"fmt"
	"strings"
)

// MinPasswordLength is the shortest password accepted on sign up or update.
const MinPasswordLength = 6

// ValidationError is a user input problem caught before touching storage.
// Message is shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrRequiredFields    = &ValidationError{Message: "Preencha os campos obrigatórios."}
	ErrAmountNotPositive = &ValidationError{Field: "amount", Message: "O valor deve ser maior que zero."}
	ErrInvalidAmount     = &ValidationError{Field: "amount", Message: "Valor inválido."}
	ErrInvalidDate       = &ValidationError{Field: "date", Message: "Data inválida."}
	ErrVehicleRequired   = &ValidationError{Field: "vehicle_id", Message: "Selecione um veículo."}
	ErrOdometerRequired  = &ValidationError{Field: "odometer", Message: "Informe o hodômetro atual."}
	ErrInvalidOdometer   = &ValidationError{Field: "odometer", Message: "Hodômetro inválido."}
	ErrOdometerRegressed = &ValidationError{Field: "odometer", Message: "O hodômetro não pode ser menor que o último registrado."}
	ErrKindMismatch      = &ValidationError{Field: "category_id", Message: "A categoria não corresponde ao tipo do lançamento."}
	ErrPasswordTooShort  = &ValidationError{Field: "password", Message: "A senha deve ter pelo menos 6 caracteres."}
	ErrEmailRequired     = &ValidationError{Field: "email", Message: "Informe o email."}
)

// OdometerRegressionError reports a reading below the last known odometer.
type OdometerRegressionError struct {
	Reading int64
	Last    int64
}

func (e *OdometerRegressionError) Error() string {
	return fmt.Sprintf("O hodômetro informado (%d km) é menor que o último registrado (%d km).", e.Reading, e.Last)
}

func (e *OdometerRegressionError) Unwrap() error {
	return ErrOdometerRegressed
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// EntryForm is the raw input of the entry form. Amount uses the masked
// currency format; odometer and fuel price are only read for vehicle entries.
type EntryForm struct {
	Kind           Kind   `json:"kind"`
	CategoryID     string `json:"category_id"`
	AmountInput    string `json:"amount"`
	DateInput      string `json:"date"`
	Note           string `json:"note"`
	VehicleLinked  bool   `json:"vehicle_linked"`
	VehicleID      string `json:"vehicle_id"`
	OdometerInput  string `json:"odometer"`
	FuelPriceInput string `json:"fuel_price_per_liter"`
	EditingID      string `json:"-"`
}

func (f EntryForm) editing() bool {
	return strings.TrimSpace(f.EditingID) != ""
}

func (f EntryForm) requiresOdometer() bool {
	return f.VehicleLinked && f.Kind == KindExpense
}

// Validate runs the form checks in order and stops at the first failure:
// required fields, positive amount, vehicle selected, odometer present,
// and odometer not below lastOdometer. The last check is skipped when
// editing an existing entry.
func (f EntryForm) Validate(lastOdometer int64) error {
	if strings.TrimSpace(f.CategoryID) == "" || strings.TrimSpace(f.AmountInput) == "" || strings.TrimSpace(f.DateInput) == "" {
		return ErrRequiredFields
	}
	amount, err := ParseCurrencyInput(f.AmountInput)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return ErrAmountNotPositive
	}
	if !f.Kind.Valid() {
		return ErrInvalidKind
	}
	if _, err := ParseDate(f.DateInput); err != nil {
		return ErrInvalidDate
	}
	if !f.VehicleLinked {
		return nil
	}
	if strings.TrimSpace(f.VehicleID) == "" {
		return ErrVehicleRequired
	}
	if !f.requiresOdometer() {
		return nil
	}
	if strings.TrimSpace(f.OdometerInput) == "" {
		return ErrOdometerRequired
	}
	reading, err := ParseOdometer(f.OdometerInput)
	if err != nil {
		return err
	}
	if !f.editing() && reading < lastOdometer {
		return &OdometerRegressionError{Reading: reading, Last: lastOdometer}
	}
	return nil
}

// Build turns a validated form into an entry. The category must match the
// entry kind; fuel fields are derived from it.
func (f EntryForm) Build(owner string, category Category) (Entry, error) {
	if category.Kind != f.Kind {
		return Entry{}, ErrKindMismatch
	}
	amount, err := ParseCurrencyInput(f.AmountInput)
	if err != nil {
		return Entry{}, err
	}
	date, err := ParseDate(f.DateInput)
	if err != nil {
		return Entry{}, ErrInvalidDate
	}
	e := Entry{
		ID:         strings.TrimSpace(f.EditingID),
		Owner:      owner,
		Kind:       f.Kind,
		CategoryID: category.ID,
		Amount:     Money{Cents: amount},
		Date:       date,
		Note:       strings.TrimSpace(f.Note),
		Category:   &category,
	}
	if f.VehicleLinked {
		vid := strings.TrimSpace(f.VehicleID)
		e.VehicleID = &vid
		if strings.TrimSpace(f.OdometerInput) != "" {
			if reading, err := ParseOdometer(f.OdometerInput); err == nil {
				e.Odometer = &reading
			}
		}
	}
	if strings.TrimSpace(f.FuelPriceInput) != "" {
		if price, err := ParseDecimalInput(f.FuelPriceInput); err == nil {
			fuel := DeriveFuel(category.Name, e.Amount, price)
			e.FuelLiters = fuel.Liters
			e.FuelPricePerLiter = fuel.PricePerLiter
		}
	}
	return e, nil
}

// CategoryForm is the raw input of the category manager.
type CategoryForm struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

func (f CategoryForm) Build(owner, id string) (Category, error) {
	c := Category{ID: id, Owner: owner, Name: strings.TrimSpace(f.Name), Kind: f.Kind}
	if c.Name == "" {
		return Category{}, ErrRequiredFields
	}
	if err := c.Validate(); err != nil {
		return Category{}, err
	}
	return c, nil
}

// VehicleForm is the raw input of the vehicle manager.
type VehicleForm struct {
	Name                    string    `json:"name"`
	Plate                   string    `json:"plate"`
	Ownership               Ownership `json:"ownership"`
	InitialOdometerInput    string    `json:"initial_odometer"`
	ContractValueInput      string    `json:"contract_value"`
	ContractStartInput      string    `json:"contract_start_date"`
	ContractEndInput        string    `json:"contract_end_date"`
	ContractInitialKmInput  string    `json:"contract_initial_km"`
	ProfitGoalInput         string    `json:"profit_goal"`
	MaintenanceReserveInput string    `json:"maintenance_reserve"`
}

// Build validates the form and produces a normalized vehicle.
func (f VehicleForm) Build(owner, id string) (Vehicle, error) {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Plate) == "" || strings.TrimSpace(f.InitialOdometerInput) == "" {
		return Vehicle{}, ErrRequiredFields
	}
	ownership := f.Ownership
	if ownership == "" {
		ownership = Owned
	}
	initial, err := ParseOdometer(f.InitialOdometerInput)
	if err != nil {
		return Vehicle{}, err
	}
	goal, err := ParseCurrencyInput(f.ProfitGoalInput)
	if err != nil {
		return Vehicle{}, err
	}
	v := Vehicle{
		ID:              id,
		Owner:           owner,
		Name:            strings.TrimSpace(f.Name),
		Plate:           strings.ToUpper(strings.TrimSpace(f.Plate)),
		Ownership:       ownership,
		InitialOdometer: initial,
		ProfitGoal:      MoneyPtr(goal),
	}
	if err := v.Validate(); err != nil {
		return Vehicle{}, err
	}
	if ownership == Rented {
		contract, err := RenewalForm{
			ContractValueInput: f.ContractValueInput,
			StartInput:         f.ContractStartInput,
			EndInput:           f.ContractEndInput,
			InitialKmInput:     f.ContractInitialKmInput,
			ProfitGoalInput:    f.ProfitGoalInput,
		}.Build()
		if err != nil {
			return Vehicle{}, err
		}
		v = contract.Apply(v)
	} else {
		reserve, err := ParseCurrencyInput(f.MaintenanceReserveInput)
		if err != nil {
			return Vehicle{}, err
		}
		v.MaintenanceReserve = MoneyPtr(reserve)
	}
	return v.Normalize(), nil
}

// RenewalForm is the raw input of a contract renewal.
type RenewalForm struct {
	ContractValueInput string `json:"contract_value"`
	StartInput         string `json:"contract_start_date"`
	EndInput           string `json:"contract_end_date"`
	InitialKmInput     string `json:"contract_initial_km"`
	ProfitGoalInput    string `json:"profit_goal"`
}

// Build parses the renewal. Empty dates and km stay absent.
func (f RenewalForm) Build() (Renewal, error) {
	value, err := ParseCurrencyInput(f.ContractValueInput)
	if err != nil {
		return Renewal{}, err
	}
	goal, err := ParseCurrencyInput(f.ProfitGoalInput)
	if err != nil {
		return Renewal{}, err
	}
	r := Renewal{
		ContractValue: Money{Cents: value},
		ProfitGoal:    Money{Cents: goal},
	}
	if r.StartDate, err = optionalDate(f.StartInput); err != nil {
		return Renewal{}, err
	}
	if r.EndDate, err = optionalDate(f.EndInput); err != nil {
		return Renewal{}, err
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return Renewal{}, &ValidationError{Field: "contract_end_date", Message: "O fim do contrato deve ser posterior ao início."}
	}
	if strings.TrimSpace(f.InitialKmInput) != "" {
		km, err := ParseOdometer(f.InitialKmInput)
		if err != nil {
			return Renewal{}, err
		}
		r.InitialKm = &km
	}
	return r, nil
}

func optionalDate(s string) (*Date, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &d, nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
