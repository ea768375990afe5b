// This file implements utilities for parsing request bodies and query
// strings into the core form types.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"atlas/internal/core"
	"atlas/internal/services"
)

const (
	// DefaultPageSize is the entries page size when limit is absent.
	DefaultPageSize = 20
	// MaxPageSize caps limit.
	MaxPageSize = 200

	maxBodyBytes = 1 << 20
)

// PageParams holds offset/limit pagination values.
type PageParams struct {
	Offset int
	Limit  int
}

// ParsePageParams reads offset and limit, falling back to the first page of
// DefaultPageSize. Invalid values are ignored.
func ParsePageParams(query url.Values) PageParams {
	p := PageParams{Offset: 0, Limit: DefaultPageSize}
	if v := strings.TrimSpace(query.Get("offset")); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			p.Offset = o
		}
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			p.Limit = min(l, MaxPageSize)
		}
	}
	return p
}

// ParseReportQuery extracts the report selection from the query string.
func ParseReportQuery(query url.Values) services.ReportQuery {
	return services.ReportQuery{
		Mode:    strings.TrimSpace(query.Get("mode")),
		Month:   strings.TrimSpace(query.Get("month")),
		Start:   strings.TrimSpace(query.Get("start")),
		End:     strings.TrimSpace(query.Get("end")),
		Vehicle: strings.TrimSpace(query.Get("vehicle")),
	}
}

// ParseDateParam parses an optional YYYY-MM-DD query value. Empty yields the
// zero date.
func ParseDateParam(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(v)
}

// RequestBodyParser reads JSON objects and form-encoded bodies alike, so
// both fetch clients and plain htmx forms can post.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to 1 MiB.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a trimmed string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Bool reads a checkbox-like value: true, on, 1 or yes.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters except tab, newline and carriage
// return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// parseKind accepts an empty kind so form validation reports the missing
// field in its own order.
func parseKind(s string) (core.Kind, error) {
	if s == "" {
		return "", nil
	}
	return core.ParseKind(s)
}

func parseOwnership(s string) (core.Ownership, error) {
	if s == "" {
		return "", nil
	}
	return core.ParseOwnership(s)
}

// EntryFormFromBody maps the body onto the entry form.
func EntryFormFromBody(p *RequestBodyParser) (core.EntryForm, error) {
	kind, err := parseKind(p.Get("kind"))
	if err != nil {
		return core.EntryForm{}, err
	}
	return core.EntryForm{
		Kind:           kind,
		CategoryID:     p.Get("category_id"),
		AmountInput:    p.Get("amount"),
		DateInput:      p.Get("date"),
		Note:           p.Get("note"),
		VehicleLinked:  p.Bool("vehicle_linked") || p.Get("vehicle_id") != "",
		VehicleID:      p.Get("vehicle_id"),
		OdometerInput:  p.Get("odometer"),
		FuelPriceInput: p.Get("fuel_price_per_liter"),
	}, nil
}

// CategoryFormFromBody maps the body onto the category form.
func CategoryFormFromBody(p *RequestBodyParser) (core.CategoryForm, error) {
	kind, err := parseKind(p.Get("kind"))
	if err != nil {
		return core.CategoryForm{}, err
	}
	return core.CategoryForm{Name: p.Get("name"), Kind: kind}, nil
}

// VehicleFormFromBody maps the body onto the vehicle form.
func VehicleFormFromBody(p *RequestBodyParser) (core.VehicleForm, error) {
	ownership, err := parseOwnership(p.Get("ownership"))
	if err != nil {
		return core.VehicleForm{}, err
	}
	return core.VehicleForm{
		Name:                    p.Get("name"),
		Plate:                   p.Get("plate"),
		Ownership:               ownership,
		InitialOdometerInput:    p.Get("initial_odometer"),
		ContractValueInput:      p.Get("contract_value"),
		ContractStartInput:      p.Get("contract_start_date"),
		ContractEndInput:        p.Get("contract_end_date"),
		ContractInitialKmInput:  p.Get("contract_initial_km"),
		ProfitGoalInput:         p.Get("profit_goal"),
		MaintenanceReserveInput: p.Get("maintenance_reserve"),
	}, nil
}

// RenewalFormFromBody maps the body onto the renewal form.
func RenewalFormFromBody(p *RequestBodyParser) core.RenewalForm {
	return core.RenewalForm{
		ContractValueInput: p.Get("contract_value"),
		StartInput:         p.Get("contract_start_date"),
		EndInput:           p.Get("contract_end_date"),
		InitialKmInput:     p.Get("contract_initial_km"),
		ProfitGoalInput:    p.Get("profit_goal"),
	}
}
