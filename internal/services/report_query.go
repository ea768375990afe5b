package services

import (
	"strings"
	"time"

	"atlas/internal/core"
)

const (
	ReportModeMonth  = "month"
	ReportModeCustom = "custom"
)

var (
	ErrInvalidReportMode  = &core.ValidationError{Field: "mode", Message: "Modo de relatório inválido."}
	ErrInvalidReportMonth = &core.ValidationError{Field: "month", Message: "Mês inválido."}
	ErrInvalidReportRange = &core.ValidationError{Field: "start", Message: "Período inválido."}
)

// ReportQuery is the raw report selection: a calendar month or a custom
// range, optionally narrowed to one vehicle.
type ReportQuery struct {
	Mode    string `json:"mode"`
	Month   string `json:"month"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Vehicle string `json:"vehicle"`
}

// Filter resolves the query against now. An empty mode means month and an
// empty month means the current one.
func (q ReportQuery) Filter(now time.Time) (core.ReportFilter, error) {
	now = now.UTC()
	f := core.ReportFilter{VehicleID: strings.TrimSpace(q.Vehicle), Now: now}
	if f.VehicleID == "" {
		f.VehicleID = core.AllVehicles
	}

	switch strings.TrimSpace(q.Mode) {
	case "", ReportModeMonth:
		month := strings.TrimSpace(q.Month)
		if month == "" {
			f.Start, f.End = core.MonthRange(now.Year(), int(now.Month()))
			return f, nil
		}
		start, end, err := core.ParseMonth(month)
		if err != nil {
			return core.ReportFilter{}, ErrInvalidReportMonth
		}
		f.Start, f.End = start, end
	case ReportModeCustom:
		start, err := core.ParseDate(q.Start)
		if err != nil {
			return core.ReportFilter{}, ErrInvalidReportRange
		}
		end, err := core.ParseDate(q.End)
		if err != nil || end.Before(start) {
			return core.ReportFilter{}, ErrInvalidReportRange
		}
		f.Start, f.End = start, end
	default:
		return core.ReportFilter{}, ErrInvalidReportMode
	}
	return f, nil
}
