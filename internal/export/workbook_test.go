package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"atlas/internal/core"
)

func sampleReport() (core.Report, []core.Entry) {
	start, end := core.MonthRange(2024, 5)
	odo := int64(1200)
	fuel := &core.Category{ID: "fuel", Name: "Combustível", Kind: core.KindExpense}
	rides := &core.Category{ID: "rides", Name: "Corridas", Kind: core.KindIncome}
	car := &core.Vehicle{ID: "car", Name: "Onix"}
	entries := []core.Entry{
		{
			Kind: core.KindExpense, CategoryID: "fuel", Category: fuel, Vehicle: car,
			Amount: core.Money{Cents: 20000}, Date: core.NewDate(2024, 5, 2), Odometer: &odo,
			FuelLiters: decimal.NewNullDecimal(decimal.RequireFromString("33.904")), Note: "posto",
		},
		{Kind: core.KindIncome, CategoryID: "rides", Category: rides, Amount: core.Money{Cents: 123456}, Date: core.NewDate(2024, 5, 3)},
	}
	report := core.PeriodReport(entries, core.ReportFilter{
		Start: start, End: end, VehicleID: core.AllVehicles,
		Now: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
	})
	return report, entries
}

func TestReportWorkbook(t *testing.T) {
	report, entries := sampleReport()

	var buf bytes.Buffer
	if err := WriteReport(&buf, report, entries); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{SheetSummary, SheetEntries, SheetTrend}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v", sheets)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, sheets[i], want[i])
		}
	}

	if v, _ := f.GetCellValue(SheetSummary, "B1"); v != "2024-05-01" {
		t.Errorf("period start = %q", v)
	}
	if v, _ := f.GetCellValue(SheetSummary, "A6"); v != "Saldo" {
		t.Errorf("A6 = %q", v)
	}
	if v, _ := f.GetCellValue(SheetSummary, "B6"); v != "1,034.56" {
		t.Errorf("net = %q, want formatted 1,034.56", v)
	}

	rows, err := f.GetRows(SheetEntries)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 entries, got %d rows", len(rows))
	}
	first := rows[1]
	if first[0] != "2024-05-02" || first[1] != "Despesa" || first[2] != "Combustível" || first[4] != "Onix" || first[6] != "33.904" {
		t.Errorf("unexpected entry row %v", first)
	}

	trend, _ := f.GetRows(SheetTrend)
	if len(trend) != core.TrendMonths+1 || trend[core.TrendMonths][0] != "MAI/24" {
		t.Errorf("unexpected trend rows %v", trend)
	}
}

func TestReportWorkbookEmpty(t *testing.T) {
	start, end := core.MonthRange(2024, 1)
	report := core.PeriodReport(nil, core.ReportFilter{Start: start, End: end, Now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})

	f, err := ReportWorkbook(report, nil)
	if err != nil {
		t.Fatalf("ReportWorkbook: %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(SheetEntries)
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d", len(rows))
	}
	if v, _ := f.GetCellValue(SheetSummary, "B2"); v != core.AllVehicles {
		t.Errorf("vehicle = %q", v)
	}
}
