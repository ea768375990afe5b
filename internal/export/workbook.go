package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"atlas/internal/core"
)

const (
	SheetSummary = "Resumo"
	SheetEntries = "Lançamentos"
	SheetTrend   = "Tendência"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// amountFormat is the built-in "#,##0.00" number format.
const amountFormat = 4

// ReportWorkbook lays out a period report and the entries it covers.
func ReportWorkbook(report core.Report, entries []core.Entry) (*excelize.File, error) {
	f := excelize.NewFile()
	w := &writer{f: f}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{SheetEntries, SheetTrend} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: amountFormat})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create amount style: %w", err)
	}
	w.amountStyle = style

	w.summary(report)
	w.entries(entries)
	w.trend(report.Trend)
	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteReport builds the workbook and streams it to out.
func WriteReport(out io.Writer, report core.Report, entries []core.Entry) error {
	f, err := ReportWorkbook(report, entries)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// writer remembers the first error so the layout code reads top to bottom.
type writer struct {
	f           *excelize.File
	amountStyle int
	err         error
}

func (w *writer) row(sheet string, n int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err == nil {
		err = w.f.SetSheetRow(sheet, cell, &values)
	}
	if err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", sheet, n, err)
	}
}

func (w *writer) amountColumn(sheet, col string, from, to int) {
	if w.err != nil || to < from {
		return
	}
	if err := w.f.SetCellStyle(sheet, fmt.Sprintf("%s%d", col, from), fmt.Sprintf("%s%d", col, to), w.amountStyle); err != nil {
		w.err = fmt.Errorf("style %s!%s: %w", sheet, col, err)
	}
}

func (w *writer) widths(sheet string, widths map[string]float64) {
	for col, width := range widths {
		if w.err != nil {
			return
		}
		if err := w.f.SetColWidth(sheet, col, col, width); err != nil {
			w.err = fmt.Errorf("set width %s!%s: %w", sheet, col, err)
		}
	}
}

func reais(m core.Money) float64 {
	return m.Reais().InexactFloat64()
}

func (w *writer) summary(r core.Report) {
	s := SheetSummary
	vehicle := r.Filter.VehicleID
	if vehicle == "" {
		vehicle = core.AllVehicles
	}
	w.row(s, 1, "Período", r.Filter.Start.String(), r.Filter.End.String())
	w.row(s, 2, "Veículo", vehicle)
	w.row(s, 4, "Receitas", reais(r.Income))
	w.row(s, 5, "Despesas", reais(r.Expense))
	w.row(s, 6, "Saldo", reais(r.Net))
	w.amountColumn(s, "B", 4, 6)

	n := 8
	for _, group := range []struct {
		title  string
		totals []core.CategoryTotal
	}{
		{"Receitas por categoria", r.IncomeByCategory},
		{"Despesas por categoria", r.ExpenseByCategory},
	} {
		w.row(s, n, group.title, "Total")
		n++
		first := n
		for _, t := range group.totals {
			w.row(s, n, t.Name, reais(t.Total))
			n++
		}
		w.amountColumn(s, "B", first, n-1)
		n++
	}
	w.widths(s, map[string]float64{"A": 28, "B": 14, "C": 14})
}

func (w *writer) entries(entries []core.Entry) {
	s := SheetEntries
	w.row(s, 1, "Data", "Tipo", "Categoria", "Valor", "Veículo", "Hodômetro", "Litros", "Observação")
	for i, e := range entries {
		category, vehicle := "", ""
		if e.Category != nil {
			category = e.Category.Name
		}
		if e.Vehicle != nil {
			vehicle = e.Vehicle.Name
		}
		var odometer, liters any
		if e.Odometer != nil {
			odometer = *e.Odometer
		}
		if e.FuelLiters.Valid {
			liters = e.FuelLiters.Decimal.StringFixed(3)
		}
		w.row(s, i+2, e.Date.String(), kindLabel(e.Kind), category, reais(e.Amount), vehicle, odometer, liters, e.Note)
	}
	w.amountColumn(s, "D", 2, len(entries)+1)
	w.widths(s, map[string]float64{"A": 12, "B": 10, "C": 20, "D": 14, "E": 16, "F": 12, "G": 10, "H": 30})
}

func (w *writer) trend(buckets []core.TrendBucket) {
	s := SheetTrend
	w.row(s, 1, "Mês", "Receitas", "Despesas")
	for i, b := range buckets {
		w.row(s, i+2, b.Label, reais(b.Income), reais(b.Expense))
	}
	w.amountColumn(s, "B", 2, len(buckets)+1)
	w.amountColumn(s, "C", 2, len(buckets)+1)
}

func kindLabel(k core.Kind) string {
	if k == core.KindIncome {
		return "Receita"
	}
	return "Despesa"
}
