package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AllVehicles is the vehicle filter value that disables filtering.
const AllVehicles = "all"

// TrendMonths is the number of trailing calendar months in a trend.
const TrendMonths = 6

var monthAbbrevPT = [12]string{"JAN", "FEV", "MAR", "ABR", "MAI", "JUN", "JUL", "AGO", "SET", "OUT", "NOV", "DEZ"}

// MonthStats is the dashboard summary for one calendar month.
type MonthStats struct {
	Year           int   `json:"year"`
	Month          int   `json:"month"`
	IncomeMonth    Money `json:"income_month"`
	ExpenseMonth   Money `json:"expense_month"`
	NetMonth       Money `json:"net_month"`
	RunningBalance Money `json:"running_balance"`
}

// CategoryTotal is an amount aggregated by category.
type CategoryTotal struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	Total      Money  `json:"total"`
}

// TrendBucket holds the totals of one month in a trend.
type TrendBucket struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Label   string `json:"label"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
}

// ReportFilter selects the entries of a period report. An empty VehicleID or
// AllVehicles includes every entry. Now anchors the trend.
type ReportFilter struct {
	Start     Date
	End       Date
	VehicleID string
	Now       time.Time
}

// Report is the result of PeriodReport.
type Report struct {
	Filter            ReportFilter    `json:"-"`
	Income            Money           `json:"income"`
	Expense           Money           `json:"expense"`
	Net               Money           `json:"net"`
	IncomeByCategory  []CategoryTotal `json:"income_by_category"`
	ExpenseByCategory []CategoryTotal `json:"expense_by_category"`
	Trend             []TrendBucket   `json:"trend"`
}

// MonthRange returns the first and last day of a calendar month.
func MonthRange(year, month int) (Date, Date) {
	start := NewDate(year, month, 1)
	end := Date{Time: start.AddDate(0, 1, -1)}
	return start, end
}

// ParseMonth parses "YYYY-MM" into a month range.
func ParseMonth(s string) (Date, Date, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Date{}, Date{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	start, end := MonthRange(t.Year(), int(t.Month()))
	return start, end, nil
}

// MonthlyStats computes the dashboard figures for the month containing ref.
// RunningBalance covers every entry regardless of date.
func MonthlyStats(entries []Entry, ref Date) MonthStats {
	start, end := MonthRange(ref.Year(), int(ref.Month()))
	stats := MonthStats{Year: start.Year(), Month: int(start.Month())}
	for _, e := range entries {
		amount := nonNegative(e.Amount.Cents)
		stats.RunningBalance.Cents += e.SignedAmount()
		if !e.Date.InRange(start, end) {
			continue
		}
		switch e.Kind {
		case KindIncome:
			stats.IncomeMonth.Cents += amount
		case KindExpense:
			stats.ExpenseMonth.Cents += amount
		}
	}
	stats.NetMonth.Cents = stats.IncomeMonth.Cents - stats.ExpenseMonth.Cents
	return stats
}

func (f ReportFilter) matchesVehicle(e Entry) bool {
	if f.VehicleID == "" || f.VehicleID == AllVehicles {
		return true
	}
	return e.BelongsTo(f.VehicleID)
}

func (f ReportFilter) matches(e Entry) bool {
	return e.Date.InRange(f.Start, f.End) && f.matchesVehicle(e)
}

// FilterEntries returns the entries selected by the report filter, in input order.
func FilterEntries(entries []Entry, f ReportFilter) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// PeriodReport aggregates entries within the filter's date range and vehicle.
// Category groups are sorted by total, descending; ties keep the order in
// which each category first appeared. Entries without a joined category
// count toward the totals but are not grouped.
func PeriodReport(entries []Entry, f ReportFilter) Report {
	r := Report{Filter: f}
	groups := make([]CategoryTotal, 0)
	index := make(map[string]int)

	for _, e := range entries {
		if !f.matches(e) {
			continue
		}
		amount := nonNegative(e.Amount.Cents)
		switch e.Kind {
		case KindIncome:
			r.Income.Cents += amount
		case KindExpense:
			r.Expense.Cents += amount
		}
		if e.Category == nil {
			continue
		}
		i, ok := index[e.CategoryID]
		if !ok {
			i = len(groups)
			index[e.CategoryID] = i
			groups = append(groups, CategoryTotal{CategoryID: e.CategoryID, Name: e.Category.Name, Kind: e.Kind})
		}
		groups[i].Total.Cents += amount
	}
	r.Net.Cents = r.Income.Cents - r.Expense.Cents

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Total.Cents > groups[j].Total.Cents
	})
	r.IncomeByCategory = make([]CategoryTotal, 0)
	r.ExpenseByCategory = make([]CategoryTotal, 0)
	for _, g := range groups {
		if g.Kind == KindIncome {
			r.IncomeByCategory = append(r.IncomeByCategory, g)
		} else {
			r.ExpenseByCategory = append(r.ExpenseByCategory, g)
		}
	}

	now := f.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	r.Trend = SixMonthTrend(entries, f.VehicleID, now)
	return r
}

// SixMonthTrend buckets income and expense over the six calendar months
// ending with the month of now, oldest first. Only the vehicle filter applies.
func SixMonthTrend(entries []Entry, vehicleID string, now time.Time) []TrendBucket {
	f := ReportFilter{VehicleID: vehicleID}
	anchor := NewDate(now.Year(), int(now.Month()), 1)

	buckets := make([]TrendBucket, TrendMonths)
	for i := range buckets {
		m := anchor.AddDate(0, i-(TrendMonths-1), 0)
		buckets[i] = TrendBucket{
			Year:  m.Year(),
			Month: int(m.Month()),
			Label: TrendLabel(m.Year(), int(m.Month())),
		}
	}

	for _, e := range entries {
		if !f.matchesVehicle(e) {
			continue
		}
		for i := range buckets {
			if e.Date.Year() != buckets[i].Year || int(e.Date.Month()) != buckets[i].Month {
				continue
			}
			amount := nonNegative(e.Amount.Cents)
			if e.Kind == KindIncome {
				buckets[i].Income.Cents += amount
			} else if e.Kind == KindExpense {
				buckets[i].Expense.Cents += amount
			}
			break
		}
	}
	return buckets
}

// TrendLabel formats a month as upper-case pt-BR "MMM/yy", e.g. "MAI/24".
func TrendLabel(year, month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return fmt.Sprintf("%s/%02d", monthAbbrevPT[month-1], year%100)
}

// SortEntries orders entries by date descending, then creation time descending.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Page returns at most limit entries starting at offset.
func Page(entries []Entry, offset, limit int) []Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []Entry{}
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return entries[offset:end]
}
