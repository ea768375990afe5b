package sheets

import (
	"context"
	"time"
)

// AuditColumns are the header cells of the audit sheet, in row order.
var AuditColumns = []string{"Timestamp", "Owner", "Resource", "Action", "ID", "Date", "Kind", "Category", "Amount", "Note"}

// AuditRow is one line of the change log mirrored to a spreadsheet. Record
// fields are empty for tombstones and for resources without them.
type AuditRow struct {
	Timestamp time.Time
	Owner     string
	Resource  string
	Action    string
	ID        string
	Date      string
	Kind      string
	Category  string
	Amount    string
	Note      string
}

// Values returns the row as spreadsheet cells, in AuditColumns order.
func (r AuditRow) Values() []any {
	return []any{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Owner,
		r.Resource,
		r.Action,
		r.ID,
		r.Date,
		r.Kind,
		r.Category,
		r.Amount,
		r.Note,
	}
}

// Ports for outbound adapters.
type (
	RowAppender interface {
		AppendRow(ctx context.Context, row AuditRow) (rowRef string, err error)
	}

	// RowLister reads back the audit rows written in a given year.
	RowLister interface {
		ListRows(ctx context.Context, year int) ([]AuditRow, error)
	}
)
