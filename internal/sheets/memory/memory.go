package memory

import (
	"context"
	"fmt"
	"sync"

	ports "atlas/internal/sheets"
)

// Store keeps audit rows in memory. Used when no spreadsheet is configured
// and in tests.
type Store struct {
	mu   sync.Mutex
	rows []ports.AuditRow
	fail error
}

var (
	_ ports.RowAppender = (*Store)(nil)
	_ ports.RowLister   = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, row ports.AuditRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// ListRows returns the rows whose timestamp falls in year.
func (s *Store) ListRows(_ context.Context, year int) ([]ports.AuditRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.AuditRow, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Timestamp.UTC().Year() == year {
			out = append(out, r)
		}
	}
	return out, nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []ports.AuditRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.AuditRow(nil), s.rows...)
}

// FailWith makes subsequent appends return err; nil restores normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}
