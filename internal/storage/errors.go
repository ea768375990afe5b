package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrForeignKey   = errors.New("record is still referenced")
	ErrTableMissing = errors.New("table does not exist")
	ErrConflict     = errors.New("record already exists")
)

// Postgres SQLSTATE codes mapped by mapError.
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
	pqUndefinedTable      = "42P01"
)

// mapError converts driver errors into the package sentinels. The driver
// message is kept so callers can show it verbatim.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrForeignKey, pqErr.Message)
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		case pqUndefinedTable:
			return fmt.Errorf("%w: %s", ErrTableMissing, pqErr.Message)
		}
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s", ErrForeignKey, msg)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("%w: %s", ErrTableMissing, msg)
	}
	return err
}
