package backend

import (
	"context"

	"atlas/internal/amqp"
	ports "atlas/internal/sheets"
	gsheet "atlas/internal/sheets/google"
	"atlas/internal/storage"
)

// Backend bundles the stores and outbound channels a process needs.
type Backend struct {
	Repository storage.Repository
	// Changes is nil when no broker is configured or it was unreachable.
	Changes *amqp.Client
	// Mirror is nil unless CreateMirror was requested.
	Mirror ports.RowAppender
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and its cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the repository and, when configured, the broker.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateMirror returns the spreadsheet appender used by the worker.
	CreateMirror(ctx context.Context, config Config) (ports.RowAppender, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQL specific
	SQLiteDBPath   string
	DatabaseURL    string
	MaxOpenConns   int
	SkipMigrations bool

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sheets mirror, optional
	Sheets gsheet.Config
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MemoryBackend}
}
