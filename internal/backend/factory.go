package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atlas/internal/amqp"
	applog "atlas/internal/log"
	ports "atlas/internal/sheets"
	gsheet "atlas/internal/sheets/google"
	"atlas/internal/sheets/memory"
	"atlas/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, closeRepo, err := f.openRepository(ctx, config)
	if err != nil {
		return nil, err
	}

	// Initialize AMQP client (optional)
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Backend: Backend{Repository: repo, Changes: amqpClient},
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, closeRepo())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) openRepository(ctx context.Context, config Config) (storage.Repository, func() error, error) {
	switch config.Type {
	case MemoryBackend:
		f.logger.Warn("Using in-memory repository, data is lost on restart")
		repo := storage.NewMemoryRepository()
		return repo, repo.Close, nil
	case SQLiteBackend:
		repo, err := storage.Open(ctx, storage.DriverSQLite, storage.SQLiteDSN(config.SQLiteDBPath), storage.Options{
			MaxOpenConns:   1,
			SkipMigrations: config.SkipMigrations,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite database", "db_path", config.SQLiteDBPath)
		return repo, repo.Close, nil
	case PostgresBackend:
		repo, err := storage.Open(ctx, storage.DriverPostgres, config.DatabaseURL, storage.Options{
			MaxOpenConns:    config.MaxOpenConns,
			MaxIdleConns:    config.MaxOpenConns,
			ConnMaxIdleTime: 5 * time.Minute,
			SkipMigrations:  config.SkipMigrations,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Opened Postgres database", "max_open_conns", config.MaxOpenConns)
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateMirror implements Factory.CreateMirror. Without a spreadsheet the
// rows are kept in memory so the worker pipeline still runs.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (ports.RowAppender, error) {
	if config.Sheets.SpreadsheetID == "" {
		f.logger.Warn("No spreadsheet configured, mirroring to memory")
		return memory.New(), nil
	}
	cli, err := gsheet.New(ctx, config.Sheets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets mirror", "spreadsheet_id", config.Sheets.SpreadsheetID)
	return cli, nil
}
