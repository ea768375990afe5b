package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"atlas/internal/auth"
	"atlas/internal/backend"
	"atlas/internal/services"
	"atlas/internal/storage"
)

func backendConfig() backend.Config {
	return backend.Config{
		Type:         backend.BackendType(viper.GetString("data_backend")),
		SQLiteDBPath: viper.GetString("sqlite_db_path"),
		DatabaseURL:  viper.GetString("database_url"),
		MaxOpenConns: 2,
	}
}

// migrationTarget returns the driver and DSN golang-migrate should use.
func migrationTarget() (string, string, error) {
	cfg := backendConfig()
	switch cfg.Type {
	case backend.SQLiteBackend:
		if cfg.SQLiteDBPath == "" {
			return "", "", errors.New("--sqlite-path is required")
		}
		return storage.DriverSQLite, storage.SQLiteDSN(cfg.SQLiteDBPath), nil
	case backend.PostgresBackend:
		if cfg.DatabaseURL == "" {
			return "", "", errors.New("--database-url is required")
		}
		return storage.DriverPostgres, cfg.DatabaseURL, nil
	default:
		return "", "", fmt.Errorf("backend %q has no migrations", cfg.Type)
	}
}

// openRepository opens the configured repository. The caller must run the
// returned cleanup.
func openRepository(ctx context.Context) (storage.Repository, func(), error) {
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig())
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := result.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", "error", err)
		}
	}
	return result.Backend.Repository, cleanup, nil
}

// ownerID resolves an account email to the user id ledger data is keyed by.
func ownerID(ctx context.Context, repo storage.Repository, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("--email is required")
	}
	u, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("no account for %s", email)
		}
		return "", err
	}
	return u.ID, nil
}

func newFinance(repo storage.Repository) *services.FinanceService {
	return services.NewFinanceService(repo, services.WithLogger(logger))
}

func newAuth(repo storage.Repository) (*auth.Service, error) {
	return auth.NewService(repo, viper.GetString("jwt_secret"))
}
