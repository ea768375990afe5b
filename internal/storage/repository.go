package storage

import (
	"context"
	"time"

	"atlas/internal/core"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// User is an account that owns categories, entries and vehicles.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Session is a signed-in browser or client. Its ID is carried as the jti of
// the session token.
type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// PasswordReset is a single-use token for the password recovery flow.
type PasswordReset struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

type CategoryStore interface {
	ListCategories(ctx context.Context, owner string) ([]core.Category, error)
	GetCategory(ctx context.Context, owner, id string) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) error
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, owner, id string) error
}

// EntryStore persists entries. Listed and fetched entries carry their joined
// category and vehicle when those still exist.
type EntryStore interface {
	ListEntries(ctx context.Context, owner string) ([]core.Entry, error)
	GetEntry(ctx context.Context, owner, id string) (core.Entry, error)
	CreateEntry(ctx context.Context, e core.Entry) error
	UpdateEntry(ctx context.Context, e core.Entry) error
	DeleteEntry(ctx context.Context, owner, id string) error
}

// VehicleStore persists vehicles. DeleteVehicle detaches the vehicle's
// entries before removing it.
type VehicleStore interface {
	ListVehicles(ctx context.Context, owner string) ([]core.Vehicle, error)
	GetVehicle(ctx context.Context, owner, id string) (core.Vehicle, error)
	CreateVehicle(ctx context.Context, v core.Vehicle) error
	UpdateVehicle(ctx context.Context, v core.Vehicle) error
	DeleteVehicle(ctx context.Context, owner, id string) error
}

// MirrorStore tracks which entries were copied to the spreadsheet mirror.
// Updating an entry makes it pending again.
type MirrorStore interface {
	ListUnmirrored(ctx context.Context, limit int) ([]core.Entry, error)
	MarkMirrored(ctx context.Context, id string, at time.Time) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) error

	CreatePasswordReset(ctx context.Context, r PasswordReset) error
	// ConsumePasswordReset returns and deletes the reset. Missing tokens
	// yield ErrNotFound; expiry is checked by the caller.
	ConsumePasswordReset(ctx context.Context, token string) (PasswordReset, error)
}

// Repository is the full persistence port used by the services.
type Repository interface {
	CategoryStore
	EntryStore
	VehicleStore
	MirrorStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
