package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"atlas/internal/core"
)

const (
	categoryColumns = `id, user_id, name, kind, created_at`
	vehicleColumns  = `id, user_id, name, plate, ownership, initial_odometer, contract_value,
		contract_start_date, contract_end_date, contract_initial_km, profit_goal,
		maintenance_reserve, created_at`
	entryColumns = `id, user_id, kind, category_id, amount_cents, date, note, vehicle_id,
		odometer, fuel_liters, fuel_price_per_liter, created_at`
)

// Options configures the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	SkipMigrations  bool
}

// SQLRepository implements Repository on SQLite or Postgres. Queries are
// written with ? placeholders and rebound for the active driver.
type SQLRepository struct {
	db     *sqlx.DB
	driver string
}

// SQLiteDSN turns a file path into a DSN with foreign keys enforced.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// OpenSQLite creates the database directory when needed and opens a
// migrated SQLite repository.
func OpenSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	return Open(ctx, DriverSQLite, SQLiteDSN(path), Options{MaxOpenConns: 1})
}

// Open connects, pings and migrates the database.
func Open(ctx context.Context, driverName, dsn string, opts Options) (*SQLRepository, error) {
	if driverName != DriverSQLite && driverName != DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q", driverName)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if !opts.SkipMigrations {
		if err := RunMigrations(driverName, dsn); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SQLRepository{db: db, driver: driverName}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// DB exposes the pool for tooling such as the admin CLI.
func (r *SQLRepository) DB() *sqlx.DB {
	return r.db
}

func (r *SQLRepository) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return mapError(r.db.SelectContext(ctx, dest, r.db.Rebind(query), args...))
}

func (r *SQLRepository) getOne(ctx context.Context, dest any, query string, args ...any) error {
	return mapError(r.db.GetContext(ctx, dest, r.db.Rebind(query), args...))
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// execOne runs a statement that must touch exactly one row.
func (r *SQLRepository) execOne(ctx context.Context, query string, args ...any) error {
	n, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) namedExec(ctx context.Context, query string, arg any) error {
	_, err := r.db.NamedExecContext(ctx, query, arg)
	return mapError(err)
}

// Categories

func (r *SQLRepository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	out := []core.Category{}
	err := r.selectAll(ctx, &out,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY name`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) GetCategory(ctx context.Context, owner, id string) (core.Category, error) {
	var c core.Category
	err := r.getOne(ctx, &c,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND id = ?`, owner, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

func (r *SQLRepository) CreateCategory(ctx context.Context, c core.Category) error {
	err := r.namedExec(ctx,
		`INSERT INTO categories (id, user_id, name, kind, created_at)
		 VALUES (:id, :user_id, :name, :kind, :created_at)`, c)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	err := r.execOne(ctx,
		`UPDATE categories SET name = ?, kind = ? WHERE user_id = ? AND id = ?`,
		c.Name, c.Kind, c.Owner, c.ID)
	if err != nil {
		return fmt.Errorf("update category %s: %w", c.ID, err)
	}
	return nil
}

func (r *SQLRepository) DeleteCategory(ctx context.Context, owner, id string) error {
	if err := r.execOne(ctx, `DELETE FROM categories WHERE user_id = ? AND id = ?`, owner, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}

// Vehicles

func (r *SQLRepository) ListVehicles(ctx context.Context, owner string) ([]core.Vehicle, error) {
	out := []core.Vehicle{}
	err := r.selectAll(ctx, &out,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE user_id = ? ORDER BY name`, owner)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) GetVehicle(ctx context.Context, owner, id string) (core.Vehicle, error) {
	var v core.Vehicle
	err := r.getOne(ctx, &v,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE user_id = ? AND id = ?`, owner, id)
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("get vehicle %s: %w", id, err)
	}
	return v, nil
}

func (r *SQLRepository) CreateVehicle(ctx context.Context, v core.Vehicle) error {
	err := r.namedExec(ctx,
		`INSERT INTO vehicles (`+vehicleColumns+`)
		 VALUES (:id, :user_id, :name, :plate, :ownership, :initial_odometer, :contract_value,
		 :contract_start_date, :contract_end_date, :contract_initial_km, :profit_goal,
		 :maintenance_reserve, :created_at)`, v)
	if err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpdateVehicle(ctx context.Context, v core.Vehicle) error {
	err := r.execOne(ctx,
		`UPDATE vehicles SET name = ?, plate = ?, ownership = ?, initial_odometer = ?,
		 contract_value = ?, contract_start_date = ?, contract_end_date = ?,
		 contract_initial_km = ?, profit_goal = ?, maintenance_reserve = ?
		 WHERE user_id = ? AND id = ?`,
		v.Name, v.Plate, v.Ownership, v.InitialOdometer,
		v.ContractValue, v.ContractStartDate, v.ContractEndDate,
		v.ContractInitialKm, v.ProfitGoal, v.MaintenanceReserve,
		v.Owner, v.ID)
	if err != nil {
		return fmt.Errorf("update vehicle %s: %w", v.ID, err)
	}
	return nil
}

// DeleteVehicle detaches the vehicle's entries and removes it in one transaction.
func (r *SQLRepository) DeleteVehicle(ctx context.Context, owner, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE entries SET vehicle_id = NULL, mirrored_at = NULL WHERE user_id = ? AND vehicle_id = ?`),
		owner, id); err != nil {
		return fmt.Errorf("detach entries from vehicle %s: %w", id, mapError(err))
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM vehicles WHERE user_id = ? AND id = ?`), owner, id)
	if err != nil {
		return fmt.Errorf("delete vehicle %s: %w", id, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete vehicle %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vehicle delete: %w", err)
	}
	return nil
}

// Entries

func (r *SQLRepository) ListEntries(ctx context.Context, owner string) ([]core.Entry, error) {
	out := []core.Entry{}
	err := r.selectAll(ctx, &out,
		`SELECT `+entryColumns+` FROM entries WHERE user_id = ? ORDER BY date DESC, created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if err := r.attach(ctx, owner, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepository) GetEntry(ctx context.Context, owner, id string) (core.Entry, error) {
	var e core.Entry
	err := r.getOne(ctx, &e,
		`SELECT `+entryColumns+` FROM entries WHERE user_id = ? AND id = ?`, owner, id)
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	one := []core.Entry{e}
	if err := r.attach(ctx, owner, one); err != nil {
		return core.Entry{}, err
	}
	return one[0], nil
}

// attach fills the joined category and vehicle of each entry. A missing
// vehicles table leaves entries without vehicles.
func (r *SQLRepository) attach(ctx context.Context, owner string, entries []core.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	categories, err := r.ListCategories(ctx, owner)
	if err != nil {
		return err
	}
	vehicles, err := r.ListVehicles(ctx, owner)
	if err != nil && !isTableMissing(err) {
		return err
	}
	JoinEntries(entries, categories, vehicles)
	return nil
}

func (r *SQLRepository) CreateEntry(ctx context.Context, e core.Entry) error {
	err := r.namedExec(ctx,
		`INSERT INTO entries (`+entryColumns+`)
		 VALUES (:id, :user_id, :kind, :category_id, :amount_cents, :date, :note, :vehicle_id,
		 :odometer, :fuel_liters, :fuel_price_per_liter, :created_at)`, e)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpdateEntry(ctx context.Context, e core.Entry) error {
	err := r.execOne(ctx,
		`UPDATE entries SET kind = ?, category_id = ?, amount_cents = ?, date = ?, note = ?,
		 vehicle_id = ?, odometer = ?, fuel_liters = ?, fuel_price_per_liter = ?, mirrored_at = NULL
		 WHERE user_id = ? AND id = ?`,
		e.Kind, e.CategoryID, e.Amount, e.Date, e.Note,
		e.VehicleID, e.Odometer, e.FuelLiters, e.FuelPricePerLiter,
		e.Owner, e.ID)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	return nil
}

func (r *SQLRepository) DeleteEntry(ctx context.Context, owner, id string) error {
	if err := r.execOne(ctx, `DELETE FROM entries WHERE user_id = ? AND id = ?`, owner, id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// Mirror

func (r *SQLRepository) ListUnmirrored(ctx context.Context, limit int) ([]core.Entry, error) {
	out := []core.Entry{}
	err := r.selectAll(ctx, &out,
		`SELECT `+entryColumns+` FROM entries WHERE mirrored_at IS NULL ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unmirrored entries: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) MarkMirrored(ctx context.Context, id string, at time.Time) error {
	if err := r.execOne(ctx, `UPDATE entries SET mirrored_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("mark entry %s mirrored: %w", id, err)
	}
	return nil
}

// Users, sessions and password resets

func (r *SQLRepository) CreateUser(ctx context.Context, u User) error {
	err := r.namedExec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at)
		 VALUES (:id, :email, :password_hash, :created_at)`, u)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	if err := r.getOne(ctx, &u, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id); err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.getOne(ctx, &u,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, strings.ToLower(email))
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	if err := r.execOne(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (r *SQLRepository) CreateSession(ctx context.Context, s Session) error {
	err := r.namedExec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at)
		 VALUES (:id, :user_id, :expires_at, :created_at)`, s)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	if err := r.getOne(ctx, &s, `SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?`, id); err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SQLRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteUserSessions(ctx context.Context, userID string) error {
	if _, err := r.exec(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func (r *SQLRepository) CreatePasswordReset(ctx context.Context, pr PasswordReset) error {
	err := r.namedExec(ctx,
		`INSERT INTO password_resets (token, user_id, expires_at, created_at)
		 VALUES (:token, :user_id, :expires_at, :created_at)`, pr)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (r *SQLRepository) ConsumePasswordReset(ctx context.Context, token string) (PasswordReset, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return PasswordReset{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pr PasswordReset
	err = tx.GetContext(ctx, &pr,
		tx.Rebind(`SELECT token, user_id, expires_at, created_at FROM password_resets WHERE token = ?`), token)
	if err != nil {
		return PasswordReset{}, fmt.Errorf("get password reset: %w", mapError(err))
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM password_resets WHERE token = ?`), token); err != nil {
		return PasswordReset{}, fmt.Errorf("delete password reset: %w", mapError(err))
	}
	if err := tx.Commit(); err != nil {
		return PasswordReset{}, fmt.Errorf("commit password reset: %w", err)
	}
	return pr, nil
}

func isTableMissing(err error) bool {
	return errors.Is(err, ErrTableMissing)
}

var _ Repository = (*SQLRepository)(nil)
