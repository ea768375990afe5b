package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"atlas/internal/amqp"
	"atlas/internal/cache"
	"atlas/internal/core"
	"atlas/internal/log"
	"atlas/internal/storage"
)

var (
	ErrCategoryInUse   = errors.New("category is in use")
	ErrNotRented       = &core.ValidationError{Field: "ownership", Message: "Somente veículos alugados possuem contrato."}
	ErrUnknownCategory = &core.ValidationError{Field: "category_id", Message: "Categoria não encontrada."}
	ErrUnknownVehicle  = &core.ValidationError{Field: "vehicle_id", Message: "Veículo não encontrado."}
)

// LedgerStore is the part of the repository the finance service needs.
type LedgerStore interface {
	storage.CategoryStore
	storage.EntryStore
	storage.VehicleStore
}

// Publisher announces committed changes. Implemented by amqp.Client.
type Publisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// Snapshot is everything the dashboard, managers and reports read: the
// owner's categories and vehicles by name and entries newest first.
type Snapshot struct {
	Categories []core.Category `json:"categories"`
	Entries    []core.Entry    `json:"entries"`
	Vehicles   []core.Vehicle  `json:"vehicles"`
}

// ReportResult is a period report with the entries it was computed from.
type ReportResult struct {
	Report  core.Report  `json:"report"`
	Entries []core.Entry `json:"entries"`
}

// FinanceService implements the ledger operations. Every mutation drops the
// owner's cached snapshot so the next read refetches everything.
type FinanceService struct {
	store     LedgerStore
	publisher Publisher
	snapshots *cache.LRUCache[Snapshot]
	logger    *log.Logger

	// generations counts invalidations per owner. A snapshot loaded across
	// an invalidation is returned but never cached.
	genMu       sync.Mutex
	generations map[string]uint64

	now   func() time.Time
	newID func() string
}

type Option func(*FinanceService)

// WithPublisher sets the change publisher. Without one, changes are not announced.
func WithPublisher(p Publisher) Option {
	return func(s *FinanceService) { s.publisher = p }
}

// WithSnapshotCache replaces the default snapshot cache.
func WithSnapshotCache(c *cache.LRUCache[Snapshot]) Option {
	return func(s *FinanceService) { s.snapshots = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *FinanceService) { s.logger = l }
}

// WithClock overrides the time source used for timestamps and report trends.
func WithClock(now func() time.Time) Option {
	return func(s *FinanceService) { s.now = now }
}

func NewFinanceService(store LedgerStore, opts ...Option) *FinanceService {
	s := &FinanceService{
		store:       store,
		snapshots:   cache.NewLRUCache[Snapshot](256, 5*time.Minute),
		logger:      log.FromContext(context.Background()).WithComponent(log.ComponentLedger),
		generations: make(map[string]uint64),
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SnapshotCache exposes the cache so the binary can register it for cleanup.
func (s *FinanceService) SnapshotCache() *cache.LRUCache[Snapshot] {
	return s.snapshots
}

// Snapshot loads categories, entries and vehicles for owner. A missing
// vehicles table is tolerated and yields no vehicles.
func (s *FinanceService) Snapshot(ctx context.Context, owner string) (Snapshot, error) {
	if snap, ok := s.snapshots.Get(owner); ok {
		return snap, nil
	}
	gen := s.generation(owner)

	categories, err := s.store.ListCategories(ctx, owner)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load categories: %w", err)
	}
	entries, err := s.store.ListEntries(ctx, owner)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load entries: %w", err)
	}
	vehicles, err := s.store.ListVehicles(ctx, owner)
	if err != nil {
		if !errors.Is(err, storage.ErrTableMissing) {
			return Snapshot{}, fmt.Errorf("load vehicles: %w", err)
		}
		s.logger.WarnContext(ctx, "Vehicles table missing, continuing without vehicles", log.FieldError, err)
		vehicles = []core.Vehicle{}
	}
	core.SortEntries(entries)

	snap := Snapshot{Categories: categories, Entries: entries, Vehicles: vehicles}
	s.genMu.Lock()
	if s.generations[owner] == gen {
		s.snapshots.Set(owner, snap)
	}
	s.genMu.Unlock()
	return snap, nil
}

func (s *FinanceService) generation(owner string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[owner]
}

// Invalidate drops the cached snapshot of owner. Loads already in flight
// for owner will not populate the cache.
func (s *FinanceService) Invalidate(owner string) {
	s.genMu.Lock()
	s.generations[owner]++
	s.snapshots.Delete(owner)
	s.genMu.Unlock()
}

// committed runs after every successful mutation.
func (s *FinanceService) committed(ctx context.Context, owner, resource, action, id string) {
	s.Invalidate(owner)
	log.NewStructuredLogger(s.logger).LogChange(ctx, owner, resource, action, id)

	if s.publisher == nil {
		return
	}
	msg := amqp.NewChangeMessage(resource, action, id, owner)
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change message",
			log.FieldResource, resource,
			log.FieldAction, action,
			"id", id,
			log.FieldError, err)
	}
}

// Categories

func (s *FinanceService) CreateCategory(ctx context.Context, owner string, form core.CategoryForm) (core.Category, error) {
	c, err := form.Build(owner, s.newID())
	if err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = s.now().UTC()
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	s.committed(ctx, owner, amqp.ResourceCategory, amqp.ActionCreated, c.ID)
	return c, nil
}

func (s *FinanceService) UpdateCategory(ctx context.Context, owner, id string, form core.CategoryForm) (core.Category, error) {
	current, err := s.store.GetCategory(ctx, owner, id)
	if err != nil {
		return core.Category{}, err
	}
	c, err := form.Build(owner, id)
	if err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = current.CreatedAt
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	s.committed(ctx, owner, amqp.ResourceCategory, amqp.ActionUpdated, id)
	return c, nil
}

// DeleteCategory fails with ErrCategoryInUse while entries reference the
// category. The backend message is kept in the error text.
func (s *FinanceService) DeleteCategory(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteCategory(ctx, owner, id); err != nil {
		if errors.Is(err, storage.ErrForeignKey) {
			return fmt.Errorf("%w: %v", ErrCategoryInUse, err)
		}
		return err
	}
	s.committed(ctx, owner, amqp.ResourceCategory, amqp.ActionDeleted, id)
	return nil
}

// Entries

// ListEntries returns one page of entries, newest first, and the total count.
func (s *FinanceService) ListEntries(ctx context.Context, owner string, offset, limit int) ([]core.Entry, int, error) {
	snap, err := s.Snapshot(ctx, owner)
	if err != nil {
		return nil, 0, err
	}
	return core.Page(snap.Entries, offset, limit), len(snap.Entries), nil
}

// lastOdometer reads the vehicle and its entries straight from the store.
func (s *FinanceService) lastOdometer(ctx context.Context, owner string, form core.EntryForm) (int64, error) {
	if !form.VehicleLinked || form.VehicleID == "" {
		return 0, nil
	}
	v, err := s.store.GetVehicle(ctx, owner, form.VehicleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrUnknownVehicle
		}
		return 0, err
	}
	entries, err := s.store.ListEntries(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("load entries: %w", err)
	}
	return core.LastOdometer(v, entries), nil
}

func (s *FinanceService) buildEntry(ctx context.Context, owner string, form core.EntryForm) (core.Entry, error) {
	last, err := s.lastOdometer(ctx, owner, form)
	if err != nil {
		return core.Entry{}, err
	}
	if err := form.Validate(last); err != nil {
		return core.Entry{}, err
	}
	category, err := s.store.GetCategory(ctx, owner, form.CategoryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Entry{}, ErrUnknownCategory
		}
		return core.Entry{}, err
	}
	return form.Build(owner, category)
}

func (s *FinanceService) CreateEntry(ctx context.Context, owner string, form core.EntryForm) (core.Entry, error) {
	form.EditingID = ""
	e, err := s.buildEntry(ctx, owner, form)
	if err != nil {
		return core.Entry{}, err
	}
	e.ID = s.newID()
	e.CreatedAt = s.now().UTC()
	if err := s.store.CreateEntry(ctx, e); err != nil {
		return core.Entry{}, err
	}
	s.committed(ctx, owner, amqp.ResourceEntry, amqp.ActionCreated, e.ID)
	return e, nil
}

// UpdateEntry replaces an entry. The odometer monotonicity check does not
// apply when editing.
func (s *FinanceService) UpdateEntry(ctx context.Context, owner, id string, form core.EntryForm) (core.Entry, error) {
	current, err := s.store.GetEntry(ctx, owner, id)
	if err != nil {
		return core.Entry{}, err
	}
	form.EditingID = id
	e, err := s.buildEntry(ctx, owner, form)
	if err != nil {
		return core.Entry{}, err
	}
	e.CreatedAt = current.CreatedAt
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return core.Entry{}, err
	}
	s.committed(ctx, owner, amqp.ResourceEntry, amqp.ActionUpdated, id)
	return e, nil
}

func (s *FinanceService) DeleteEntry(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteEntry(ctx, owner, id); err != nil {
		return err
	}
	s.committed(ctx, owner, amqp.ResourceEntry, amqp.ActionDeleted, id)
	return nil
}

// Vehicles

func (s *FinanceService) CreateVehicle(ctx context.Context, owner string, form core.VehicleForm) (core.Vehicle, error) {
	v, err := form.Build(owner, s.newID())
	if err != nil {
		return core.Vehicle{}, err
	}
	v.CreatedAt = s.now().UTC()
	if err := s.store.CreateVehicle(ctx, v); err != nil {
		return core.Vehicle{}, err
	}
	s.committed(ctx, owner, amqp.ResourceVehicle, amqp.ActionCreated, v.ID)
	return v, nil
}

func (s *FinanceService) UpdateVehicle(ctx context.Context, owner, id string, form core.VehicleForm) (core.Vehicle, error) {
	current, err := s.store.GetVehicle(ctx, owner, id)
	if err != nil {
		return core.Vehicle{}, err
	}
	v, err := form.Build(owner, id)
	if err != nil {
		return core.Vehicle{}, err
	}
	v.CreatedAt = current.CreatedAt
	if err := s.store.UpdateVehicle(ctx, v); err != nil {
		return core.Vehicle{}, err
	}
	s.committed(ctx, owner, amqp.ResourceVehicle, amqp.ActionUpdated, id)
	return v, nil
}

// DeleteVehicle removes the vehicle and detaches its entries.
func (s *FinanceService) DeleteVehicle(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteVehicle(ctx, owner, id); err != nil {
		return err
	}
	s.committed(ctx, owner, amqp.ResourceVehicle, amqp.ActionDeleted, id)
	return nil
}

func (s *FinanceService) vehicleWithEntries(ctx context.Context, owner, id string) (core.Vehicle, []core.Entry, error) {
	snap, err := s.Snapshot(ctx, owner)
	if err != nil {
		return core.Vehicle{}, nil, err
	}
	for _, v := range snap.Vehicles {
		if v.ID == id {
			return v, snap.Entries, nil
		}
	}
	return core.Vehicle{}, nil, fmt.Errorf("vehicle %s: %w", id, storage.ErrNotFound)
}

// RenewalDefaults pre-fills the renewal of a rented vehicle's contract.
func (s *FinanceService) RenewalDefaults(ctx context.Context, owner, id string) (core.Renewal, error) {
	v, entries, err := s.vehicleWithEntries(ctx, owner, id)
	if err != nil {
		return core.Renewal{}, err
	}
	if v.Ownership != core.Rented {
		return core.Renewal{}, ErrNotRented
	}
	return core.RenewalDefaults(v, entries), nil
}

// RenewContract replaces the contract fields of a rented vehicle.
func (s *FinanceService) RenewContract(ctx context.Context, owner, id string, form core.RenewalForm) (core.Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, owner, id)
	if err != nil {
		return core.Vehicle{}, err
	}
	if v.Ownership != core.Rented {
		return core.Vehicle{}, ErrNotRented
	}
	renewal, err := form.Build()
	if err != nil {
		return core.Vehicle{}, err
	}
	v = renewal.Apply(v).Normalize()
	if err := s.store.UpdateVehicle(ctx, v); err != nil {
		return core.Vehicle{}, err
	}
	s.committed(ctx, owner, amqp.ResourceVehicle, amqp.ActionUpdated, id)
	return v, nil
}

// VehicleMetrics computes totals and fuel economy of one vehicle.
func (s *FinanceService) VehicleMetrics(ctx context.Context, owner, id string) (core.VehicleMetrics, error) {
	v, entries, err := s.vehicleWithEntries(ctx, owner, id)
	if err != nil {
		return core.VehicleMetrics{}, err
	}
	return core.ComputeVehicleMetrics(v, entries), nil
}

// Aggregations

// Dashboard returns the month figures for the month containing ref. A zero
// ref means the current UTC day, the same clock the report trend uses.
func (s *FinanceService) Dashboard(ctx context.Context, owner string, ref core.Date) (core.MonthStats, error) {
	snap, err := s.Snapshot(ctx, owner)
	if err != nil {
		return core.MonthStats{}, err
	}
	if ref.IsZero() {
		ref = core.DateOf(s.now().UTC())
	}
	return core.MonthlyStats(snap.Entries, ref), nil
}

// Report builds the period report for the query.
func (s *FinanceService) Report(ctx context.Context, owner string, q ReportQuery) (ReportResult, error) {
	filter, err := q.Filter(s.now())
	if err != nil {
		return ReportResult{}, err
	}
	snap, err := s.Snapshot(ctx, owner)
	if err != nil {
		return ReportResult{}, err
	}
	return ReportResult{
		Report:  core.PeriodReport(snap.Entries, filter),
		Entries: core.FilterEntries(snap.Entries, filter),
	}, nil
}
