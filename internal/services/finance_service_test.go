package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"atlas/internal/amqp"
	"atlas/internal/core"
	"atlas/internal/storage"
)

const owner = "user-1"

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ChangeMessage
	err  error
}

func (p *recordingPublisher) PublishChange(_ context.Context, msg *amqp.ChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func newTestService(t *testing.T, opts ...Option) (*FinanceService, *storage.MemoryRepository) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	n := 0
	svc := NewFinanceService(repo, append([]Option{
		WithClock(func() time.Time { return time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC) }),
	}, opts...)...)
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return svc, repo
}

func mustCategory(t *testing.T, svc *FinanceService, name string, kind core.Kind) core.Category {
	t.Helper()
	c, err := svc.CreateCategory(context.Background(), owner, core.CategoryForm{Name: name, Kind: kind})
	if err != nil {
		t.Fatalf("CreateCategory(%s): %v", name, err)
	}
	return c
}

func mustVehicle(t *testing.T, svc *FinanceService, form core.VehicleForm) core.Vehicle {
	t.Helper()
	v, err := svc.CreateVehicle(context.Background(), owner, form)
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	return v
}

func TestFinanceService_CategoryLifecycle(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, WithPublisher(pub))
	ctx := context.Background()

	food := mustCategory(t, svc, "Alimentação", core.KindExpense)
	if food.ID != "id-1" || food.Owner != owner {
		t.Fatalf("unexpected category %+v", food)
	}

	snap, err := svc.Snapshot(ctx, owner)
	if err != nil || len(snap.Categories) != 1 {
		t.Fatalf("snapshot = %+v, %v", snap, err)
	}

	updated, err := svc.UpdateCategory(ctx, owner, food.ID, core.CategoryForm{Name: "Mercado", Kind: core.KindExpense})
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if !updated.CreatedAt.Equal(food.CreatedAt) {
		t.Errorf("created_at changed on update")
	}

	snap, _ = svc.Snapshot(ctx, owner)
	if snap.Categories[0].Name != "Mercado" {
		t.Fatalf("snapshot not refreshed after update: %+v", snap.Categories)
	}

	if err := svc.DeleteCategory(ctx, owner, food.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if len(pub.msgs) != 3 {
		t.Fatalf("expected 3 change messages, got %d", len(pub.msgs))
	}
	if pub.msgs[2].Action != amqp.ActionDeleted || pub.msgs[2].Resource != amqp.ResourceCategory {
		t.Errorf("unexpected last message %+v", pub.msgs[2])
	}
}

func TestFinanceService_DeleteCategoryInUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	food := mustCategory(t, svc, "Alimentação", core.KindExpense)

	_, err := svc.CreateEntry(ctx, owner, core.EntryForm{
		Kind: core.KindExpense, CategoryID: food.ID, AmountInput: "R$ 10,00", DateInput: "2024-05-01",
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	err = svc.DeleteCategory(ctx, owner, food.ID)
	if !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
}

func TestFinanceService_CreateEntryValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	salary := mustCategory(t, svc, "Salário", core.KindIncome)

	tests := []struct {
		name string
		form core.EntryForm
		want error
	}{
		{
			name: "missing fields",
			form: core.EntryForm{Kind: core.KindExpense},
			want: core.ErrRequiredFields,
		},
		{
			name: "unknown category",
			form: core.EntryForm{Kind: core.KindExpense, CategoryID: "nope", AmountInput: "1,00", DateInput: "2024-05-01"},
			want: ErrUnknownCategory,
		},
		{
			name: "kind mismatch",
			form: core.EntryForm{Kind: core.KindExpense, CategoryID: salary.ID, AmountInput: "1,00", DateInput: "2024-05-01"},
			want: core.ErrKindMismatch,
		},
		{
			name: "unknown vehicle",
			form: core.EntryForm{Kind: core.KindIncome, CategoryID: salary.ID, AmountInput: "1,00", DateInput: "2024-05-01", VehicleLinked: true, VehicleID: "ghost"},
			want: ErrUnknownVehicle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEntry(ctx, owner, tt.form)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !core.IsValidation(err) {
				t.Errorf("expected a validation error, got %T", err)
			}
		})
	}
}

func TestFinanceService_OdometerRegression(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	fuel := mustCategory(t, svc, "Combustível", core.KindExpense)
	car := mustVehicle(t, svc, core.VehicleForm{Name: "Onix", Plate: "abc1d23", InitialOdometerInput: "1000"})

	form := core.EntryForm{
		Kind:           core.KindExpense,
		CategoryID:     fuel.ID,
		AmountInput:    "R$ 200,00",
		DateInput:      "2024-05-02",
		VehicleLinked:  true,
		VehicleID:      car.ID,
		OdometerInput:  "1200",
		FuelPriceInput: "5,00",
	}
	first, err := svc.CreateEntry(ctx, owner, form)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if first.FuelLiters.Decimal.StringFixed(3) != "40.000" {
		t.Errorf("fuel liters = %s, want 40", first.FuelLiters.Decimal)
	}

	form.OdometerInput = "1100"
	_, err = svc.CreateEntry(ctx, owner, form)
	var regression *core.OdometerRegressionError
	if !errors.As(err, &regression) {
		t.Fatalf("expected odometer regression, got %v", err)
	}
	if regression.Last != 1200 || regression.Reading != 1100 {
		t.Errorf("regression = %+v", regression)
	}

	// Editing is exempt from the monotonicity check.
	form.OdometerInput = "900"
	if _, err := svc.UpdateEntry(ctx, owner, first.ID, form); err != nil {
		t.Fatalf("UpdateEntry with lower odometer: %v", err)
	}
}

func TestFinanceService_PublishFailureDoesNotFailAction(t *testing.T) {
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc, _ := newTestService(t, WithPublisher(pub))

	if _, err := svc.CreateCategory(context.Background(), owner, core.CategoryForm{Name: "Uber", Kind: core.KindIncome}); err != nil {
		t.Fatalf("CreateCategory should succeed when publishing fails: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected one publish attempt, got %d", len(pub.msgs))
	}
}

func TestFinanceService_DeleteVehicleDetachesEntries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	rides := mustCategory(t, svc, "Corridas", core.KindIncome)
	car := mustVehicle(t, svc, core.VehicleForm{Name: "HB20", Plate: "XYZ9A87", InitialOdometerInput: "0"})

	e, err := svc.CreateEntry(ctx, owner, core.EntryForm{
		Kind: core.KindIncome, CategoryID: rides.ID, AmountInput: "50,00", DateInput: "2024-05-03",
		VehicleLinked: true, VehicleID: car.ID,
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if err := svc.DeleteVehicle(ctx, owner, car.ID); err != nil {
		t.Fatalf("DeleteVehicle: %v", err)
	}
	snap, err := svc.Snapshot(ctx, owner)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Vehicles) != 0 || len(snap.Entries) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Entries[0].ID != e.ID || snap.Entries[0].HasVehicle() {
		t.Fatalf("entry not detached: %+v", snap.Entries[0])
	}
}

func TestFinanceService_RenewContract(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owned := mustVehicle(t, svc, core.VehicleForm{Name: "Own", Plate: "AAA0A00", InitialOdometerInput: "10"})
	rented := mustVehicle(t, svc, core.VehicleForm{
		Name: "Rent", Plate: "BBB0B00", Ownership: core.Rented, InitialOdometerInput: "5000",
		ContractValueInput: "R$ 2.000,00", ContractStartInput: "2024-01-01", ContractEndInput: "2024-04-30",
		ProfitGoalInput: "R$ 3.000,00",
	})

	if _, err := svc.RenewalDefaults(ctx, owner, owned.ID); !errors.Is(err, ErrNotRented) {
		t.Fatalf("expected ErrNotRented, got %v", err)
	}

	defaults, err := svc.RenewalDefaults(ctx, owner, rented.ID)
	if err != nil {
		t.Fatalf("RenewalDefaults: %v", err)
	}
	if defaults.StartDate == nil || defaults.StartDate.String() != "2024-04-30" {
		t.Errorf("default start = %v", defaults.StartDate)
	}
	if defaults.InitialKm == nil || *defaults.InitialKm != 5000 {
		t.Errorf("default initial km = %v", defaults.InitialKm)
	}

	renewed, err := svc.RenewContract(ctx, owner, rented.ID, core.RenewalForm{
		ContractValueInput: "R$ 2.200,00",
		StartInput:         "2024-05-01",
		EndInput:           "2024-08-31",
		InitialKmInput:     "5000",
		ProfitGoalInput:    "R$ 3.500,00",
	})
	if err != nil {
		t.Fatalf("RenewContract: %v", err)
	}
	if renewed.ContractValue == nil || renewed.ContractValue.Cents != 220000 {
		t.Errorf("contract value = %v", renewed.ContractValue)
	}
	if renewed.ContractEndDate == nil || renewed.ContractEndDate.String() != "2024-08-31" {
		t.Errorf("contract end = %v", renewed.ContractEndDate)
	}
}

func TestFinanceService_DashboardReportAndMetrics(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	rides := mustCategory(t, svc, "Corridas", core.KindIncome)
	fuel := mustCategory(t, svc, "Combustível", core.KindExpense)
	car := mustVehicle(t, svc, core.VehicleForm{Name: "Onix", Plate: "ABC1D23", InitialOdometerInput: "1000"})

	forms := []core.EntryForm{
		{Kind: core.KindIncome, CategoryID: rides.ID, AmountInput: "10,00", DateInput: "2024-05-10", VehicleLinked: true, VehicleID: car.ID},
		{Kind: core.KindExpense, CategoryID: fuel.ID, AmountInput: "3,00", DateInput: "2024-05-15", VehicleLinked: true, VehicleID: car.ID, OdometerInput: "1200", FuelPriceInput: "0,075"},
		{Kind: core.KindExpense, CategoryID: fuel.ID, AmountInput: "2,00", DateInput: "2024-04-20"},
	}
	for _, f := range forms {
		if _, err := svc.CreateEntry(ctx, owner, f); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}

	stats, err := svc.Dashboard(ctx, owner, core.Date{})
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if stats.IncomeMonth.Cents != 1000 || stats.ExpenseMonth.Cents != 300 || stats.RunningBalance.Cents != 500 {
		t.Fatalf("dashboard = %+v", stats)
	}

	result, err := svc.Report(ctx, owner, ReportQuery{Mode: ReportModeMonth, Month: "2024-05", Vehicle: car.ID})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if result.Report.Net.Cents != 700 || len(result.Entries) != 2 {
		t.Fatalf("report = %+v, entries = %d", result.Report, len(result.Entries))
	}
	if len(result.Report.Trend) != core.TrendMonths {
		t.Fatalf("trend buckets = %d", len(result.Report.Trend))
	}

	if _, err := svc.Report(ctx, owner, ReportQuery{Mode: "weekly"}); !errors.Is(err, ErrInvalidReportMode) {
		t.Fatalf("expected ErrInvalidReportMode, got %v", err)
	}

	metrics, err := svc.VehicleMetrics(ctx, owner, car.ID)
	if err != nil {
		t.Fatalf("VehicleMetrics: %v", err)
	}
	if metrics.DistanceTotal != 200 || metrics.Net.Cents != 700 {
		t.Fatalf("metrics = %+v", metrics)
	}
	if metrics.AvgKmPerLiter.StringFixed(2) != "5.00" {
		t.Errorf("avg km/l = %s", metrics.AvgKmPerLiter)
	}

	if _, err := svc.VehicleMetrics(ctx, owner, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	page, total, err := svc.ListEntries(ctx, owner, 0, 2)
	if err != nil || total != 3 || len(page) != 2 {
		t.Fatalf("ListEntries = %d/%d, %v", len(page), total, err)
	}
	if page[0].Date.String() != "2024-05-15" {
		t.Errorf("entries not newest first: %s", page[0].Date)
	}
}

type noVehicleTable struct {
	*storage.MemoryRepository
}

func (noVehicleTable) ListVehicles(context.Context, string) ([]core.Vehicle, error) {
	return nil, fmt.Errorf("%w: no such table: vehicles", storage.ErrTableMissing)
}

func TestFinanceService_SnapshotWithoutVehicleTable(t *testing.T) {
	svc := NewFinanceService(noVehicleTable{storage.NewMemoryRepository()})

	snap, err := svc.Snapshot(context.Background(), owner)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Vehicles == nil || len(snap.Vehicles) != 0 {
		t.Fatalf("expected empty vehicle list, got %#v", snap.Vehicles)
	}
}

func TestFinanceService_SnapshotIsCachedPerOwner(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	mustCategory(t, svc, "Uber", core.KindIncome)

	if _, err := svc.Snapshot(ctx, owner); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	// Written behind the service's back: invisible until invalidated.
	if err := repo.CreateCategory(ctx, core.Category{ID: "raw", Owner: owner, Name: "Raw", Kind: core.KindIncome}); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	snap, _ := svc.Snapshot(ctx, owner)
	if len(snap.Categories) != 1 {
		t.Fatalf("expected cached snapshot, got %d categories", len(snap.Categories))
	}

	svc.Invalidate(owner)
	snap, _ = svc.Snapshot(ctx, owner)
	if len(snap.Categories) != 2 {
		t.Fatalf("expected refetched snapshot, got %d categories", len(snap.Categories))
	}

	other, _ := svc.Snapshot(ctx, "someone-else")
	if len(other.Categories) != 0 {
		t.Fatalf("snapshot leaked across owners: %+v", other.Categories)
	}
}

// gatedEntries holds the result of the first ListEntries call until release
// is closed.
type gatedEntries struct {
	*storage.MemoryRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEntries) ListEntries(ctx context.Context, owner string) ([]core.Entry, error) {
	entries, err := g.MemoryRepository.ListEntries(ctx, owner)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return entries, err
}

func TestFinanceService_SnapshotLoadedAcrossMutationIsNotCached(t *testing.T) {
	store := &gatedEntries{
		MemoryRepository: storage.NewMemoryRepository(),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	svc := NewFinanceService(store)
	ctx := context.Background()
	food := mustCategory(t, svc, "Alimentação", core.KindExpense)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Snapshot(ctx, owner)
		done <- err
	}()
	<-store.entered

	if _, err := svc.CreateEntry(ctx, owner, core.EntryForm{
		Kind: core.KindExpense, CategoryID: food.ID, AmountInput: "R$ 10,00", DateInput: "2024-05-01",
	}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	snap, err := svc.Snapshot(ctx, owner)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Entries) != 1 {
		t.Fatalf("expected the committed entry after refetch, got %d entries", len(snap.Entries))
	}
}

func TestFinanceService_DashboardAndTrendShareUTCMonth(t *testing.T) {
	// 22:00 on May 31 in São Paulo is already June 1 in UTC.
	local := time.Date(2024, 5, 31, 22, 0, 0, 0, time.FixedZone("BRT", -3*60*60))
	svc, _ := newTestService(t, WithClock(func() time.Time { return local }))
	ctx := context.Background()
	food := mustCategory(t, svc, "Alimentação", core.KindExpense)
	if _, err := svc.CreateEntry(ctx, owner, core.EntryForm{
		Kind: core.KindExpense, CategoryID: food.ID, AmountInput: "R$ 10,00", DateInput: "2024-06-01",
	}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	stats, err := svc.Dashboard(ctx, owner, core.Date{})
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if stats.Month != 6 || stats.ExpenseMonth.Cents != 1000 {
		t.Fatalf("dashboard = %+v, want June with the expense", stats)
	}

	result, err := svc.Report(ctx, owner, ReportQuery{})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	last := result.Report.Trend[len(result.Report.Trend)-1]
	if last.Year != stats.Year || last.Month != stats.Month {
		t.Fatalf("trend ends at %d-%02d, dashboard month is %d-%02d", last.Year, last.Month, stats.Year, stats.Month)
	}
}
