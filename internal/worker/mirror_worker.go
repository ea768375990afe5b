package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"atlas/internal/amqp"
	"atlas/internal/core"
	"atlas/internal/sheets"
	"atlas/internal/storage"
)

// ActionBackfill marks rows written by the polling path rather than by a
// change event.
const ActionBackfill = "backfill"

// Store is what the mirror reads records from.
type Store interface {
	storage.CategoryStore
	storage.EntryStore
	storage.VehicleStore
	storage.MirrorStore
}

// MirrorWorker appends an audit row to the spreadsheet for every change.
type MirrorWorker struct {
	storage   Store
	sheets    sheets.RowAppender
	batchSize int
	now       func() time.Time
}

func NewMirrorWorker(store Store, appender sheets.RowAppender, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &MirrorWorker{
		storage:   store,
		sheets:    appender,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleChange processes a single change message from AMQP. The current
// record is loaded from storage; deleted or vanished records append a
// tombstone row.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"resource", msg.Resource,
		"action", msg.Action,
		"id", msg.ID)

	row, err := w.rowFor(ctx, msg)
	if err != nil {
		return err
	}

	ref, err := w.sheets.AppendRow(ctx, row)
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}

	if msg.Resource == amqp.ResourceEntry && msg.Action != amqp.ActionDeleted && row.Date != "" {
		w.markMirrored(ctx, msg.ID)
	}

	slog.InfoContext(ctx, "Mirrored change",
		"resource", msg.Resource,
		"action", msg.Action,
		"id", msg.ID,
		"sheets_ref", ref)

	return nil
}

func (w *MirrorWorker) rowFor(ctx context.Context, msg *amqp.ChangeMessage) (sheets.AuditRow, error) {
	row := sheets.AuditRow{
		Timestamp: w.now().UTC(),
		Owner:     msg.Owner,
		Resource:  msg.Resource,
		Action:    msg.Action,
		ID:        msg.ID,
	}
	if msg.Action == amqp.ActionDeleted {
		return row, nil
	}

	var err error
	switch msg.Resource {
	case amqp.ResourceEntry:
		var e core.Entry
		if e, err = w.storage.GetEntry(ctx, msg.Owner, msg.ID); err == nil {
			err = w.fillEntry(ctx, &row, e)
		}
	case amqp.ResourceCategory:
		var c core.Category
		if c, err = w.storage.GetCategory(ctx, msg.Owner, msg.ID); err == nil {
			row.Kind = string(c.Kind)
			row.Category = c.Name
		}
	case amqp.ResourceVehicle:
		var v core.Vehicle
		if v, err = w.storage.GetVehicle(ctx, msg.Owner, msg.ID); err == nil {
			row.Kind = string(v.Ownership)
			row.Note = fmt.Sprintf("%s (%s)", v.Name, v.Plate)
		}
	default:
		return row, fmt.Errorf("unknown resource %q", msg.Resource)
	}

	if errors.Is(err, storage.ErrNotFound) {
		// Deleted after the event was published.
		slog.WarnContext(ctx, "Record vanished before mirroring, writing tombstone",
			"resource", msg.Resource, "id", msg.ID)
		return row, nil
	}
	if err != nil {
		return row, fmt.Errorf("load %s %s: %w", msg.Resource, msg.ID, err)
	}
	return row, nil
}

func (w *MirrorWorker) fillEntry(ctx context.Context, row *sheets.AuditRow, e core.Entry) error {
	row.Date = e.Date.String()
	row.Kind = string(e.Kind)
	row.Amount = e.Amount.Reais().StringFixed(2)
	row.Note = e.Note
	if e.Category != nil {
		row.Category = e.Category.Name
		return nil
	}
	c, err := w.storage.GetCategory(ctx, e.Owner, e.CategoryID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load category %s: %w", e.CategoryID, err)
	}
	row.Category = c.Name
	return nil
}

func (w *MirrorWorker) markMirrored(ctx context.Context, id string) {
	if err := w.storage.MarkMirrored(ctx, id, w.now()); err != nil {
		// The row was written; a later backfill may duplicate it.
		slog.ErrorContext(ctx, "Failed to mark entry as mirrored", "id", id, "error", err)
	}
}

// ProcessPending mirrors up to limit entries that haven't been mirrored yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *MirrorWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = w.batchSize
	}
	pending, err := w.storage.ListUnmirrored(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unmirrored entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing unmirrored entries", "count", len(pending))

	var errs []error
	synced := 0
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		row := sheets.AuditRow{
			Timestamp: w.now().UTC(),
			Owner:     e.Owner,
			Resource:  amqp.ResourceEntry,
			Action:    ActionBackfill,
			ID:        e.ID,
		}
		if err := w.fillEntry(ctx, &row, e); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := w.sheets.AppendRow(ctx, row); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror entry", "id", e.ID, "error", err)
			errs = append(errs, fmt.Errorf("append entry %s: %w", e.ID, err))
			continue
		}
		w.markMirrored(ctx, e.ID)
		synced++
	}

	if synced == 0 && len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return synced, nil
}

// StartupSyncCheck mirrors any entries left over from worker downtime.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.ProcessPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup mirror check: %w", err)
	}
	if synced == 0 {
		slog.InfoContext(ctx, "No unmirrored entries found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup mirror completed", "synced", synced)
	return nil
}
