// Package workflow validates and executes record moves between the states
// of a process and maintains the per-column ordering keys.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/config"
	"github.com/heartmarshall/qms-backend/internal/domain"
)

type recordRepo interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error)
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error)
	ListSlots(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Slot, error)
	ListHistory(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error)
	UpdatePlacement(ctx context.Context, tenantID, id, stateID uuid.UUID, position float64, updatedAt time.Time) error
	Renumber(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, step float64) error
	AppendHistory(ctx context.Context, tenantID uuid.UUID, e domain.HistoryEntry) (int, error)
}

type graphSource interface {
	GetProcessGraph(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// moveObserver receives move outcomes for metrics.
type moveObserver interface {
	MoveFinished(outcome string, d time.Duration)
	ColumnRenumbered()
	ConflictRetried()
}

// movePublisher is informed of committed moves. It must not block.
type movePublisher interface {
	Publish(ctx context.Context, e domain.MoveEvent)
}

// Move outcomes reported to the observer.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// MoveInput describes one requested move.
type MoveInput struct {
	RecordID      uuid.UUID
	TargetStateID uuid.UUID
	// TargetIndex is the zero-based slot in the destination column,
	// counted without the moving record. Out-of-range values are clamped.
	TargetIndex int
	Comment     *string
}

// Executor applies validated moves atomically.
type Executor struct {
	records  recordRepo
	graphs   graphSource
	tx       txManager
	observer moveObserver
	events   movePublisher
	log      *slog.Logger
	cfg      config.WorkflowConfig
	now      func() time.Time
}

// NewExecutor creates a new Executor. observer and events may be nil.
func NewExecutor(
	log *slog.Logger,
	records recordRepo,
	graphs graphSource,
	tx txManager,
	observer moveObserver,
	events movePublisher,
	cfg config.WorkflowConfig,
) *Executor {
	if observer == nil {
		observer = nopObserver{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &Executor{
		records:  records,
		graphs:   graphs,
		tx:       tx,
		observer: observer,
		events:   events,
		log:      log.With("service", "workflow"),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Move validates and applies a move, returning the authoritative record
// with its full history.
//
// Rejections are returned as *domain.TransitionError with nothing written.
// An ordering conflict is retried with fresh neighbour keys up to
// cfg.MoveRetries times, then reported with reason Conflict.
func (e *Executor) Move(ctx context.Context, tenantID, actorID uuid.UUID, input MoveInput) (*domain.Record, error) {
	start := time.Now()
	if e.cfg.MoveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.MoveTimeout)
		defer cancel()
	}

	var (
		rec   *domain.Record
		event domain.MoveEvent
		err   error
	)
	for attempt := 0; ; attempt++ {
		rec, event, err = e.attempt(ctx, tenantID, actorID, input)
		if err == nil || !isConflict(err) || attempt >= e.cfg.MoveRetries {
			break
		}
		e.observer.ConflictRetried()
		e.log.WarnContext(ctx, "move conflict, retrying",
			slog.String("record_id", input.RecordID.String()),
			slog.Int("attempt", attempt+1),
		)
	}

	if err != nil {
		e.observer.MoveFinished(outcomeOf(err), time.Since(start))
		if isConflict(err) {
			err = &domain.TransitionError{Reason: domain.ReasonConflict, To: input.TargetStateID.String()}
		}

		var te *domain.TransitionError
		if errors.As(err, &te) {
			e.log.InfoContext(ctx, "move rejected",
				slog.String("tenant_id", tenantID.String()),
				slog.String("record_id", input.RecordID.String()),
				slog.String("reason", te.Reason.String()),
			)
		}
		return nil, err
	}

	e.observer.MoveFinished(OutcomeOK, time.Since(start))
	e.events.Publish(ctx, event)

	e.log.InfoContext(ctx, "record moved",
		slog.String("tenant_id", tenantID.String()),
		slog.String("record_id", rec.ID.String()),
		slog.String("actor_id", actorID.String()),
		slog.String("from_state_id", event.FromStateID.String()),
		slog.String("to_state_id", event.ToStateID.String()),
		slog.Float64("position", rec.Position),
	)
	return rec, nil
}

func (e *Executor) attempt(ctx context.Context, tenantID, actorID uuid.UUID, input MoveInput) (*domain.Record, domain.MoveEvent, error) {
	var (
		result *domain.Record
		event  domain.MoveEvent
	)

	err := e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rec, err := e.records.GetForUpdate(txCtx, tenantID, input.RecordID)
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}

		graph, err := e.graphs.GetProcessGraph(txCtx, tenantID, rec.ProcessID)
		if err != nil {
			return fmt.Errorf("get process graph: %w", err)
		}

		if err := Validate(*rec, graph, input.TargetStateID).Err(graph, rec.StateID, input.TargetStateID); err != nil {
			return err
		}

		position, err := e.place(txCtx, tenantID, rec, input)
		if err != nil {
			return err
		}

		now := e.now()
		from := rec.StateID
		if input.TargetStateID != from {
			if _, err := e.records.AppendHistory(txCtx, tenantID, domain.HistoryEntry{
				RecordID:    rec.ID,
				FromStateID: &from,
				ToStateID:   input.TargetStateID,
				ActorID:     actorID,
				Comment:     input.Comment,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		}

		rec.Touch(now)
		if err := e.records.UpdatePlacement(txCtx, tenantID, rec.ID, input.TargetStateID, position, rec.UpdatedAt); err != nil {
			return fmt.Errorf("update placement: %w", err)
		}

		result, err = e.records.GetByID(txCtx, tenantID, rec.ID)
		if err != nil {
			return fmt.Errorf("reload record: %w", err)
		}
		result.History, err = e.records.ListHistory(txCtx, tenantID, rec.ID)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}

		event = domain.MoveEvent{
			TenantID:    tenantID,
			ProcessID:   rec.ProcessID,
			RecordID:    rec.ID,
			FromStateID: from,
			ToStateID:   input.TargetStateID,
			Position:    position,
			ActorID:     actorID,
			At:          now,
		}
		return nil
	})
	if err != nil {
		return nil, domain.MoveEvent{}, err
	}
	return result, event, nil
}

// place computes the moving record's key in the destination column from a
// live read of its neighbours, renumbering the column when the gap is exhausted.
func (e *Executor) place(ctx context.Context, tenantID uuid.UUID, rec *domain.Record, input MoveInput) (float64, error) {
	slots, err := e.records.ListSlots(ctx, tenantID, rec.ProcessID, input.TargetStateID)
	if err != nil {
		return 0, fmt.Errorf("list slots: %w", err)
	}
	slots = without(slots, rec.ID)

	prev, next := Neighbours(slots, input.TargetIndex)
	if key, ok := KeyBetween(prev, next, e.cfg.MinPositionGap); ok {
		return key, nil
	}

	if err := e.records.Renumber(ctx, tenantID, slotIDs(slots), e.cfg.PositionStep); err != nil {
		return 0, fmt.Errorf("renumber: %w", err)
	}
	e.observer.ColumnRenumbered()
	e.log.InfoContext(ctx, "column renumbered",
		slog.String("tenant_id", tenantID.String()),
		slog.String("state_id", input.TargetStateID.String()),
		slog.Int("records", len(slots)),
	)

	prev, next = Neighbours(Renumbered(slots, e.cfg.PositionStep), input.TargetIndex)
	key, ok := KeyBetween(prev, next, e.cfg.MinPositionGap)
	if !ok {
		return 0, fmt.Errorf("no ordering key after renumber: %w", domain.ErrStorage)
	}
	return key, nil
}

func isConflict(err error) bool {
	var te *domain.TransitionError
	if errors.As(err, &te) {
		return false
	}
	return errors.Is(err, domain.ErrConflict)
}

func outcomeOf(err error) string {
	var te *domain.TransitionError
	if errors.As(err, &te) {
		return te.Reason.String()
	}
	if isConflict(err) {
		return domain.ReasonConflict.String()
	}
	return OutcomeError
}

type nopObserver struct{}

func (nopObserver) MoveFinished(string, time.Duration) {}
func (nopObserver) ColumnRenumbered()                  {}
func (nopObserver) ConflictRetried()                   {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.MoveEvent) {}
