package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// CreateRecord creates a record at the end of its starting state's column
// and seeds its history with a creation entry.
func (s *Service) CreateRecord(ctx context.Context, tenantID, actorID uuid.UUID, input CreateRecordInput) (*domain.Record, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	graph, err := s.graphs.GetProcessGraph(ctx, tenantID, input.ProcessID)
	if err != nil {
		return nil, fmt.Errorf("get process graph: %w", err)
	}
	if !graph.Process.Active {
		return nil, domain.NewValidationError("process_id", "process is inactive")
	}

	stateID, err := startState(graph, input)
	if err != nil {
		return nil, err
	}

	var errs []domain.FieldError
	for _, name := range graph.Fields.Missing(input.Data, graph.RequiredFields(stateID)) {
		errs = append(errs, domain.FieldError{Field: "data." + name, Message: "required"})
	}
	errs = append(errs, graph.Fields.Check(input.Data)...)
	if len(errs) > 0 {
		return nil, domain.NewValidationErrors(errs)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	now := s.now()
	rec := domain.Record{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ProcessID:     graph.ProcessID(),
		StateID:       stateID,
		ParentID:      input.ParentID,
		Title:         strings.TrimSpace(input.Title),
		ResponsibleID: input.ResponsibleID,
		AssigneeIDs:   input.AssigneeIDs,
		Priority:      priority,
		Data:          maps.Clone(input.Data),
		Files:         input.Files,
		Progress:      input.Progress,
		Tags:          input.Tags,
		Active:        true,
		CreatedAt:     now,
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	rec.Touch(now)

	// A concurrent create can take the same tail position; the deferred
	// unique constraint then fails the commit and the tail is re-read.
	for attempt := 0; ; attempt++ {
		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			return s.insert(txCtx, &rec, actorID)
		})
		if err == nil || !errors.Is(err, domain.ErrConflict) || attempt >= s.cfg.MoveRetries {
			break
		}
		s.log.WarnContext(ctx, "record create conflict, retrying",
			slog.String("record_id", rec.ID.String()),
			slog.Int("attempt", attempt+1),
		)
	}
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "record created",
		slog.String("tenant_id", tenantID.String()),
		slog.String("process_id", rec.ProcessID.String()),
		slog.String("record_id", rec.ID.String()),
		slog.String("actor_id", actorID.String()),
	)
	return &rec, nil
}

func (s *Service) insert(ctx context.Context, rec *domain.Record, actorID uuid.UUID) error {
	rec.Level = 0
	if rec.ParentID != nil {
		parent, err := s.records.GetByID(ctx, rec.TenantID, *rec.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError("parent_id", "parent record not found")
			}
			return fmt.Errorf("get parent: %w", err)
		}
		if parent.ProcessID != rec.ProcessID {
			return domain.NewValidationError("parent_id", "parent belongs to another process")
		}
		if parent.Level+1 > s.cfg.MaxDepth {
			return domain.NewValidationError("parent_id", fmt.Sprintf("max depth %d exceeded", s.cfg.MaxDepth))
		}
		rec.Level = parent.Level + 1
	}

	top, ok, err := s.records.MaxPosition(ctx, rec.TenantID, rec.ProcessID, rec.StateID)
	if err != nil {
		return fmt.Errorf("max position: %w", err)
	}
	rec.Position = 1
	if ok {
		rec.Position = top + 1
	}

	if err := s.records.Create(ctx, *rec); err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	entry := domain.HistoryEntry{
		RecordID:  rec.ID,
		ToStateID: rec.StateID,
		ActorID:   actorID,
		CreatedAt: rec.CreatedAt,
	}
	seq, err := s.records.AppendHistory(ctx, rec.TenantID, entry)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	entry.Seq = seq
	rec.History = []domain.HistoryEntry{entry}

	return s.logAudit(ctx, *rec, actorID, domain.AuditActionCreate, map[string]any{
		"title":    rec.Title,
		"state_id": rec.StateID.String(),
	})
}

// startState resolves the state a new record is created in.
func startState(graph *domain.ProcessGraph, input CreateRecordInput) (uuid.UUID, error) {
	if input.StateID == nil {
		initial := graph.InitialStates()
		if len(initial) == 0 {
			return uuid.Nil, domain.NewValidationError("state_id", "process has no initial state")
		}
		return initial[0].ID, nil
	}

	st, ok := graph.State(*input.StateID)
	if !ok {
		return uuid.Nil, domain.NewValidationError("state_id", "state does not belong to the process")
	}
	if !st.IsInitial && !input.AllowNonInitial {
		return uuid.Nil, domain.NewValidationError("state_id", "state is not initial")
	}
	return st.ID, nil
}
