package record

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// UpdateFields applies a partial update to the record's custom data and
// attributes. Current state and position are left untouched.
func (s *Service) UpdateFields(ctx context.Context, tenantID, actorID, recordID uuid.UUID, input UpdateFieldsInput) (*domain.Record, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var updated domain.Record
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rec, err := s.records.GetForUpdate(txCtx, tenantID, recordID)
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}

		if len(input.Patch.Data) > 0 {
			graph, err := s.graphs.GetProcessGraph(txCtx, tenantID, rec.ProcessID)
			if err != nil {
				return fmt.Errorf("get process graph: %w", err)
			}
			if errs := graph.Fields.Check(input.Patch.Data); len(errs) > 0 {
				return domain.NewValidationErrors(errs)
			}
		}

		changes := rec.Apply(input.Patch)
		updated = *rec
		if len(changes) == 0 {
			return nil
		}

		updated.Touch(s.now())
		if err := s.records.UpdateFields(txCtx, updated); err != nil {
			return fmt.Errorf("update record: %w", err)
		}

		return s.logAudit(txCtx, updated, actorID, domain.AuditActionUpdate, changes)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "record updated",
		slog.String("tenant_id", tenantID.String()),
		slog.String("record_id", recordID.String()),
		slog.String("actor_id", actorID.String()),
	)
	return &updated, nil
}

// ArchiveRecord soft-deletes a record and releases its position.
// Children keep their own lifecycle.
func (s *Service) ArchiveRecord(ctx context.Context, tenantID, actorID, recordID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rec, err := s.records.GetForUpdate(txCtx, tenantID, recordID)
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}

		if err := s.records.Archive(txCtx, tenantID, recordID, s.now()); err != nil {
			return fmt.Errorf("archive record: %w", err)
		}

		return s.logAudit(txCtx, *rec, actorID, domain.AuditActionArchive, map[string]any{
			"state_id": rec.StateID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "record archived",
		slog.String("tenant_id", tenantID.String()),
		slog.String("record_id", recordID.String()),
		slog.String("actor_id", actorID.String()),
	)
	return nil
}
