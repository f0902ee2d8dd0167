package process

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// DefineField creates or replaces a field definition of a process.
// Existing record data is not revalidated.
func (s *Service) DefineField(ctx context.Context, tenantID, actorID, processID uuid.UUID, input FieldInput) (*domain.FieldDefinition, error) {
	def := input.definition(processID)
	def.CreatedAt = s.now()
	if errs := def.Validate(); len(errs) > 0 {
		return nil, domain.NewValidationErrors(errs)
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.processes.Lock(txCtx, tenantID, processID); err != nil {
			return fmt.Errorf("lock process: %w", err)
		}

		existing, err := s.processes.ListFields(txCtx, processID)
		if err != nil {
			return fmt.Errorf("list fields: %w", err)
		}
		action := domain.AuditActionCreate
		if old, ok := existing[def.Name]; ok {
			action = domain.AuditActionUpdate
			def.CreatedAt = old.CreatedAt
		}

		if err := s.processes.UpsertField(txCtx, def); err != nil {
			return fmt.Errorf("upsert field: %w", err)
		}

		return s.logAudit(txCtx, tenantID, actorID, domain.EntityTypeField, processID, action, map[string]any{
			"name": def.Name,
			"type": def.Type.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "field defined",
		slog.String("tenant_id", tenantID.String()),
		slog.String("process_id", processID.String()),
		slog.String("field", def.Name),
	)
	return &def, nil
}
