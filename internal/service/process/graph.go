package process

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// GetProcessGraph returns the states, transition map and field schema of a process.
// Returns domain.ErrNotFound if the process does not exist or belongs to another tenant.
// Deactivated processes stay readable so their records can still be shown.
func (s *Service) GetProcessGraph(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error) {
	p, err := s.processes.GetByID(ctx, tenantID, processID)
	if err != nil {
		return nil, fmt.Errorf("get process: %w", err)
	}
	return s.loadGraph(ctx, *p)
}

// ListProcesses returns the tenant's processes ordered by name.
func (s *Service) ListProcesses(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]domain.Process, error) {
	processes, err := s.processes.List(ctx, tenantID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	return processes, nil
}

// DeactivateProcess soft-deactivates a process. Existing records keep
// working; new records can no longer be created in it.
func (s *Service) DeactivateProcess(ctx context.Context, tenantID, actorID, processID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.processes.Lock(txCtx, tenantID, processID)
		if err != nil {
			return fmt.Errorf("lock process: %w", err)
		}
		if !p.Active {
			return nil
		}

		p.Active = false
		p.UpdatedAt = s.now()
		if err := s.processes.Update(txCtx, *p); err != nil {
			return fmt.Errorf("update process: %w", err)
		}

		return s.logAudit(txCtx, tenantID, actorID, domain.EntityTypeProcess, processID, domain.AuditActionUpdate,
			map[string]any{"active": map[string]any{"old": true, "new": false}})
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "process deactivated",
		slog.String("tenant_id", tenantID.String()),
		slog.String("process_id", processID.String()),
		slog.String("actor_id", actorID.String()),
	)
	return nil
}

func (s *Service) loadGraph(ctx context.Context, p domain.Process) (*domain.ProcessGraph, error) {
	states, err := s.processes.ListStates(ctx, p.TenantID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	fields, err := s.processes.ListFields(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return domain.NewProcessGraph(p, states, fields), nil
}
