package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// CreateProcess stores a complete process definition in one transaction.
func (s *Service) CreateProcess(ctx context.Context, tenantID, actorID uuid.UUID, input CreateProcessInput) (*domain.ProcessGraph, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	p := domain.Process{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(input.Name),
		Category:  strings.TrimSpace(input.Category),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	schema := make(domain.FieldSchema, len(input.Fields))
	for _, f := range input.Fields {
		def := f.definition(p.ID)
		def.CreatedAt = now
		schema[def.Name] = def
	}

	byName := make(map[string]uuid.UUID, len(input.States))
	for _, st := range input.States {
		byName[strings.TrimSpace(st.Name)] = uuid.New()
	}

	states := make([]domain.State, len(input.States))
	for i, st := range input.States {
		name := strings.TrimSpace(st.Name)
		next := make([]uuid.UUID, 0, len(st.Next))
		for _, n := range st.Next {
			next = append(next, byName[strings.TrimSpace(n)])
		}
		states[i] = domain.State{
			ID:             byName[name],
			ProcessID:      p.ID,
			TenantID:       tenantID,
			Name:           name,
			Color:          st.Color,
			Order:          i,
			IsInitial:      st.Initial,
			IsFinal:        st.Final,
			AllowedNext:    next,
			RequiredFields: st.RequiredFields,
			CreatedAt:      now,
		}
	}

	if errs := domain.CheckStates(states, schema); len(errs) > 0 {
		return nil, domain.NewValidationErrors(errs)
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.processes.Create(txCtx, p); err != nil {
			return fmt.Errorf("create process: %w", err)
		}
		for _, def := range schema {
			if err := s.processes.UpsertField(txCtx, def); err != nil {
				return fmt.Errorf("create field %s: %w", def.Name, err)
			}
		}
		for _, st := range states {
			if err := s.processes.CreateState(txCtx, st); err != nil {
				return fmt.Errorf("create state %s: %w", st.Name, err)
			}
		}
		for _, st := range states {
			if len(st.AllowedNext) == 0 {
				continue
			}
			if err := s.processes.SetTransitions(txCtx, p.ID, st.ID, st.AllowedNext); err != nil {
				return fmt.Errorf("set transitions %s: %w", st.Name, err)
			}
		}

		return s.logAudit(txCtx, tenantID, actorID, domain.EntityTypeProcess, p.ID, domain.AuditActionCreate, map[string]any{
			"name":   p.Name,
			"states": len(states),
			"fields": len(schema),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "process created",
		slog.String("tenant_id", tenantID.String()),
		slog.String("process_id", p.ID.String()),
		slog.String("actor_id", actorID.String()),
		slog.Int("states", len(states)),
	)

	return domain.NewProcessGraph(p, states, schema), nil
}
