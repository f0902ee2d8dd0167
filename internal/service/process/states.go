package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// AddState appends a state at the end of the process's display order.
func (s *Service) AddState(ctx context.Context, tenantID, actorID, processID uuid.UUID, input StateInput) (*domain.State, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var created domain.State
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.processes.Lock(txCtx, tenantID, processID); err != nil {
			return fmt.Errorf("lock process: %w", err)
		}

		states, err := s.processes.ListStates(txCtx, tenantID, processID)
		if err != nil {
			return fmt.Errorf("list states: %w", err)
		}
		if len(states) >= MaxStatesPerBoard {
			return domain.NewValidationError("states", "max 50 states")
		}
		fields, err := s.processes.ListFields(txCtx, processID)
		if err != nil {
			return fmt.Errorf("list fields: %w", err)
		}

		created = domain.State{
			ID:             uuid.New(),
			ProcessID:      processID,
			TenantID:       tenantID,
			Name:           strings.TrimSpace(input.Name),
			Color:          input.Color,
			Order:          len(states),
			IsInitial:      input.IsInitial,
			IsFinal:        input.IsFinal,
			AllowedNext:    input.AllowedNext,
			RequiredFields: input.RequiredFields,
			CreatedAt:      s.now(),
		}
		if errs := domain.CheckStates(append(states, created), fields); len(errs) > 0 {
			return domain.NewValidationErrors(errs)
		}

		if err := s.processes.CreateState(txCtx, created); err != nil {
			return fmt.Errorf("create state: %w", err)
		}
		if len(created.AllowedNext) > 0 {
			if err := s.processes.SetTransitions(txCtx, processID, created.ID, created.AllowedNext); err != nil {
				return fmt.Errorf("set transitions: %w", err)
			}
		}

		return s.logAudit(txCtx, tenantID, actorID, domain.EntityTypeState, created.ID, domain.AuditActionCreate, map[string]any{
			"process_id": processID.String(),
			"name":       created.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "state added",
		slog.String("tenant_id", tenantID.String()),
		slog.String("process_id", processID.String()),
		slog.String("state_id", created.ID.String()),
	)
	return &created, nil
}

// UpdateState changes a state's attributes. The resulting state set must
// still satisfy the process invariants.
func (s *Service) UpdateState(ctx context.Context, tenantID, actorID, processID, stateID uuid.UUID, input UpdateStateInput) (*domain.State, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var updated domain.State
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.processes.Lock(txCtx, tenantID, processID); err != nil {
			return fmt.Errorf("lock process: %w", err)
		}

		states, err := s.processes.ListStates(txCtx, tenantID, processID)
		if err != nil {
			return fmt.Errorf("list states: %w", err)
		}
		idx := slices.IndexFunc(states, func(st domain.State) bool { return st.ID == stateID })
		if idx < 0 {
			return fmt.Errorf("state %s: %w", stateID, domain.ErrNotFound)
		}
		fields, err := s.processes.ListFields(txCtx, processID)
		if err != nil {
			return fmt.Errorf("list fields: %w", err)
		}

		old := states[idx]
		updated = old
		changes := make(map[string]any)
		if input.Name != nil {
			updated.Name = strings.TrimSpace(*input.Name)
			changes["name"] = map[string]any{"old": old.Name, "new": updated.Name}
		}
		if input.Color != nil {
			updated.Color = *input.Color
			changes["color"] = map[string]any{"old": old.Color, "new": updated.Color}
		}
		if input.IsInitial != nil {
			updated.IsInitial = *input.IsInitial
			changes["is_initial"] = map[string]any{"old": old.IsInitial, "new": updated.IsInitial}
		}
		if input.IsFinal != nil {
			updated.IsFinal = *input.IsFinal
			changes["is_final"] = map[string]any{"old": old.IsFinal, "new": updated.IsFinal}
		}
		if input.AllowedNext != nil {
			updated.AllowedNext = *input.AllowedNext
			changes["allowed_next"] = map[string]any{"old": uuidStrings(old.AllowedNext), "new": uuidStrings(updated.AllowedNext)}
		}
		if input.RequiredFields != nil {
			updated.RequiredFields = *input.RequiredFields
			changes["required_fields"] = map[string]any{"old": old.RequiredFields, "new": updated.RequiredFields}
		}

		candidate := slices.Clone(states)
		candidate[idx] = updated
		if errs := domain.CheckStates(candidate, fields); len(errs) > 0 {
			return domain.NewValidationErrors(errs)
		}

		if err := s.processes.UpdateState(txCtx, updated); err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		if input.AllowedNext != nil {
			if err := s.processes.SetTransitions(txCtx, processID, stateID, updated.AllowedNext); err != nil {
				return fmt.Errorf("set transitions: %w", err)
			}
		}

		return s.logAudit(txCtx, tenantID, actorID, domain.EntityTypeState, stateID, domain.AuditActionUpdate, changes)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "state updated",
		slog.String("tenant_id", tenantID.String()),
		slog.String("state_id", stateID.String()),
	)
	return &updated, nil
}

// ErrStateInUse is returned when a state still holds records, archived ones included.
var ErrStateInUse = errors.New("state has records")

// DeleteState removes a state that no record references. Transitions into
// it are removed from the other states and the remaining orders are re-densified.
func (s *Service) DeleteState(ctx context.Context, tenantID, actorID, processID, stateID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.processes.Lock(txCtx, tenantID, processID); err != nil {
			return fmt.Errorf("lock process: %w", err)
		}

		states, err := s.processes.ListStates(txCtx, tenantID, processID)
		if err != nil {
			return fmt.Errorf("list states: %w", err)
		}
		idx := slices.IndexFunc(states, func(st domain.State) bool { return st.ID == stateID })
		if idx < 0 {
			return fmt.Errorf("state %s: %w", stateID, domain.ErrNotFound)
		}

		count, err := s.records.CountByState(txCtx, tenantID, stateID)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("state %s: %d records: %w: %w", stateID, count, ErrStateInUse, domain.ErrConflict)
		}

		removed := states[idx]
		remaining := slices.Delete(slices.Clone(states), idx, idx+1)
		var rewired []domain.State
		for i, st := range remaining {
			if !slices.Contains(st.AllowedNext, stateID) {
				continue
			}
			st.AllowedNext = slices.DeleteFunc(slices.Clone(st.AllowedNext), func(id uuid.UUID) bool { return id == stateID })
			remaining[i] = st
			rewired = append(rewired, st)
		}

		fields, err := s.processes.ListFields(txCtx, processID)
		if err != nil {
			return fmt.Errorf("list fields: %w", err)
		}
		if errs := domain.CheckStates(remaining, fields); len(errs) > 0 {
			return domain.NewValidationErrors(errs)
		}

		for _, st := range rewired {
			if err := s.processes.SetTransitions(txCtx, processID, st.ID, st.AllowedNext); err != nil {
				return fmt.Errorf("set transitions: %w", err)
			}
		}
		if err := s.processes.DeleteState(txCtx, tenantID, stateID); err != nil {
			return fmt.Errorf("delete state: %w", err)
		}
		if len(remaining) > 0 {
			if err := s.processes.UpdateOrders(txCtx, tenantID, processID, stateIDs(remaining)); err != nil {
				return fmt.Errorf("update orders: %w", err)
			}
		}

		return s.logAudit(txCtx, tenantID, actorID, domain.EntityTypeState, stateID, domain.AuditActionDelete, map[string]any{
			"process_id": processID.String(),
			"name":       removed.Name,
		})
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "state deleted",
		slog.String("tenant_id", tenantID.String()),
		slog.String("process_id", processID.String()),
		slog.String("state_id", stateID.String()),
	)
	return nil
}
