package process

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// ReorderStates assigns dense 0..n-1 orders following orderedStateIDs.
// The id set must match the process's states exactly.
func (s *Service) ReorderStates(ctx context.Context, tenantID, actorID, processID uuid.UUID, orderedStateIDs []uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.processes.Lock(txCtx, tenantID, processID); err != nil {
			return fmt.Errorf("lock process: %w", err)
		}

		states, err := s.processes.ListStates(txCtx, tenantID, processID)
		if err != nil {
			return fmt.Errorf("list states: %w", err)
		}

		if !sameSet(stateIDs(states), orderedStateIDs) {
			return domain.NewValidationError("ordered_state_ids", "must contain every state of the process exactly once")
		}

		if err := s.processes.UpdateOrders(txCtx, tenantID, processID, orderedStateIDs); err != nil {
			return fmt.Errorf("update orders: %w", err)
		}

		return s.logAudit(txCtx, tenantID, actorID, domain.EntityTypeProcess, processID, domain.AuditActionReorder, map[string]any{
			"old": uuidStrings(stateIDs(states)),
			"new": uuidStrings(orderedStateIDs),
		})
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "states reordered",
		slog.String("tenant_id", tenantID.String()),
		slog.String("process_id", processID.String()),
		slog.String("actor_id", actorID.String()),
	)
	return nil
}

// sameSet reports whether got is a permutation of want without duplicates.
func sameSet(want, got []uuid.UUID) bool {
	if len(want) != len(got) {
		return false
	}
	expected := make(map[uuid.UUID]bool, len(want))
	for _, id := range want {
		expected[id] = false
	}
	for _, id := range got {
		seen, ok := expected[id]
		if !ok || seen {
			return false
		}
		expected[id] = true
	}
	return true
}
