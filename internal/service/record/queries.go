package record

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// GetRecord returns an active record with its full history.
// Returns domain.ErrNotFound if absent, archived or owned by another tenant.
func (s *Service) GetRecord(ctx context.Context, tenantID, recordID uuid.UUID) (*domain.Record, error) {
	rec, err := s.records.GetByID(ctx, tenantID, recordID)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	history, err := s.records.ListHistory(ctx, tenantID, recordID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	rec.History = history

	return rec, nil
}

// ListByState returns the records of one column ordered by position.
func (s *Service) ListByState(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Record, error) {
	graph, err := s.graphs.GetProcessGraph(ctx, tenantID, processID)
	if err != nil {
		return nil, fmt.Errorf("get process graph: %w", err)
	}
	if !graph.HasState(stateID) {
		return nil, fmt.Errorf("state %s: %w", stateID, domain.ErrNotFound)
	}

	records, err := s.records.ListByState(ctx, tenantID, processID, stateID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// ListChildren returns the active sub-records of a record.
func (s *Service) ListChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]domain.Record, error) {
	if _, err := s.records.GetByID(ctx, tenantID, parentID); err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	children, err := s.records.ListChildren(ctx, tenantID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

// GetHistory returns the history of an active record ordered by sequence.
func (s *Service) GetHistory(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error) {
	if _, err := s.records.GetByID(ctx, tenantID, recordID); err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	history, err := s.records.ListHistory(ctx, tenantID, recordID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return history, nil
}
