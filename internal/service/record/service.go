// Package record implements the record store: creation in an initial state,
// field edits, hierarchy, archiving and history reads. Current state and
// ordering keys are written by the workflow executor only.
package record

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/config"
	"github.com/heartmarshall/qms-backend/internal/domain"
)

type recordRepo interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error)
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error)
	ListByState(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Record, error)
	ListChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]domain.Record, error)
	MaxPosition(ctx context.Context, tenantID, processID, stateID uuid.UUID) (float64, bool, error)
	ListHistory(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error)
	Create(ctx context.Context, rec domain.Record) error
	UpdateFields(ctx context.Context, rec domain.Record) error
	Archive(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error
	AppendHistory(ctx context.Context, tenantID uuid.UUID, e domain.HistoryEntry) (int, error)
}

type graphSource interface {
	GetProcessGraph(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error)
}

type auditLogger interface {
	Log(ctx context.Context, record domain.AuditRecord) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	MaxTitleLength = 500
	MaxTags        = 20
	MaxFiles       = 50
)

// Service provides record operations.
type Service struct {
	records recordRepo
	graphs  graphSource
	audit   auditLogger
	tx      txManager
	log     *slog.Logger
	cfg     config.WorkflowConfig
	now     func() time.Time
}

// NewService creates a new record Service.
func NewService(
	log *slog.Logger,
	records recordRepo,
	graphs graphSource,
	audit auditLogger,
	tx txManager,
	cfg config.WorkflowConfig,
) *Service {
	return &Service{
		records: records,
		graphs:  graphs,
		audit:   audit,
		tx:      tx,
		log:     log.With("service", "record"),
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) logAudit(ctx context.Context, rec domain.Record, actorID uuid.UUID, action domain.AuditAction, changes map[string]any) error {
	id := rec.ID
	return s.audit.Log(ctx, domain.AuditRecord{
		ID:         uuid.New(),
		TenantID:   rec.TenantID,
		ActorID:    actorID,
		EntityType: domain.EntityTypeRecord,
		EntityID:   &id,
		Action:     action,
		Changes:    changes,
		CreatedAt:  s.now(),
	})
}
