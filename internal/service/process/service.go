// Package process implements the process definition store: process graphs,
// state configuration, transitions, required fields and the field schema.
package process

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

type processRepo interface {
	GetByID(ctx context.Context, tenantID, processID uuid.UUID) (*domain.Process, error)
	Lock(ctx context.Context, tenantID, processID uuid.UUID) (*domain.Process, error)
	GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Process, error)
	List(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]domain.Process, error)
	Create(ctx context.Context, p domain.Process) error
	Update(ctx context.Context, p domain.Process) error

	ListStates(ctx context.Context, tenantID, processID uuid.UUID) ([]domain.State, error)
	CreateState(ctx context.Context, s domain.State) error
	UpdateState(ctx context.Context, s domain.State) error
	DeleteState(ctx context.Context, tenantID, stateID uuid.UUID) error
	SetTransitions(ctx context.Context, processID, fromStateID uuid.UUID, to []uuid.UUID) error
	UpdateOrders(ctx context.Context, tenantID, processID uuid.UUID, orderedIDs []uuid.UUID) error

	ListFields(ctx context.Context, processID uuid.UUID) (domain.FieldSchema, error)
	UpsertField(ctx context.Context, f domain.FieldDefinition) error
}

type recordCounter interface {
	CountByState(ctx context.Context, tenantID, stateID uuid.UUID) (int, error)
}

type auditLogger interface {
	Log(ctx context.Context, record domain.AuditRecord) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	MaxNameLength     = 200
	MaxStatesPerBoard = 50
)

// Service provides process definition operations.
type Service struct {
	processes processRepo
	records   recordCounter
	audit     auditLogger
	tx        txManager
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates a new process Service.
func NewService(
	log *slog.Logger,
	processes processRepo,
	records recordCounter,
	audit auditLogger,
	tx txManager,
) *Service {
	return &Service{
		processes: processes,
		records:   records,
		audit:     audit,
		tx:        tx,
		log:       log.With("service", "process"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) logAudit(ctx context.Context, tenantID, actorID uuid.UUID, entity domain.EntityType, entityID uuid.UUID, action domain.AuditAction, changes map[string]any) error {
	return s.audit.Log(ctx, domain.AuditRecord{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ActorID:    actorID,
		EntityType: entity,
		EntityID:   &entityID,
		Action:     action,
		Changes:    changes,
		CreatedAt:  s.now(),
	})
}

func stateIDs(states []domain.State) []uuid.UUID {
	ids := make([]uuid.UUID, len(states))
	for i, st := range states {
		ids[i] = st.ID
	}
	return ids
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
