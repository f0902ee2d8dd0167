// Package dataloader provides per-request DataLoaders that batch the board
// read model into single SQL calls. Loaders call repositories directly,
// bypassing the service layer; tenant isolation is enforced by the tenant
// filter every batch query carries.
package dataloader

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

const (
	maxBatch = 100
	wait     = 2 * time.Millisecond
)

type recordRepo interface {
	ListByStateIDs(ctx context.Context, tenantID uuid.UUID, stateIDs []uuid.UUID) ([]domain.Record, error)
	ListChildrenByParentIDs(ctx context.Context, tenantID uuid.UUID, parentIDs []uuid.UUID) ([]domain.Record, error)
}

type processRepo interface {
	ListStatesByProcessIDs(ctx context.Context, tenantID uuid.UUID, processIDs []uuid.UUID) ([]domain.State, error)
	ListFieldsByProcessIDs(ctx context.Context, processIDs []uuid.UUID) ([]domain.FieldDefinition, error)
}

// Repos holds the repositories required by the loaders.
type Repos struct {
	Record  recordRepo
	Process processRepo
}

// Loaders contains the per-request DataLoaders.
type Loaders struct {
	RecordsByStateID   *dataloader.Loader[uuid.UUID, []domain.Record]
	ChildrenByParentID *dataloader.Loader[uuid.UUID, []domain.Record]
	StatesByProcessID  *dataloader.Loader[uuid.UUID, []domain.State]
	FieldsByProcessID  *dataloader.Loader[uuid.UUID, []domain.FieldDefinition]
}

// NewLoaders creates a new set of DataLoaders backed by the given
// repositories. Must be called per request: loaders cache results.
func NewLoaders(repos *Repos) *Loaders {
	return &Loaders{
		RecordsByStateID:   newLoader(newRecordsByStateBatchFn(repos.Record)),
		ChildrenByParentID: newLoader(newChildrenBatchFn(repos.Record)),
		StatesByProcessID:  newLoader(newStatesBatchFn(repos.Process)),
		FieldsByProcessID:  newLoader(newFieldsBatchFn(repos.Process)),
	}
}

func newLoader[V any](batchFn dataloader.BatchFunc[uuid.UUID, V]) *dataloader.Loader[uuid.UUID, V] {
	return dataloader.NewBatchedLoader(
		batchFn,
		dataloader.WithWait[uuid.UUID, V](wait),
		dataloader.WithBatchCapacity[uuid.UUID, V](maxBatch),
	)
}

type contextKey string

const loadersKey contextKey = "dataloaders"

// WithLoaders stores Loaders in the context.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, l)
}

// FromContext retrieves Loaders from the context.
// Panics if loaders are not present (indicates middleware misconfiguration).
func FromContext(ctx context.Context) *Loaders {
	l, ok := ctx.Value(loadersKey).(*Loaders)
	if !ok || l == nil {
		panic("dataloader: loaders not found in context, is middleware configured?")
	}
	return l
}
