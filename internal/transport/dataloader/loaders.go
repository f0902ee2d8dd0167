package dataloader

import (
	"context"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/pkg/ctxutil"
)

// Records by StateID, in position order.
func newRecordsByStateBatchFn(repo recordRepo) dataloader.BatchFunc[uuid.UUID, []domain.Record] {
	return func(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[[]domain.Record] {
		tenantID, ok := ctxutil.TenantIDFromCtx(ctx)
		if !ok {
			return errorResults[[]domain.Record](len(keys), domain.ErrUnauthorized)
		}

		records, err := repo.ListByStateIDs(ctx, tenantID, keys)
		if err != nil {
			return errorResults[[]domain.Record](len(keys), err)
		}

		grouped := make(map[uuid.UUID][]domain.Record, len(keys))
		for _, rec := range records {
			grouped[rec.StateID] = append(grouped[rec.StateID], rec)
		}

		return mapResults(keys, grouped, emptySlice[domain.Record])
	}
}

// Sub-records by ParentID.
func newChildrenBatchFn(repo recordRepo) dataloader.BatchFunc[uuid.UUID, []domain.Record] {
	return func(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[[]domain.Record] {
		tenantID, ok := ctxutil.TenantIDFromCtx(ctx)
		if !ok {
			return errorResults[[]domain.Record](len(keys), domain.ErrUnauthorized)
		}

		records, err := repo.ListChildrenByParentIDs(ctx, tenantID, keys)
		if err != nil {
			return errorResults[[]domain.Record](len(keys), err)
		}

		grouped := make(map[uuid.UUID][]domain.Record, len(keys))
		for _, rec := range records {
			if rec.ParentID == nil {
				continue
			}
			grouped[*rec.ParentID] = append(grouped[*rec.ParentID], rec)
		}

		return mapResults(keys, grouped, emptySlice[domain.Record])
	}
}

// States by ProcessID, in board order.
func newStatesBatchFn(repo processRepo) dataloader.BatchFunc[uuid.UUID, []domain.State] {
	return func(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[[]domain.State] {
		tenantID, ok := ctxutil.TenantIDFromCtx(ctx)
		if !ok {
			return errorResults[[]domain.State](len(keys), domain.ErrUnauthorized)
		}

		states, err := repo.ListStatesByProcessIDs(ctx, tenantID, keys)
		if err != nil {
			return errorResults[[]domain.State](len(keys), err)
		}

		grouped := make(map[uuid.UUID][]domain.State, len(keys))
		for _, st := range states {
			grouped[st.ProcessID] = append(grouped[st.ProcessID], st)
		}

		return mapResults(keys, grouped, emptySlice[domain.State])
	}
}

// Field definitions by ProcessID. Callers only pass process ids they have
// already resolved for the tenant.
func newFieldsBatchFn(repo processRepo) dataloader.BatchFunc[uuid.UUID, []domain.FieldDefinition] {
	return func(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[[]domain.FieldDefinition] {
		fields, err := repo.ListFieldsByProcessIDs(ctx, keys)
		if err != nil {
			return errorResults[[]domain.FieldDefinition](len(keys), err)
		}

		grouped := make(map[uuid.UUID][]domain.FieldDefinition, len(keys))
		for _, f := range fields {
			grouped[f.ProcessID] = append(grouped[f.ProcessID], f)
		}

		return mapResults(keys, grouped, emptySlice[domain.FieldDefinition])
	}
}

func errorResults[V any](n int, err error) []*dataloader.Result[V] {
	results := make([]*dataloader.Result[V], n)
	for i := range results {
		results[i] = &dataloader.Result[V]{Error: err}
	}
	return results
}

// mapResults maps grouped results back to key order, using defaultFn for missing keys.
func mapResults[V any](keys []uuid.UUID, grouped map[uuid.UUID]V, defaultFn func() V) []*dataloader.Result[V] {
	results := make([]*dataloader.Result[V], len(keys))
	for i, key := range keys {
		if v, ok := grouped[key]; ok {
			results[i] = &dataloader.Result[V]{Data: v}
		} else {
			results[i] = &dataloader.Result[V]{Data: defaultFn()}
		}
	}
	return results
}

func emptySlice[T any]() []T {
	return []T{}
}
