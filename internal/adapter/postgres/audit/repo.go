// Package audit implements the audit log repository using PostgreSQL.
// Records are append-only and written in the same transaction as the change.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/qms-backend/internal/adapter/postgres"
	"github.com/heartmarshall/qms-backend/internal/domain"
)

// Repo provides audit log persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new audit repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var columns = []string{"id", "tenant_id", "actor_id", "entity_type", "entity_id", "action", "changes", "created_at"}

// Log appends an audit record.
func (r *Repo) Log(ctx context.Context, rec domain.AuditRecord) error {
	var changes []byte
	if rec.Changes != nil {
		b, err := json.Marshal(rec.Changes)
		if err != nil {
			return fmt.Errorf("audit_record marshal changes: %w", err)
		}
		changes = b
	}

	sql, args, err := postgres.Builder().
		Insert("audit_log").
		Columns(columns...).
		Values(rec.ID, rec.TenantID, rec.ActorID, string(rec.EntityType), rec.EntityID, string(rec.Action), changes, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("audit_record build insert: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "audit_record", rec.ID)
	}
	return nil
}

// GetByEntity returns the change log of one entity, newest first.
func (r *Repo) GetByEntity(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	sql, args, err := postgres.Builder().
		Select(columns...).
		From("audit_log").
		Where(squirrel.Eq{"tenant_id": tenantID, "entity_type": string(entityType), "entity_id": entityID}).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("audit_record build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "audit_record", entityID)
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var (
			rec        domain.AuditRecord
			entityType string
			action     string
			changes    []byte
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.ActorID, &entityType, &rec.EntityID, &action, &changes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit_record: %w", err)
		}
		rec.EntityType = domain.EntityType(entityType)
		rec.Action = domain.AuditAction(action)
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &rec.Changes); err != nil {
				return nil, fmt.Errorf("audit_record %s unmarshal changes: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "audit_record", entityID)
	}

	return records, nil
}
