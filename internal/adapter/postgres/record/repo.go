// Package record implements the Record repository using PostgreSQL.
// It owns the records and record_history tables. Ordering keys are written
// only through UpdatePlacement, Renumber and Archive.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/qms-backend/internal/adapter/postgres"
	"github.com/heartmarshall/qms-backend/internal/domain"
)

// Repo provides record persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new record repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var columns = []string{
	"id", "tenant_id", "process_id", "state_id", "parent_id", "level", "title",
	"responsible_id", "assignee_ids", "priority", "data", "files", "progress", "tags",
	"position", "active", "archived_at", "created_at", "updated_at",
}

const appendHistorySQL = `
INSERT INTO record_history (record_id, seq, tenant_id, from_state_id, to_state_id, actor_id, comment, created_at)
SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6, $7
FROM record_history
WHERE record_id = $1
RETURNING seq`

const listHistorySQL = `
SELECT record_id, seq, from_state_id, to_state_id, actor_id, comment, created_at
FROM record_history
WHERE record_id = $1 AND tenant_id = $2
ORDER BY seq`

const maxPositionSQL = `
SELECT MAX(position)
FROM records
WHERE tenant_id = $1 AND process_id = $2 AND state_id = $3 AND archived_at IS NULL`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns an active (non-archived) record scoped to the tenant.
// Returns domain.ErrNotFound if the record is absent, archived or owned by another tenant.
func (r *Repo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error) {
	return r.get(ctx, tenantID, id, "")
}

// GetForUpdate is GetByID with a row lock held until the surrounding transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error) {
	return r.get(ctx, tenantID, id, "FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, tenantID, id uuid.UUID, suffix string) (*domain.Record, error) {
	query := postgres.Builder().
		Select(columns...).
		From("records").
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID, "archived_at": nil})
	if suffix != "" {
		query = query.Suffix(suffix)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("record build query: %w", err)
	}

	rec, err := scanRecord(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "record", id)
	}
	return rec, nil
}

// ListByState returns active records of one column ordered by position ascending.
func (r *Repo) ListByState(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Record, error) {
	query := postgres.Builder().
		Select(columns...).
		From("records").
		Where(squirrel.Eq{"tenant_id": tenantID, "process_id": processID, "state_id": stateID, "archived_at": nil}).
		OrderBy("position ASC")

	return r.list(ctx, query)
}

// ListByStateIDs returns active records of several columns, ordered by
// state then position. Used by the board dataloader.
func (r *Repo) ListByStateIDs(ctx context.Context, tenantID uuid.UUID, stateIDs []uuid.UUID) ([]domain.Record, error) {
	if len(stateIDs) == 0 {
		return []domain.Record{}, nil
	}
	query := postgres.Builder().
		Select(columns...).
		From("records").
		Where(squirrel.Eq{"tenant_id": tenantID, "state_id": stateIDs, "archived_at": nil}).
		OrderBy("state_id", "position ASC")

	return r.list(ctx, query)
}

// ListChildren returns active direct sub-records of parentID ordered by creation.
func (r *Repo) ListChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]domain.Record, error) {
	return r.ListChildrenByParentIDs(ctx, tenantID, []uuid.UUID{parentID})
}

// ListChildrenByParentIDs returns active sub-records for several parents.
func (r *Repo) ListChildrenByParentIDs(ctx context.Context, tenantID uuid.UUID, parentIDs []uuid.UUID) ([]domain.Record, error) {
	if len(parentIDs) == 0 {
		return []domain.Record{}, nil
	}
	query := postgres.Builder().
		Select(columns...).
		From("records").
		Where(squirrel.Eq{"tenant_id": tenantID, "parent_id": parentIDs, "archived_at": nil}).
		OrderBy("created_at ASC", "id ASC")

	return r.list(ctx, query)
}

// ListSlots returns the ordering keys of a column in ascending order.
// It is the neighbour read of a move and is never cached.
func (r *Repo) ListSlots(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Slot, error) {
	query := postgres.Builder().
		Select("id", "position").
		From("records").
		Where(squirrel.Eq{"tenant_id": tenantID, "process_id": processID, "state_id": stateID, "archived_at": nil}).
		OrderBy("position ASC")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("record build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "state", stateID)
	}
	defer rows.Close()

	slots := make([]domain.Slot, 0)
	for rows.Next() {
		var s domain.Slot
		if err := rows.Scan(&s.ID, &s.Position); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "state", stateID)
	}

	return slots, nil
}

// MaxPosition returns the highest position in a column; ok is false for an empty column.
func (r *Repo) MaxPosition(ctx context.Context, tenantID, processID, stateID uuid.UUID) (pos float64, ok bool, err error) {
	var top *float64
	err = postgres.QuerierFromCtx(ctx, r.pool).
		QueryRow(ctx, maxPositionSQL, tenantID, processID, stateID).
		Scan(&top)
	if err != nil {
		return 0, false, postgres.MapError(err, "state", stateID)
	}
	if top == nil {
		return 0, false, nil
	}
	return *top, true, nil
}

// CountByState returns how many records, archived included, reference a state.
func (r *Repo) CountByState(ctx context.Context, tenantID, stateID uuid.UUID) (int, error) {
	sql, args, err := postgres.Builder().
		Select("count(*)").
		From("records").
		Where(squirrel.Eq{"tenant_id": tenantID, "state_id": stateID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("record build query: %w", err)
	}

	var n int
	if err := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, "state", stateID)
	}
	return n, nil
}

// ListHistory returns the full history of a record ordered by sequence.
func (r *Repo) ListHistory(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error) {
	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, listHistorySQL, recordID, tenantID)
	if err != nil {
		return nil, postgres.MapError(err, "record", recordID)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.RecordID, &e.Seq, &e.FromStateID, &e.ToStateID, &e.ActorID, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "record", recordID)
	}

	return entries, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new record. Position must already be computed.
func (r *Repo) Create(ctx context.Context, rec domain.Record) error {
	data, err := marshalData(rec.Data)
	if err != nil {
		return err
	}

	sql, args, err := postgres.Builder().
		Insert("records").
		Columns(columns...).
		Values(
			rec.ID, rec.TenantID, rec.ProcessID, rec.StateID, rec.ParentID, rec.Level, rec.Title,
			rec.ResponsibleID, uuidStrings(rec.AssigneeIDs), string(rec.Priority), data, nonNil(rec.Files),
			rec.Progress, nonNil(rec.Tags), rec.Position, rec.Active, rec.ArchivedAt, rec.CreatedAt, rec.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("record build insert: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "record", rec.ID)
	}
	return nil
}

// UpdateFields writes the mutable non-workflow attributes of a record.
// state_id and position are left untouched.
func (r *Repo) UpdateFields(ctx context.Context, rec domain.Record) error {
	data, err := marshalData(rec.Data)
	if err != nil {
		return err
	}

	sql, args, err := postgres.Builder().
		Update("records").
		Set("title", rec.Title).
		Set("responsible_id", rec.ResponsibleID).
		Set("assignee_ids", uuidStrings(rec.AssigneeIDs)).
		Set("priority", string(rec.Priority)).
		Set("data", data).
		Set("files", nonNil(rec.Files)).
		Set("progress", rec.Progress).
		Set("tags", nonNil(rec.Tags)).
		Set("updated_at", rec.UpdatedAt).
		Where(squirrel.Eq{"id": rec.ID, "tenant_id": rec.TenantID, "archived_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("record build update: %w", err)
	}

	return r.execOne(ctx, rec.ID, sql, args)
}

// UpdatePlacement sets the state and position of a record.
func (r *Repo) UpdatePlacement(ctx context.Context, tenantID, id, stateID uuid.UUID, position float64, updatedAt time.Time) error {
	sql, args, err := postgres.Builder().
		Update("records").
		Set("state_id", stateID).
		Set("position", position).
		Set("updated_at", updatedAt).
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID, "archived_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("record build update: %w", err)
	}

	return r.execOne(ctx, id, sql, args)
}

// Renumber assigns step, 2*step, ... to ids in the given order. All ids must
// belong to the column; the deferred unique constraint tolerates the
// intermediate collisions.
func (r *Repo) Renumber(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, step float64) error {
	if len(ids) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(
			`UPDATE records SET position = $1 WHERE id = $2 AND tenant_id = $3 AND archived_at IS NULL`,
			float64(i+1)*step, id, tenantID,
		)
	}

	br := postgres.QuerierFromCtx(ctx, r.pool).SendBatch(ctx, batch)
	defer br.Close()

	for _, id := range ids {
		if _, err := br.Exec(); err != nil {
			return postgres.MapError(err, "record", id)
		}
	}
	return nil
}

// Archive soft-deletes a record and releases its ordering key.
func (r *Repo) Archive(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	sql, args, err := postgres.Builder().
		Update("records").
		Set("archived_at", at).
		Set("active", false).
		Set("position", nil).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID, "archived_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("record build archive: %w", err)
	}

	return r.execOne(ctx, id, sql, args)
}

// AppendHistory appends an entry and returns its sequence number. Callers
// hold the record row lock, so sequence numbers never race.
func (r *Repo) AppendHistory(ctx context.Context, tenantID uuid.UUID, e domain.HistoryEntry) (int, error) {
	var seq int
	err := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, appendHistorySQL,
		e.RecordID, tenantID, e.FromStateID, e.ToStateID, e.ActorID, e.Comment, e.CreatedAt,
	).Scan(&seq)
	if err != nil {
		return 0, postgres.MapError(err, "record_history", e.RecordID)
	}
	return seq, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (r *Repo) execOne(ctx context.Context, id uuid.UUID, sql string, args []any) error {
	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "record", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repo) list(ctx context.Context, query squirrel.SelectBuilder) ([]domain.Record, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("record build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "record", uuid.Nil)
	}
	defer rows.Close()

	records := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "record", uuid.Nil)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	var (
		rec       domain.Record
		assignees []string
		priority  string
		data      []byte
		position  *float64
	)

	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.ProcessID, &rec.StateID, &rec.ParentID, &rec.Level, &rec.Title,
		&rec.ResponsibleID, &assignees, &priority, &data, &rec.Files, &rec.Progress, &rec.Tags,
		&position, &rec.Active, &rec.ArchivedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Priority = domain.Priority(priority)
	if position != nil {
		rec.Position = *position
	}

	rec.AssigneeIDs = make([]uuid.UUID, 0, len(assignees))
	for _, s := range assignees {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("record %s assignee %q: %w", rec.ID, s, err)
		}
		rec.AssigneeIDs = append(rec.AssigneeIDs, id)
	}

	rec.Data = make(map[string]any)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("record %s unmarshal data: %w", rec.ID, err)
		}
	}

	return &rec, nil
}

func marshalData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("record marshal data: %w", err)
	}
	return b, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
