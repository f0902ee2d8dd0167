// Package process implements the process definition repository using
// PostgreSQL: processes, their states, the state_transitions relation and
// the per-process field schema.
package process

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/qms-backend/internal/adapter/postgres"
	"github.com/heartmarshall/qms-backend/internal/domain"
)

// Repo provides process definition persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new process repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var processColumns = []string{"id", "tenant_id", "name", "category", "active", "created_at", "updated_at"}

// Transitions are aggregated per state so a graph loads in one round trip.
const listStatesSQL = `
SELECT
    s.id, s.process_id, s.tenant_id, s.name, s.color, s.sort_order, s.is_initial, s.is_final,
    s.required_fields, s.created_at,
    COALESCE(array_agg(t.to_state_id) FILTER (WHERE t.to_state_id IS NOT NULL), '{}') AS allowed_next
FROM states s
LEFT JOIN state_transitions t ON t.from_state_id = s.id
WHERE s.tenant_id = $1 AND s.process_id = ANY($2::uuid[])
GROUP BY s.id
ORDER BY s.process_id, s.sort_order`

const upsertFieldSQL = `
INSERT INTO process_fields (process_id, name, type, label, options, pattern, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (process_id, name) DO UPDATE
SET type = EXCLUDED.type, label = EXCLUDED.label, options = EXCLUDED.options, pattern = EXCLUDED.pattern`

// ---------------------------------------------------------------------------
// Processes
// ---------------------------------------------------------------------------

// GetByID returns a process scoped to the tenant.
// Returns domain.ErrNotFound if the process does not exist or belongs to another tenant.
func (r *Repo) GetByID(ctx context.Context, tenantID, processID uuid.UUID) (*domain.Process, error) {
	return r.get(ctx, tenantID, processID, "")
}

// Lock returns the process with its row locked, serializing configuration
// changes to the same process.
func (r *Repo) Lock(ctx context.Context, tenantID, processID uuid.UUID) (*domain.Process, error) {
	return r.get(ctx, tenantID, processID, "FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, tenantID, processID uuid.UUID, suffix string) (*domain.Process, error) {
	query := postgres.Builder().
		Select(processColumns...).
		From("processes").
		Where(squirrel.Eq{"id": processID, "tenant_id": tenantID})
	if suffix != "" {
		query = query.Suffix(suffix)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("process build query: %w", err)
	}

	var p domain.Process
	err = postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sql, args...).
		Scan(&p.ID, &p.TenantID, &p.Name, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err, "process", processID)
	}
	return &p, nil
}

// GetByName returns a process of the tenant by its unique name.
func (r *Repo) GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Process, error) {
	sql, args, err := postgres.Builder().
		Select(processColumns...).
		From("processes").
		Where(squirrel.Eq{"tenant_id": tenantID, "name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("process build query: %w", err)
	}

	var p domain.Process
	err = postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sql, args...).
		Scan(&p.ID, &p.TenantID, &p.Name, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err, "process", uuid.Nil)
	}
	return &p, nil
}

// List returns the tenant's processes ordered by name.
func (r *Repo) List(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]domain.Process, error) {
	where := squirrel.Eq{"tenant_id": tenantID}
	if !includeInactive {
		where["active"] = true
	}

	sql, args, err := postgres.Builder().
		Select(processColumns...).
		From("processes").
		Where(where).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("process build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "process", uuid.Nil)
	}
	defer rows.Close()

	processes := make([]domain.Process, 0)
	for rows.Next() {
		var p domain.Process
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		processes = append(processes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "process", uuid.Nil)
	}

	return processes, nil
}

// Create inserts a process row.
func (r *Repo) Create(ctx context.Context, p domain.Process) error {
	sql, args, err := postgres.Builder().
		Insert("processes").
		Columns(processColumns...).
		Values(p.ID, p.TenantID, p.Name, p.Category, p.Active, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("process build insert: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "process", p.ID)
	}
	return nil
}

// Update writes the mutable process attributes.
func (r *Repo) Update(ctx context.Context, p domain.Process) error {
	sql, args, err := postgres.Builder().
		Update("processes").
		Set("name", p.Name).
		Set("category", p.Category).
		Set("active", p.Active).
		Set("updated_at", p.UpdatedAt).
		Where(squirrel.Eq{"id": p.ID, "tenant_id": p.TenantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("process build update: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "process", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("process %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// States and transitions
// ---------------------------------------------------------------------------

// ListStates returns the states of a process ordered by sort_order with
// their allowed-next sets.
func (r *Repo) ListStates(ctx context.Context, tenantID, processID uuid.UUID) ([]domain.State, error) {
	return r.ListStatesByProcessIDs(ctx, tenantID, []uuid.UUID{processID})
}

// ListStatesByProcessIDs returns the states of several processes ordered by
// process then sort_order.
func (r *Repo) ListStatesByProcessIDs(ctx context.Context, tenantID uuid.UUID, processIDs []uuid.UUID) ([]domain.State, error) {
	if len(processIDs) == 0 {
		return []domain.State{}, nil
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, listStatesSQL, tenantID, processIDs)
	if err != nil {
		return nil, postgres.MapError(err, "process", uuid.Nil)
	}
	defer rows.Close()

	states := make([]domain.State, 0)
	for rows.Next() {
		var s domain.State
		err := rows.Scan(
			&s.ID, &s.ProcessID, &s.TenantID, &s.Name, &s.Color, &s.Order, &s.IsInitial, &s.IsFinal,
			&s.RequiredFields, &s.CreatedAt, &s.AllowedNext,
		)
		if err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		slices.SortFunc(s.AllowedNext, func(a, b uuid.UUID) int {
			return slices.Compare(a[:], b[:])
		})
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "process", uuid.Nil)
	}

	return states, nil
}

// CreateState inserts a state row. Transitions are written with SetTransitions.
func (r *Repo) CreateState(ctx context.Context, s domain.State) error {
	sql, args, err := postgres.Builder().
		Insert("states").
		Columns("id", "process_id", "tenant_id", "name", "color", "sort_order", "is_initial", "is_final", "required_fields", "created_at").
		Values(s.ID, s.ProcessID, s.TenantID, s.Name, s.Color, s.Order, s.IsInitial, s.IsFinal, nonNil(s.RequiredFields), s.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("state build insert: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "state", s.ID)
	}
	return nil
}

// UpdateState writes the editable attributes of a state. Order is changed
// only through UpdateOrders.
func (r *Repo) UpdateState(ctx context.Context, s domain.State) error {
	sql, args, err := postgres.Builder().
		Update("states").
		Set("name", s.Name).
		Set("color", s.Color).
		Set("is_initial", s.IsInitial).
		Set("is_final", s.IsFinal).
		Set("required_fields", nonNil(s.RequiredFields)).
		Where(squirrel.Eq{"id": s.ID, "tenant_id": s.TenantID, "process_id": s.ProcessID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("state build update: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "state", s.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("state %s: %w", s.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteState removes a state. Transitions from and to it are removed by cascade.
func (r *Repo) DeleteState(ctx context.Context, tenantID, stateID uuid.UUID) error {
	sql, args, err := postgres.Builder().
		Delete("states").
		Where(squirrel.Eq{"id": stateID, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("state build delete: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "state", stateID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("state %s: %w", stateID, domain.ErrNotFound)
	}
	return nil
}

// SetTransitions replaces the allowed-next set of one state.
func (r *Repo) SetTransitions(ctx context.Context, processID, fromStateID uuid.UUID, to []uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder().
		Delete("state_transitions").
		Where(squirrel.Eq{"from_state_id": fromStateID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("transition build delete: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "state", fromStateID)
	}

	if len(to) == 0 {
		return nil
	}

	insert := postgres.Builder().
		Insert("state_transitions").
		Columns("process_id", "from_state_id", "to_state_id").
		Suffix("ON CONFLICT (from_state_id, to_state_id) DO NOTHING")
	for _, next := range to {
		insert = insert.Values(processID, fromStateID, next)
	}

	sql, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("transition build insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "state", fromStateID)
	}
	return nil
}

// UpdateOrders assigns sort_order = index for every id in orderedIDs.
// The unique order constraint is deferred, so sibling swaps inside one
// transaction do not collide.
func (r *Repo) UpdateOrders(ctx context.Context, tenantID, processID uuid.UUID, orderedIDs []uuid.UUID) error {
	batch := &pgx.Batch{}
	for i, id := range orderedIDs {
		batch.Queue(
			`UPDATE states SET sort_order = $1 WHERE id = $2 AND process_id = $3 AND tenant_id = $4`,
			i, id, processID, tenantID,
		)
	}

	br := postgres.QuerierFromCtx(ctx, r.pool).SendBatch(ctx, batch)
	defer br.Close()

	for _, id := range orderedIDs {
		tag, err := br.Exec()
		if err != nil {
			return postgres.MapError(err, "state", id)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("state %s: %w", id, domain.ErrNotFound)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Field schema
// ---------------------------------------------------------------------------

// ListFields returns the field schema of a process.
func (r *Repo) ListFields(ctx context.Context, processID uuid.UUID) (domain.FieldSchema, error) {
	fields, err := r.ListFieldsByProcessIDs(ctx, []uuid.UUID{processID})
	if err != nil {
		return nil, err
	}
	schema := make(domain.FieldSchema, len(fields))
	for _, f := range fields {
		schema[f.Name] = f
	}
	return schema, nil
}

// ListFieldsByProcessIDs returns the field definitions of several processes.
func (r *Repo) ListFieldsByProcessIDs(ctx context.Context, processIDs []uuid.UUID) ([]domain.FieldDefinition, error) {
	if len(processIDs) == 0 {
		return []domain.FieldDefinition{}, nil
	}

	sql, args, err := postgres.Builder().
		Select("process_id", "name", "type", "label", "options", "pattern", "created_at").
		From("process_fields").
		Where(squirrel.Eq{"process_id": processIDs}).
		OrderBy("process_id", "name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("field build query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, postgres.MapError(err, "process_field", uuid.Nil)
	}
	defer rows.Close()

	fields := make([]domain.FieldDefinition, 0)
	for rows.Next() {
		var (
			f   domain.FieldDefinition
			typ string
		)
		if err := rows.Scan(&f.ProcessID, &f.Name, &typ, &f.Label, &f.Options, &f.Pattern, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		f.Type = domain.FieldType(typ)
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "process_field", uuid.Nil)
	}

	return fields, nil
}

// UpsertField creates or replaces a field definition.
func (r *Repo) UpsertField(ctx context.Context, f domain.FieldDefinition) error {
	_, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, upsertFieldSQL,
		f.ProcessID, f.Name, string(f.Type), f.Label, nonNil(f.Options), f.Pattern, f.CreatedAt,
	)
	if err != nil {
		return postgres.MapError(err, "process_field", f.ProcessID)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
