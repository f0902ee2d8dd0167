package testhelper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedTenant returns a fresh tenant id. Tenants are owned by the identity
// provider, so there is no row to insert; a new id isolates the test's data.
func SeedTenant(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

// QualityReview is the seeded three-column process:
// Backlog(initial) -> Review -> Done(final); Review requires "reviewer".
type QualityReview struct {
	TenantID uuid.UUID
	Process  domain.Process
	Backlog  domain.State
	Review   domain.State
	Done     domain.State
}

// SeedQualityReview inserts the QualityReview process for tenantID.
func SeedQualityReview(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID) QualityReview {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := domain.Process{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "Quality Review " + uniqueSuffix(),
		Category:  "quality",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	mustExec(t, pool, `INSERT INTO processes (id, tenant_id, name, category, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.TenantID, p.Name, p.Category, p.Active, p.CreatedAt, p.UpdatedAt)

	mustExec(t, pool, `INSERT INTO process_fields (process_id, name, type, label, created_at)
		VALUES ($1, 'reviewer', 'text', 'Reviewer', $2)`, p.ID, now)

	mk := func(name string, order int, initial, final bool, required []string) domain.State {
		s := domain.State{
			ID: uuid.New(), ProcessID: p.ID, TenantID: tenantID, Name: name, Order: order,
			IsInitial: initial, IsFinal: final, RequiredFields: required, CreatedAt: now,
		}
		if s.RequiredFields == nil {
			s.RequiredFields = []string{}
		}
		mustExec(t, pool, `INSERT INTO states (id, process_id, tenant_id, name, sort_order, is_initial, is_final, required_fields, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, s.ProcessID, s.TenantID, s.Name, s.Order, s.IsInitial, s.IsFinal, s.RequiredFields, s.CreatedAt)
		return s
	}

	qr := QualityReview{TenantID: tenantID, Process: p}
	qr.Backlog = mk("Backlog", 0, true, false, nil)
	qr.Review = mk("Review", 1, false, false, []string{"reviewer"})
	qr.Done = mk("Done", 2, false, true, nil)

	link := func(from, to *domain.State) {
		mustExec(t, pool, `INSERT INTO state_transitions (process_id, from_state_id, to_state_id) VALUES ($1, $2, $3)`,
			p.ID, from.ID, to.ID)
		from.AllowedNext = append(from.AllowedNext, to.ID)
	}
	link(&qr.Backlog, &qr.Review)
	link(&qr.Review, &qr.Done)

	return qr
}

// SeedRecord inserts an active record at position in stateID together with
// its creation history entry.
func SeedRecord(t *testing.T, pool *pgxpool.Pool, qr QualityReview, stateID uuid.UUID, position float64, data map[string]any) domain.Record {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("testhelper: SeedRecord marshal data: %v", err)
	}

	rec := domain.Record{
		ID:          uuid.New(),
		TenantID:    qr.TenantID,
		ProcessID:   qr.Process.ID,
		StateID:     stateID,
		Title:       "Record " + uniqueSuffix(),
		Priority:    domain.PriorityMedium,
		Data:        data,
		AssigneeIDs: []uuid.UUID{},
		Files:       []string{},
		Tags:        []string{},
		Position:    position,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	mustExec(t, pool, `INSERT INTO records (id, tenant_id, process_id, state_id, title, priority, data, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.TenantID, rec.ProcessID, rec.StateID, rec.Title, string(rec.Priority), raw, rec.Position, rec.CreatedAt, rec.UpdatedAt)

	actor := uuid.New()
	mustExec(t, pool, `INSERT INTO record_history (record_id, seq, tenant_id, to_state_id, actor_id, created_at)
		VALUES ($1, 1, $2, $3, $4, $5)`,
		rec.ID, rec.TenantID, stateID, actor, now)
	rec.History = []domain.HistoryEntry{{RecordID: rec.ID, Seq: 1, ToStateID: stateID, ActorID: actor, CreatedAt: now}}

	return rec
}

func mustExec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("testhelper: exec %q: %v", sql, err)
	}
}
