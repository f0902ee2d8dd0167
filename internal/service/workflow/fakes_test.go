package workflow

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// memRecords is an in-memory recordRepo. Together with memTx it rolls back
// every write of a failed transaction.
type memRecords struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.Record
	history map[uuid.UUID][]domain.HistoryEntry

	placements int
	renumbers  int
}

func newMemRecords() *memRecords {
	return &memRecords{
		records: make(map[uuid.UUID]domain.Record),
		history: make(map[uuid.UUID][]domain.HistoryEntry),
	}
}

// add stores rec with a creation history entry.
func (m *memRecords) add(rec domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	m.history[rec.ID] = []domain.HistoryEntry{{RecordID: rec.ID, Seq: 1, ToStateID: rec.StateID}}
}

func (m *memRecords) setData(id uuid.UUID, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	rec.Data = data
	m.records[id] = rec
}

func (m *memRecords) get(tenantID, id uuid.UUID) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.TenantID != tenantID || rec.IsArchived() {
		return nil, domain.ErrNotFound
	}
	rec.Data = maps.Clone(rec.Data)
	return &rec, nil
}

func (m *memRecords) GetByID(_ context.Context, tenantID, id uuid.UUID) (*domain.Record, error) {
	return m.get(tenantID, id)
}

func (m *memRecords) GetForUpdate(_ context.Context, tenantID, id uuid.UUID) (*domain.Record, error) {
	return m.get(tenantID, id)
}

func (m *memRecords) ListSlots(_ context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]domain.Slot, 0)
	for _, rec := range m.records {
		if rec.TenantID == tenantID && rec.ProcessID == processID && rec.StateID == stateID && !rec.IsArchived() {
			slots = append(slots, domain.Slot{ID: rec.ID, Position: rec.Position})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Position < slots[j].Position })
	return slots, nil
}

func (m *memRecords) ListHistory(_ context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history[recordID]), nil
}

func (m *memRecords) UpdatePlacement(_ context.Context, tenantID, id, stateID uuid.UUID, position float64, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.TenantID != tenantID {
		return domain.ErrNotFound
	}
	rec.StateID = stateID
	rec.Position = position
	rec.UpdatedAt = updatedAt
	m.records[id] = rec
	m.placements++
	return nil
}

func (m *memRecords) Renumber(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID, step float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		rec := m.records[id]
		rec.Position = float64(i+1) * step
		m.records[id] = rec
	}
	m.renumbers++
	return nil
}

func (m *memRecords) AppendHistory(_ context.Context, tenantID uuid.UUID, e domain.HistoryEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Seq = len(m.history[e.RecordID]) + 1
	m.history[e.RecordID] = append(m.history[e.RecordID], e)
	return e.Seq, nil
}

// column returns the records of a state ordered by position.
func (m *memRecords) column(stateID uuid.UUID) []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Record
	for _, rec := range m.records {
		if rec.StateID == stateID && !rec.IsArchived() {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

type snapshot struct {
	records map[uuid.UUID]domain.Record
	history map[uuid.UUID][]domain.HistoryEntry
}

func (m *memRecords) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := make(map[uuid.UUID][]domain.HistoryEntry, len(m.history))
	for k, v := range m.history {
		h[k] = slices.Clone(v)
	}
	return snapshot{records: maps.Clone(m.records), history: h}
}

func (m *memRecords) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = s.records
	m.history = s.history
}

// memTx commits or rolls back memRecords writes. The first failCommits
// commits fail with domain.ErrConflict.
type memTx struct {
	store       *memRecords
	failCommits int
	calls       int
}

func (t *memTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	snap := t.store.snapshot()
	err := fn(ctx)
	if err == nil && t.failCommits > 0 {
		t.failCommits--
		err = domain.ErrConflict
	}
	if err != nil {
		t.store.restore(snap)
	}
	return err
}

type staticGraphs struct {
	graph *domain.ProcessGraph
}

func (g staticGraphs) GetProcessGraph(_ context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error) {
	if tenantID != g.graph.Process.TenantID || processID != g.graph.ProcessID() {
		return nil, domain.ErrNotFound
	}
	return g.graph, nil
}

type countingObserver struct {
	mu        sync.Mutex
	outcomes  []string
	renumbers int
	retries   int
}

func (o *countingObserver) MoveFinished(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *countingObserver) ColumnRenumbered() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.renumbers++
}

func (o *countingObserver) ConflictRetried() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.MoveEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.MoveEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}
