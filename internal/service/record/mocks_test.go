package record

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// recordRepoMock is a moq-style mock of recordRepo. A nil func panics when called.
type recordRepoMock struct {
	GetByIDFunc       func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error)
	GetForUpdateFunc  func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error)
	ListByStateFunc   func(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Record, error)
	ListChildrenFunc  func(ctx context.Context, tenantID, parentID uuid.UUID) ([]domain.Record, error)
	MaxPositionFunc   func(ctx context.Context, tenantID, processID, stateID uuid.UUID) (float64, bool, error)
	ListHistoryFunc   func(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error)
	CreateFunc        func(ctx context.Context, rec domain.Record) error
	UpdateFieldsFunc  func(ctx context.Context, rec domain.Record) error
	ArchiveFunc       func(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error
	AppendHistoryFunc func(ctx context.Context, tenantID uuid.UUID, e domain.HistoryEntry) (int, error)

	mu    sync.Mutex
	calls struct {
		Create        []domain.Record
		UpdateFields  []domain.Record
		Archive       []uuid.UUID
		AppendHistory []domain.HistoryEntry
	}
}

func (m *recordRepoMock) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error) {
	return m.GetByIDFunc(ctx, tenantID, id)
}

func (m *recordRepoMock) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error) {
	return m.GetForUpdateFunc(ctx, tenantID, id)
}

func (m *recordRepoMock) ListByState(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Record, error) {
	return m.ListByStateFunc(ctx, tenantID, processID, stateID)
}

func (m *recordRepoMock) ListChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]domain.Record, error) {
	return m.ListChildrenFunc(ctx, tenantID, parentID)
}

func (m *recordRepoMock) MaxPosition(ctx context.Context, tenantID, processID, stateID uuid.UUID) (float64, bool, error) {
	return m.MaxPositionFunc(ctx, tenantID, processID, stateID)
}

func (m *recordRepoMock) ListHistory(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error) {
	return m.ListHistoryFunc(ctx, tenantID, recordID)
}

func (m *recordRepoMock) Create(ctx context.Context, rec domain.Record) error {
	m.mu.Lock()
	m.calls.Create = append(m.calls.Create, rec)
	m.mu.Unlock()
	return m.CreateFunc(ctx, rec)
}

func (m *recordRepoMock) UpdateFields(ctx context.Context, rec domain.Record) error {
	m.mu.Lock()
	m.calls.UpdateFields = append(m.calls.UpdateFields, rec)
	m.mu.Unlock()
	return m.UpdateFieldsFunc(ctx, rec)
}

func (m *recordRepoMock) Archive(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	m.calls.Archive = append(m.calls.Archive, id)
	m.mu.Unlock()
	return m.ArchiveFunc(ctx, tenantID, id, at)
}

func (m *recordRepoMock) AppendHistory(ctx context.Context, tenantID uuid.UUID, e domain.HistoryEntry) (int, error) {
	m.mu.Lock()
	m.calls.AppendHistory = append(m.calls.AppendHistory, e)
	m.mu.Unlock()
	return m.AppendHistoryFunc(ctx, tenantID, e)
}

func (m *recordRepoMock) CreateCalls() []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.Create
}

func (m *recordRepoMock) UpdateFieldsCalls() []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.UpdateFields
}

func (m *recordRepoMock) ArchiveCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.Archive
}

func (m *recordRepoMock) AppendHistoryCalls() []domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.AppendHistory
}

type graphSourceMock struct {
	GetProcessGraphFunc func(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error)
}

func (m *graphSourceMock) GetProcessGraph(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error) {
	return m.GetProcessGraphFunc(ctx, tenantID, processID)
}

type auditLoggerMock struct {
	LogFunc func(ctx context.Context, record domain.AuditRecord) error

	mu    sync.Mutex
	calls []domain.AuditRecord
}

func (m *auditLoggerMock) Log(ctx context.Context, record domain.AuditRecord) error {
	m.mu.Lock()
	m.calls = append(m.calls, record)
	m.mu.Unlock()
	return m.LogFunc(ctx, record)
}

func (m *auditLoggerMock) LogCalls() []domain.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type txManagerMock struct {
	RunInTxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

	mu    sync.Mutex
	calls int
}

func (m *txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.RunInTxFunc(ctx, fn)
}

func (m *txManagerMock) RunInTxCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
