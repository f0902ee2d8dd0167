package process

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// processRepoMock is a moq-style mock of processRepo. A nil func panics when called.
type processRepoMock struct {
	GetByIDFunc        func(ctx context.Context, tenantID, processID uuid.UUID) (*domain.Process, error)
	LockFunc           func(ctx context.Context, tenantID, processID uuid.UUID) (*domain.Process, error)
	GetByNameFunc      func(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Process, error)
	ListFunc           func(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]domain.Process, error)
	CreateFunc         func(ctx context.Context, p domain.Process) error
	UpdateFunc         func(ctx context.Context, p domain.Process) error
	ListStatesFunc     func(ctx context.Context, tenantID, processID uuid.UUID) ([]domain.State, error)
	CreateStateFunc    func(ctx context.Context, s domain.State) error
	UpdateStateFunc    func(ctx context.Context, s domain.State) error
	DeleteStateFunc    func(ctx context.Context, tenantID, stateID uuid.UUID) error
	SetTransitionsFunc func(ctx context.Context, processID, fromStateID uuid.UUID, to []uuid.UUID) error
	UpdateOrdersFunc   func(ctx context.Context, tenantID, processID uuid.UUID, orderedIDs []uuid.UUID) error
	ListFieldsFunc     func(ctx context.Context, processID uuid.UUID) (domain.FieldSchema, error)
	UpsertFieldFunc    func(ctx context.Context, f domain.FieldDefinition) error

	mu    sync.Mutex
	calls struct {
		Create         []domain.Process
		Update         []domain.Process
		CreateState    []domain.State
		UpdateState    []domain.State
		DeleteState    []uuid.UUID
		SetTransitions []transitionsCall
		UpdateOrders   [][]uuid.UUID
		UpsertField    []domain.FieldDefinition
	}
}

type transitionsCall struct {
	From uuid.UUID
	To   []uuid.UUID
}

func (m *processRepoMock) GetByID(ctx context.Context, tenantID, processID uuid.UUID) (*domain.Process, error) {
	return m.GetByIDFunc(ctx, tenantID, processID)
}

func (m *processRepoMock) Lock(ctx context.Context, tenantID, processID uuid.UUID) (*domain.Process, error) {
	return m.LockFunc(ctx, tenantID, processID)
}

func (m *processRepoMock) GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Process, error) {
	return m.GetByNameFunc(ctx, tenantID, name)
}

func (m *processRepoMock) List(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]domain.Process, error) {
	return m.ListFunc(ctx, tenantID, includeInactive)
}

func (m *processRepoMock) Create(ctx context.Context, p domain.Process) error {
	m.mu.Lock()
	m.calls.Create = append(m.calls.Create, p)
	m.mu.Unlock()
	return m.CreateFunc(ctx, p)
}

func (m *processRepoMock) Update(ctx context.Context, p domain.Process) error {
	m.mu.Lock()
	m.calls.Update = append(m.calls.Update, p)
	m.mu.Unlock()
	return m.UpdateFunc(ctx, p)
}

func (m *processRepoMock) ListStates(ctx context.Context, tenantID, processID uuid.UUID) ([]domain.State, error) {
	return m.ListStatesFunc(ctx, tenantID, processID)
}

func (m *processRepoMock) CreateState(ctx context.Context, s domain.State) error {
	m.mu.Lock()
	m.calls.CreateState = append(m.calls.CreateState, s)
	m.mu.Unlock()
	return m.CreateStateFunc(ctx, s)
}

func (m *processRepoMock) UpdateState(ctx context.Context, s domain.State) error {
	m.mu.Lock()
	m.calls.UpdateState = append(m.calls.UpdateState, s)
	m.mu.Unlock()
	return m.UpdateStateFunc(ctx, s)
}

func (m *processRepoMock) DeleteState(ctx context.Context, tenantID, stateID uuid.UUID) error {
	m.mu.Lock()
	m.calls.DeleteState = append(m.calls.DeleteState, stateID)
	m.mu.Unlock()
	return m.DeleteStateFunc(ctx, tenantID, stateID)
}

func (m *processRepoMock) SetTransitions(ctx context.Context, processID, fromStateID uuid.UUID, to []uuid.UUID) error {
	m.mu.Lock()
	m.calls.SetTransitions = append(m.calls.SetTransitions, transitionsCall{From: fromStateID, To: to})
	m.mu.Unlock()
	return m.SetTransitionsFunc(ctx, processID, fromStateID, to)
}

func (m *processRepoMock) UpdateOrders(ctx context.Context, tenantID, processID uuid.UUID, orderedIDs []uuid.UUID) error {
	m.mu.Lock()
	m.calls.UpdateOrders = append(m.calls.UpdateOrders, orderedIDs)
	m.mu.Unlock()
	return m.UpdateOrdersFunc(ctx, tenantID, processID, orderedIDs)
}

func (m *processRepoMock) ListFields(ctx context.Context, processID uuid.UUID) (domain.FieldSchema, error) {
	return m.ListFieldsFunc(ctx, processID)
}

func (m *processRepoMock) UpsertField(ctx context.Context, f domain.FieldDefinition) error {
	m.mu.Lock()
	m.calls.UpsertField = append(m.calls.UpsertField, f)
	m.mu.Unlock()
	return m.UpsertFieldFunc(ctx, f)
}

func (m *processRepoMock) CreateCalls() []domain.Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.Create
}

func (m *processRepoMock) UpdateCalls() []domain.Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.Update
}

func (m *processRepoMock) CreateStateCalls() []domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.CreateState
}

func (m *processRepoMock) UpdateStateCalls() []domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.UpdateState
}

func (m *processRepoMock) DeleteStateCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.DeleteState
}

func (m *processRepoMock) SetTransitionsCalls() []transitionsCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.SetTransitions
}

func (m *processRepoMock) UpdateOrdersCalls() [][]uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.UpdateOrders
}

func (m *processRepoMock) UpsertFieldCalls() []domain.FieldDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls.UpsertField
}

type recordCounterMock struct {
	CountByStateFunc func(ctx context.Context, tenantID, stateID uuid.UUID) (int, error)
}

func (m *recordCounterMock) CountByState(ctx context.Context, tenantID, stateID uuid.UUID) (int, error) {
	return m.CountByStateFunc(ctx, tenantID, stateID)
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
}

func (m *txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTxFunc(ctx, fn)
}
