package rest

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/internal/service/process"
	"github.com/heartmarshall/qms-backend/internal/service/record"
	"github.com/heartmarshall/qms-backend/internal/service/workflow"
)

var (
	_ processService = &processServiceMock{}
	_ recordService  = &recordServiceMock{}
	_ mover          = &moverMock{}
	_ eventStreamer  = &eventStreamerMock{}
)

type processServiceMock struct {
	GetProcessGraphFunc   func(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error)
	ListProcessesFunc     func(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]domain.Process, error)
	CreateProcessFunc     func(ctx context.Context, tenantID, actorID uuid.UUID, input process.CreateProcessInput) (*domain.ProcessGraph, error)
	DeactivateProcessFunc func(ctx context.Context, tenantID, actorID, processID uuid.UUID) error
	ReorderStatesFunc     func(ctx context.Context, tenantID, actorID, processID uuid.UUID, ids []uuid.UUID) error
	AddStateFunc          func(ctx context.Context, tenantID, actorID, processID uuid.UUID, input process.StateInput) (*domain.State, error)
	UpdateStateFunc       func(ctx context.Context, tenantID, actorID, processID, stateID uuid.UUID, input process.UpdateStateInput) (*domain.State, error)
	DeleteStateFunc       func(ctx context.Context, tenantID, actorID, processID, stateID uuid.UUID) error
	DefineFieldFunc       func(ctx context.Context, tenantID, actorID, processID uuid.UUID, input process.FieldInput) (*domain.FieldDefinition, error)
}

func (m *processServiceMock) GetProcessGraph(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error) {
	return m.GetProcessGraphFunc(ctx, tenantID, processID)
}

func (m *processServiceMock) ListProcesses(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]domain.Process, error) {
	return m.ListProcessesFunc(ctx, tenantID, includeInactive)
}

func (m *processServiceMock) CreateProcess(ctx context.Context, tenantID, actorID uuid.UUID, input process.CreateProcessInput) (*domain.ProcessGraph, error) {
	return m.CreateProcessFunc(ctx, tenantID, actorID, input)
}

func (m *processServiceMock) DeactivateProcess(ctx context.Context, tenantID, actorID, processID uuid.UUID) error {
	return m.DeactivateProcessFunc(ctx, tenantID, actorID, processID)
}

func (m *processServiceMock) ReorderStates(ctx context.Context, tenantID, actorID, processID uuid.UUID, ids []uuid.UUID) error {
	return m.ReorderStatesFunc(ctx, tenantID, actorID, processID, ids)
}

func (m *processServiceMock) AddState(ctx context.Context, tenantID, actorID, processID uuid.UUID, input process.StateInput) (*domain.State, error) {
	return m.AddStateFunc(ctx, tenantID, actorID, processID, input)
}

func (m *processServiceMock) UpdateState(ctx context.Context, tenantID, actorID, processID, stateID uuid.UUID, input process.UpdateStateInput) (*domain.State, error) {
	return m.UpdateStateFunc(ctx, tenantID, actorID, processID, stateID, input)
}

func (m *processServiceMock) DeleteState(ctx context.Context, tenantID, actorID, processID, stateID uuid.UUID) error {
	return m.DeleteStateFunc(ctx, tenantID, actorID, processID, stateID)
}

func (m *processServiceMock) DefineField(ctx context.Context, tenantID, actorID, processID uuid.UUID, input process.FieldInput) (*domain.FieldDefinition, error) {
	return m.DefineFieldFunc(ctx, tenantID, actorID, processID, input)
}

type recordServiceMock struct {
	GetRecordFunc     func(ctx context.Context, tenantID, recordID uuid.UUID) (*domain.Record, error)
	ListByStateFunc   func(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Record, error)
	ListChildrenFunc  func(ctx context.Context, tenantID, parentID uuid.UUID) ([]domain.Record, error)
	GetHistoryFunc    func(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error)
	CreateRecordFunc  func(ctx context.Context, tenantID, actorID uuid.UUID, input record.CreateRecordInput) (*domain.Record, error)
	UpdateFieldsFunc  func(ctx context.Context, tenantID, actorID, recordID uuid.UUID, input record.UpdateFieldsInput) (*domain.Record, error)
	ArchiveRecordFunc func(ctx context.Context, tenantID, actorID, recordID uuid.UUID) error
}

func (m *recordServiceMock) GetRecord(ctx context.Context, tenantID, recordID uuid.UUID) (*domain.Record, error) {
	return m.GetRecordFunc(ctx, tenantID, recordID)
}

func (m *recordServiceMock) ListByState(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Record, error) {
	return m.ListByStateFunc(ctx, tenantID, processID, stateID)
}

func (m *recordServiceMock) ListChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]domain.Record, error) {
	return m.ListChildrenFunc(ctx, tenantID, parentID)
}

func (m *recordServiceMock) GetHistory(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error) {
	return m.GetHistoryFunc(ctx, tenantID, recordID)
}

func (m *recordServiceMock) CreateRecord(ctx context.Context, tenantID, actorID uuid.UUID, input record.CreateRecordInput) (*domain.Record, error) {
	return m.CreateRecordFunc(ctx, tenantID, actorID, input)
}

func (m *recordServiceMock) UpdateFields(ctx context.Context, tenantID, actorID, recordID uuid.UUID, input record.UpdateFieldsInput) (*domain.Record, error) {
	return m.UpdateFieldsFunc(ctx, tenantID, actorID, recordID, input)
}

func (m *recordServiceMock) ArchiveRecord(ctx context.Context, tenantID, actorID, recordID uuid.UUID) error {
	return m.ArchiveRecordFunc(ctx, tenantID, actorID, recordID)
}

type moverMock struct {
	MoveFunc func(ctx context.Context, tenantID, actorID uuid.UUID, input workflow.MoveInput) (*domain.Record, error)

	mu    sync.Mutex
	calls []workflow.MoveInput
}

func (m *moverMock) Move(ctx context.Context, tenantID, actorID uuid.UUID, input workflow.MoveInput) (*domain.Record, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()
	return m.MoveFunc(ctx, tenantID, actorID, input)
}

func (m *moverMock) MoveCalls() []workflow.MoveInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type eventStreamerMock struct {
	served bool
}

func (m *eventStreamerMock) ServeWS(w http.ResponseWriter, _ *http.Request, _, _ uuid.UUID) {
	m.served = true
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type boardRecordRepoMock struct {
	byState  []domain.Record
	children []domain.Record
}

func (m *boardRecordRepoMock) ListByStateIDs(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]domain.Record, error) {
	return m.byState, nil
}

func (m *boardRecordRepoMock) ListChildrenByParentIDs(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]domain.Record, error) {
	return m.children, nil
}

type boardProcessRepoMock struct {
	states []domain.State
}

func (m *boardProcessRepoMock) ListStatesByProcessIDs(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]domain.State, error) {
	return m.states, nil
}

func (m *boardProcessRepoMock) ListFieldsByProcessIDs(_ context.Context, _ []uuid.UUID) ([]domain.FieldDefinition, error) {
	return []domain.FieldDefinition{}, nil
}
