package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/internal/service/process"
	"github.com/heartmarshall/qms-backend/internal/service/record"
	"github.com/heartmarshall/qms-backend/internal/service/workflow"
	"github.com/heartmarshall/qms-backend/internal/transport/dataloader"
	"github.com/heartmarshall/qms-backend/internal/transport/middleware"
	"github.com/heartmarshall/qms-backend/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type fixture struct {
	tenant, actor        uuid.UUID
	processID            uuid.UUID
	open, review, closed uuid.UUID
	graph                *domain.ProcessGraph
}

func newFixture() fixture {
	f := fixture{
		tenant:    uuid.New(),
		actor:     uuid.New(),
		processID: uuid.New(),
		open:      uuid.New(),
		review:    uuid.New(),
		closed:    uuid.New(),
	}
	f.graph = domain.NewProcessGraph(
		domain.Process{ID: f.processID, TenantID: f.tenant, Name: "CAPA", Active: true},
		[]domain.State{
			{ID: f.open, ProcessID: f.processID, Name: "Open", Order: 0, IsInitial: true, AllowedNext: []uuid.UUID{f.review}},
			{ID: f.review, ProcessID: f.processID, Name: "Review", Order: 1, AllowedNext: []uuid.UUID{f.open, f.closed}},
			{ID: f.closed, ProcessID: f.processID, Name: "Closed", Order: 2, IsFinal: true, RequiredFields: []string{"reviewer"}},
		},
		domain.FieldSchema{"reviewer": {ProcessID: f.processID, Name: "reviewer", Type: domain.FieldTypeUser}},
	)
	return f
}

type harness struct {
	fixture
	procs   *processServiceMock
	records *recordServiceMock
	mover   *moverMock
	events  *eventStreamerMock
	repo    *boardRecordRepoMock
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		fixture: newFixture(),
		records: &recordServiceMock{},
		mover:   &moverMock{},
		events:  &eventStreamerMock{},
		repo:    &boardRecordRepoMock{},
	}
	h.procs = &processServiceMock{
		GetProcessGraphFunc: func(_ context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error) {
			if tenantID != h.tenant || processID != h.processID {
				return nil, domain.ErrNotFound
			}
			return h.graph, nil
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.handler = NewRouter(Routes{
		Health:    NewHealthHandler("test", nil),
		Processes: NewProcessHandler(h.procs, logger),
		Records:   NewRecordHandler(h.records, h.mover, logger),
		Board:     NewBoardHandler(h.procs, h.events, logger),
		API: middleware.Chain(
			middleware.Tenant("X-Organization-ID"),
			middleware.Middleware(dataloader.Middleware(&dataloader.Repos{
				Record:  h.repo,
				Process: &boardProcessRepoMock{states: h.graph.States},
			})),
		),
	})
	return h
}

// do sends a request as the fixture actor. An empty role sends it anonymously.
func (h *harness) do(t *testing.T, method, path string, body any, role string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		ctx := ctxutil.WithUserID(req.Context(), h.actor)
		ctx = ctxutil.WithTenantID(ctx, h.tenant)
		ctx = ctxutil.WithRole(ctx, role)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) sampleRecord(stateID uuid.UUID) *domain.Record {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return &domain.Record{
		ID:        uuid.New(),
		TenantID:  h.tenant,
		ProcessID: h.processID,
		StateID:   stateID,
		Title:     "Supplier deviation",
		Priority:  domain.PriorityHigh,
		Data:      map[string]any{"reviewer": "u-1"},
		Position:  1,
		Active:    true,
		History: []domain.HistoryEntry{
			{Seq: 1, ToStateID: h.open, ActorID: h.actor, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ---------------------------------------------------------------------------
// Move
// ---------------------------------------------------------------------------

func TestMove_Success(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	moved := h.sampleRecord(h.review)
	h.mover.MoveFunc = func(_ context.Context, tenantID, actorID uuid.UUID, in workflow.MoveInput) (*domain.Record, error) {
		assert.Equal(t, h.tenant, tenantID)
		assert.Equal(t, h.actor, actorID)
		return moved, nil
	}

	comment := "ready for review"
	rec := h.do(t, http.MethodPatch, "/api/records/"+moved.ID.String()+"/move", map[string]any{
		"targetStateId": h.review,
		"targetIndex":   2,
		"comment":       comment,
	}, "user")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[recordResponse](t, rec)
	assert.Equal(t, moved.ID, got.ID)
	assert.Equal(t, h.review, got.StateID)
	assert.Equal(t, "high", got.Priority)
	require.Len(t, got.History, 1)

	calls := h.mover.MoveCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, workflow.MoveInput{RecordID: moved.ID, TargetStateID: h.review, TargetIndex: 2, Comment: &comment}, calls[0])
}

func TestMove_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
		wantFields []string
	}{
		{
			name:       "missing required fields",
			err:        &domain.TransitionError{Reason: domain.ReasonMissingRequiredFields, From: "Review", To: "Closed", Fields: []string{"reviewer"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "MissingRequiredFields",
			wantFields: []string{"reviewer"},
		},
		{
			name:       "illegal transition",
			err:        &domain.TransitionError{Reason: domain.ReasonIllegalTransition, From: "Open", To: "Closed"},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "IllegalTransition",
		},
		{
			name:       "unknown state",
			err:        &domain.TransitionError{Reason: domain.ReasonUnknownState, To: "x"},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "UnknownState",
		},
		{
			name:       "conflict after retry",
			err:        &domain.TransitionError{Reason: domain.ReasonConflict},
			wantStatus: http.StatusConflict,
			wantReason: "Conflict",
		},
		{
			name:       "no such record",
			err:        &domain.TransitionError{Reason: domain.ReasonNoSuchRecord},
			wantStatus: http.StatusNotFound,
			wantReason: "NotFound",
		},
		{
			name:       "record of another tenant",
			err:        fmt.Errorf("load record: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantReason: "NotFound",
		},
		{
			name:       "storage fault",
			err:        fmt.Errorf("move: %w", domain.ErrStorage),
			wantStatus: http.StatusInternalServerError,
			wantReason: "StorageError",
		},
		{
			name:       "timeout",
			err:        fmt.Errorf("move: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantReason: "Timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.mover.MoveFunc = func(context.Context, uuid.UUID, uuid.UUID, workflow.MoveInput) (*domain.Record, error) {
				return nil, tt.err
			}

			rec := h.do(t, http.MethodPatch, "/api/records/"+uuid.NewString()+"/move",
				map[string]any{"targetStateId": h.closed, "targetIndex": 0}, "user")

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decodeBody[ErrorResponse](t, rec)
			assert.False(t, body.OK)
			assert.Equal(t, tt.wantReason, body.Reason)
			assert.Equal(t, tt.wantFields, body.Fields)
		})
	}
}

func TestMove_BadRequests(t *testing.T) {
	t.Parallel()

	recordID := uuid.New()
	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
	}{
		{name: "malformed id", path: "/api/records/not-a-uuid/move", body: map[string]any{}, wantStatus: http.StatusNotFound},
		{name: "unknown body field", path: "/api/records/" + recordID.String() + "/move", body: `{"targetState":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "broken json", path: "/api/records/" + recordID.String() + "/move", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "record id mismatch", path: "/api/records/" + recordID.String() + "/move", body: map[string]any{"recordId": uuid.New()}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)

			rec := h.do(t, http.MethodPatch, tt.path, tt.body, "user")

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Empty(t, h.mover.MoveCalls())
		})
	}
}

func TestAPI_RequiresIdentity(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/processes/"+h.processID.String(), nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/live", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ---------------------------------------------------------------------------
// Processes
// ---------------------------------------------------------------------------

func TestGetProcess_Graph(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/processes/"+h.processID.String(), nil, "user")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[graphResponse](t, rec)
	require.Len(t, got.States, 3)
	assert.Equal(t, "Open", got.States[0].Name)
	assert.Equal(t, []uuid.UUID{h.open, h.closed}, got.Transitions[h.review])
	assert.Equal(t, []uuid.UUID{}, got.Transitions[h.closed])
	assert.Equal(t, []string{"reviewer"}, got.RequiredFields[h.closed])
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "user", got.Fields[0].Type)
}

func TestGetProcess_OtherTenantIsNotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/processes/"+uuid.NewString(), nil, "user")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decodeBody[ErrorResponse](t, rec).Reason)
}

func TestListProcesses_IncludeStates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.procs.ListProcessesFunc = func(_ context.Context, _ uuid.UUID, includeInactive bool) ([]domain.Process, error) {
		assert.True(t, includeInactive)
		return []domain.Process{h.graph.Process}, nil
	}

	rec := h.do(t, http.MethodGet, "/api/processes?inactive=true&include=states", nil, "user")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[[]processResponse](t, rec)
	require.Len(t, got, 1)
	require.Len(t, got[0].States, 3)
	assert.Equal(t, h.closed, got[0].States[2].ID)
}

func TestCreateProcess_AdminOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.procs.CreateProcessFunc = func(_ context.Context, _, _ uuid.UUID, in process.CreateProcessInput) (*domain.ProcessGraph, error) {
		assert.Equal(t, "CAPA", in.Name)
		require.Len(t, in.States, 2)
		assert.Equal(t, []string{"Closed"}, in.States[0].Next)
		return h.graph, nil
	}

	body := map[string]any{
		"name": "CAPA",
		"states": []map[string]any{
			{"name": "Open", "initial": true, "next": []string{"Closed"}},
			{"name": "Closed", "final": true},
		},
	}

	rec := h.do(t, http.MethodPost, "/api/processes", body, "user")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/processes", body, "admin")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestReorderStates(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		order := []uuid.UUID{h.closed, h.open, h.review}
		h.procs.ReorderStatesFunc = func(_ context.Context, _, _, processID uuid.UUID, ids []uuid.UUID) error {
			assert.Equal(t, h.processID, processID)
			assert.Equal(t, order, ids)
			return nil
		}

		rec := h.do(t, http.MethodPatch, "/api/processes/"+h.processID.String()+"/states/order",
			map[string]any{"orderedStateIds": order}, "admin")

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("state set mismatch", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.procs.ReorderStatesFunc = func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, []uuid.UUID) error {
			return domain.NewValidationError("ordered_state_ids", "must contain every state exactly once")
		}

		rec := h.do(t, http.MethodPatch, "/api/processes/"+h.processID.String()+"/states/order",
			map[string]any{"orderedStateIds": []uuid.UUID{h.open}}, "admin")

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeBody[ErrorResponse](t, rec)
		assert.Equal(t, "ValidationError", body.Reason)
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "ordered_state_ids", body.Errors[0].Field)
	})
}

func TestDeleteState_InUse(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.procs.DeleteStateFunc = func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, uuid.UUID) error {
		return fmt.Errorf("state has records: %w", domain.ErrConflict)
	}

	rec := h.do(t, http.MethodDelete, "/api/processes/"+h.processID.String()+"/states/"+h.review.String(), nil, "admin")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Conflict", decodeBody[ErrorResponse](t, rec).Reason)
}

func TestDefineField_NameFromPath(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.procs.DefineFieldFunc = func(_ context.Context, _, _, _ uuid.UUID, in process.FieldInput) (*domain.FieldDefinition, error) {
		return &domain.FieldDefinition{Name: in.Name, Type: in.Type, Options: in.Options}, nil
	}

	rec := h.do(t, http.MethodPut, "/api/processes/"+h.processID.String()+"/fields/severity",
		map[string]any{"type": "select", "options": []string{"minor", "major"}}, "admin")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[fieldResponse](t, rec)
	assert.Equal(t, "severity", got.Name)
	assert.Equal(t, "select", got.Type)
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

func TestCreateRecord(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		created := h.sampleRecord(h.open)
		h.records.CreateRecordFunc = func(_ context.Context, _, _ uuid.UUID, in record.CreateRecordInput) (*domain.Record, error) {
			assert.Equal(t, h.processID, in.ProcessID)
			require.NotNil(t, in.StateID)
			assert.Equal(t, h.open, *in.StateID)
			assert.Equal(t, map[string]any{"reviewer": "u-1"}, in.Data)
			return created, nil
		}

		rec := h.do(t, http.MethodPost, "/api/records", map[string]any{
			"processId":      h.processID,
			"initialStateId": h.open,
			"title":          "Supplier deviation",
			"fields":         map[string]any{"reviewer": "u-1"},
		}, "user")

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, created.ID, decodeBody[recordResponse](t, rec).ID)
	})

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.records.CreateRecordFunc = func(context.Context, uuid.UUID, uuid.UUID, record.CreateRecordInput) (*domain.Record, error) {
			return nil, domain.NewValidationError("state_id", "not an initial state")
		}

		rec := h.do(t, http.MethodPost, "/api/records", map[string]any{"processId": h.processID, "title": "x"}, "user")

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeBody[ErrorResponse](t, rec)
		assert.Equal(t, "ValidationError", body.Reason)
		assert.Equal(t, "state_id", body.Errors[0].Field)
	})
}

func TestUpdateRecord_Patch(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	updated := h.sampleRecord(h.open)
	h.records.UpdateFieldsFunc = func(_ context.Context, _, _, _ uuid.UUID, in record.UpdateFieldsInput) (*domain.Record, error) {
		require.NotNil(t, in.Patch.Priority)
		assert.Equal(t, domain.PriorityCritical, *in.Patch.Priority)
		assert.True(t, in.Patch.ClearResponsible)
		assert.Contains(t, in.Patch.Data, "reviewer")
		assert.Nil(t, in.Patch.Data["reviewer"])
		return updated, nil
	}

	rec := h.do(t, http.MethodPatch, "/api/records/"+updated.ID.String(),
		`{"priority":"critical","clearResponsible":true,"fields":{"reviewer":null}}`, "user")

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestArchiveRecord(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.records.ArchiveRecordFunc = func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error { return nil }

	rec := h.do(t, http.MethodDelete, "/api/records/"+uuid.NewString(), nil, "user")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListByState(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	first, second := h.sampleRecord(h.review), h.sampleRecord(h.review)
	second.Position = 2
	h.records.ListByStateFunc = func(_ context.Context, _, processID, stateID uuid.UUID) ([]domain.Record, error) {
		assert.Equal(t, h.processID, processID)
		assert.Equal(t, h.review, stateID)
		return []domain.Record{*first, *second}, nil
	}

	rec := h.do(t, http.MethodGet, fmt.Sprintf("/api/processes/%s/states/%s/records", h.processID, h.review), nil, "user")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[[]recordResponse](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{1, 2}, []float64{got[0].Position, got[1].Position})
}

func TestHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	from := h.open
	h.records.GetHistoryFunc = func(context.Context, uuid.UUID, uuid.UUID) ([]domain.HistoryEntry, error) {
		return []domain.HistoryEntry{
			{Seq: 1, ToStateID: h.open, ActorID: h.actor},
			{Seq: 2, FromStateID: &from, ToStateID: h.review, ActorID: h.actor},
		}, nil
	}

	rec := h.do(t, http.MethodGet, "/api/records/"+uuid.NewString()+"/history", nil, "user")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[[]historyResponse](t, rec)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].FromStateID)
	assert.Equal(t, h.review, got[1].ToStateID)
}

// ---------------------------------------------------------------------------
// Board
// ---------------------------------------------------------------------------

func TestBoard_Columns(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	parent := h.sampleRecord(h.open)
	other := h.sampleRecord(h.review)
	child := h.sampleRecord(h.open)
	child.ParentID = &parent.ID
	child.Level = 1
	h.repo.byState = []domain.Record{*parent, *other}
	h.repo.children = []domain.Record{*child}

	rec := h.do(t, http.MethodGet, "/api/processes/"+h.processID.String()+"/board", nil, "user")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[boardResponse](t, rec)
	require.Len(t, got.Columns, 3)
	assert.Equal(t, "Open", got.Columns[0].Name)
	require.Len(t, got.Columns[0].Cards, 1)
	assert.Equal(t, parent.ID, got.Columns[0].Cards[0].ID)
	assert.Equal(t, 1, got.Columns[0].Cards[0].ChildCount)
	require.Len(t, got.Columns[1].Cards, 1)
	assert.Equal(t, 0, got.Columns[1].Cards[0].ChildCount)
	assert.Empty(t, got.Columns[2].Cards)
}

func TestEvents_UnknownProcess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/processes/"+uuid.NewString()+"/events", nil, "user")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, h.events.served)
}

func TestEvents_Streams(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.do(t, http.MethodGet, "/api/processes/"+h.processID.String()+"/events", nil, "user")

	assert.True(t, h.events.served)
}
