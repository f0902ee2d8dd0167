package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/internal/service/process"
	"github.com/heartmarshall/qms-backend/internal/transport/dataloader"
	"github.com/heartmarshall/qms-backend/internal/transport/middleware"
)

type processService interface {
	GetProcessGraph(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error)
	ListProcesses(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]domain.Process, error)
	CreateProcess(ctx context.Context, tenantID, actorID uuid.UUID, input process.CreateProcessInput) (*domain.ProcessGraph, error)
	DeactivateProcess(ctx context.Context, tenantID, actorID, processID uuid.UUID) error
	ReorderStates(ctx context.Context, tenantID, actorID, processID uuid.UUID, orderedStateIDs []uuid.UUID) error
	AddState(ctx context.Context, tenantID, actorID, processID uuid.UUID, input process.StateInput) (*domain.State, error)
	UpdateState(ctx context.Context, tenantID, actorID, processID, stateID uuid.UUID, input process.UpdateStateInput) (*domain.State, error)
	DeleteState(ctx context.Context, tenantID, actorID, processID, stateID uuid.UUID) error
	DefineField(ctx context.Context, tenantID, actorID, processID uuid.UUID, input process.FieldInput) (*domain.FieldDefinition, error)
}

// ProcessHandler serves process definition endpoints. Reads are open to
// every member of the organization; configuration changes need the admin
// role.
type ProcessHandler struct {
	svc processService
	log *slog.Logger
}

// NewProcessHandler creates a ProcessHandler.
func NewProcessHandler(svc processService, logger *slog.Logger) *ProcessHandler {
	return &ProcessHandler{svc: svc, log: logger.With("handler", "processes")}
}

// List handles GET /api/processes?inactive=true&include=states.
// States are loaded for all processes in one batch.
func (h *ProcessHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	procs, err := h.svc.ListProcesses(r.Context(), tenantID, q.Get("inactive") == "true")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	resp := make([]processResponse, 0, len(procs))
	for _, p := range procs {
		resp = append(resp, toProcessResponse(p))
	}

	if q.Get("include") == "states" && len(procs) > 0 {
		ids := make([]uuid.UUID, len(procs))
		for i, p := range procs {
			ids[i] = p.ID
		}
		states, errs := dataloader.FromContext(r.Context()).StatesByProcessID.LoadMany(r.Context(), ids)()
		if err := errors.Join(errs...); err != nil {
			handleError(h.log, w, r, err)
			return
		}
		for i := range resp {
			resp[i].States = make([]stateResponse, 0, len(states[i]))
			for _, s := range states[i] {
				resp[i].States = append(resp[i].States, toStateResponse(s))
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/processes/{id}.
func (h *ProcessHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := caller(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	graph, err := h.svc.GetProcessGraph(r.Context(), tenantID, processID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toGraphResponse(graph))
}

// Create handles POST /api/processes.
func (h *ProcessHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.admin(w, r)
	if !ok {
		return
	}

	var req createProcessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	graph, err := h.svc.CreateProcess(r.Context(), tenantID, actorID, req.input())
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGraphResponse(graph))
}

// Deactivate handles POST /api/processes/{id}/deactivate.
func (h *ProcessHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.admin(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.DeactivateProcess(r.Context(), tenantID, actorID, processID); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReorderStates handles PATCH /api/processes/{id}/states/order.
func (h *ProcessHandler) ReorderStates(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.admin(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req reorderStatesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.ReorderStates(r.Context(), tenantID, actorID, processID, req.OrderedStateIDs); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// AddState handles POST /api/processes/{id}/states.
func (h *ProcessHandler) AddState(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.admin(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req stateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.svc.AddState(r.Context(), tenantID, actorID, processID, process.StateInput{
		Name:           req.Name,
		Color:          req.Color,
		IsInitial:      req.Initial,
		IsFinal:        req.Final,
		AllowedNext:    req.AllowedNext,
		RequiredFields: req.RequiredFields,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStateResponse(*st))
}

// UpdateState handles PATCH /api/processes/{id}/states/{stateId}.
func (h *ProcessHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.admin(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stateID, ok := pathID(w, r, "stateId")
	if !ok {
		return
	}

	var req updateStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.svc.UpdateState(r.Context(), tenantID, actorID, processID, stateID, process.UpdateStateInput{
		Name:           req.Name,
		Color:          req.Color,
		IsInitial:      req.Initial,
		IsFinal:        req.Final,
		AllowedNext:    req.AllowedNext,
		RequiredFields: req.RequiredFields,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toStateResponse(*st))
}

// DeleteState handles DELETE /api/processes/{id}/states/{stateId}.
func (h *ProcessHandler) DeleteState(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.admin(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stateID, ok := pathID(w, r, "stateId")
	if !ok {
		return
	}

	if err := h.svc.DeleteState(r.Context(), tenantID, actorID, processID, stateID); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DefineField handles PUT /api/processes/{id}/fields/{name}.
func (h *ProcessHandler) DefineField(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := h.admin(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = r.PathValue("name")

	def, err := h.svc.DefineField(r.Context(), tenantID, actorID, processID, req.input())
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toFieldResponse(*def))
}

func (h *ProcessHandler) admin(w http.ResponseWriter, r *http.Request) (tenantID, actorID uuid.UUID, ok bool) {
	tenantID, actorID, ok = caller(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	if err := middleware.RequireAdmin(r.Context()); err != nil {
		writeError(w, http.StatusForbidden, "admin access required")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, actorID, true
}

func sortedFieldNames(s domain.FieldSchema) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
