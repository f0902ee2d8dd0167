package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/internal/service/record"
	"github.com/heartmarshall/qms-backend/internal/service/workflow"
)

type recordService interface {
	GetRecord(ctx context.Context, tenantID, recordID uuid.UUID) (*domain.Record, error)
	ListByState(ctx context.Context, tenantID, processID, stateID uuid.UUID) ([]domain.Record, error)
	ListChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]domain.Record, error)
	GetHistory(ctx context.Context, tenantID, recordID uuid.UUID) ([]domain.HistoryEntry, error)
	CreateRecord(ctx context.Context, tenantID, actorID uuid.UUID, input record.CreateRecordInput) (*domain.Record, error)
	UpdateFields(ctx context.Context, tenantID, actorID, recordID uuid.UUID, input record.UpdateFieldsInput) (*domain.Record, error)
	ArchiveRecord(ctx context.Context, tenantID, actorID, recordID uuid.UUID) error
}

type mover interface {
	Move(ctx context.Context, tenantID, actorID uuid.UUID, input workflow.MoveInput) (*domain.Record, error)
}

// RecordHandler serves record endpoints, including the move.
type RecordHandler struct {
	records recordService
	mover   mover
	log     *slog.Logger
}

// NewRecordHandler creates a RecordHandler.
func NewRecordHandler(records recordService, mover mover, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{records: records, mover: mover, log: logger.With("handler", "records")}
}

// ListByState handles GET /api/processes/{id}/states/{stateId}/records.
func (h *RecordHandler) ListByState(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := caller(w, r)
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

	recs, err := h.records.ListByState(r.Context(), tenantID, processID, stateID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponses(recs))
}

// Create handles POST /api/records.
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := caller(w, r)
	if !ok {
		return
	}

	var req createRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.records.CreateRecord(r.Context(), tenantID, actorID, req.input())
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// Get handles GET /api/records/{id}.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := caller(w, r)
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.records.GetRecord(r.Context(), tenantID, recordID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// Update handles PATCH /api/records/{id}. The workflow state and position
// are not writable here.
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := caller(w, r)
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.records.UpdateFields(r.Context(), tenantID, actorID, recordID, req.input())
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// Archive handles DELETE /api/records/{id}.
func (h *RecordHandler) Archive(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := caller(w, r)
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.records.ArchiveRecord(r.Context(), tenantID, actorID, recordID); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Move handles PATCH /api/records/{id}/move. Rejections come back as
// {ok:false, reason, fields?}.
func (h *RecordHandler) Move(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := caller(w, r)
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RecordID != nil && *req.RecordID != recordID {
		writeError(w, http.StatusBadRequest, "recordId does not match the path")
		return
	}

	rec, err := h.mover.Move(r.Context(), tenantID, actorID, workflow.MoveInput{
		RecordID:      recordID,
		TargetStateID: req.TargetStateID,
		TargetIndex:   req.TargetIndex,
		Comment:       req.Comment,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// Children handles GET /api/records/{id}/children.
func (h *RecordHandler) Children(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := caller(w, r)
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	recs, err := h.records.ListChildren(r.Context(), tenantID, recordID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponses(recs))
}

// History handles GET /api/records/{id}/history.
func (h *RecordHandler) History(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := caller(w, r)
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.records.GetHistory(r.Context(), tenantID, recordID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toHistoryResponses(entries))
}
