package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/internal/transport/dataloader"
)

type graphReader interface {
	GetProcessGraph(ctx context.Context, tenantID, processID uuid.UUID) (*domain.ProcessGraph, error)
}

type eventStreamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, tenantID, processID uuid.UUID)
}

// BoardHandler serves the board read model and its event stream.
type BoardHandler struct {
	graphs graphReader
	events eventStreamer
	log    *slog.Logger
}

// NewBoardHandler creates a BoardHandler.
func NewBoardHandler(graphs graphReader, events eventStreamer, logger *slog.Logger) *BoardHandler {
	return &BoardHandler{graphs: graphs, events: events, log: logger.With("handler", "board")}
}

type cardResponse struct {
	ID            uuid.UUID      `json:"id"`
	StateID       uuid.UUID      `json:"stateId"`
	Position      float64        `json:"position"`
	Title         string         `json:"title"`
	Priority      string         `json:"priority,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Progress      int            `json:"progress"`
	ParentID      *uuid.UUID     `json:"parentId,omitempty"`
	Level         int            `json:"level"`
	ResponsibleID *uuid.UUID     `json:"responsibleId,omitempty"`
	ChildCount    int            `json:"childCount"`
}

type columnResponse struct {
	StateID uuid.UUID      `json:"stateId"`
	Name    string         `json:"name"`
	Color   string         `json:"color,omitempty"`
	Initial bool           `json:"initial"`
	Final   bool           `json:"final"`
	Cards   []cardResponse `json:"cards"`
}

type boardResponse struct {
	Process processResponse  `json:"process"`
	Columns []columnResponse `json:"columns"`
}

// Board handles GET /api/processes/{id}/board: every state in board order
// with its records in position order.
func (h *BoardHandler) Board(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := caller(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx := r.Context()
	graph, err := h.graphs.GetProcessGraph(ctx, tenantID, processID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	loaders := dataloader.FromContext(ctx)
	columns, errs := loaders.RecordsByStateID.LoadMany(ctx, graph.StateIDs())()
	if err := errors.Join(errs...); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	var recordIDs []uuid.UUID
	for _, recs := range columns {
		for _, rec := range recs {
			recordIDs = append(recordIDs, rec.ID)
		}
	}
	childCounts := make(map[uuid.UUID]int, len(recordIDs))
	if len(recordIDs) > 0 {
		children, errs := loaders.ChildrenByParentID.LoadMany(ctx, recordIDs)()
		if err := errors.Join(errs...); err != nil {
			handleError(h.log, w, r, err)
			return
		}
		for i, id := range recordIDs {
			childCounts[id] = len(children[i])
		}
	}

	resp := boardResponse{
		Process: toProcessResponse(graph.Process),
		Columns: make([]columnResponse, 0, len(graph.States)),
	}
	for i, st := range graph.States {
		col := columnResponse{
			StateID: st.ID,
			Name:    st.Name,
			Color:   st.Color,
			Initial: st.IsInitial,
			Final:   st.IsFinal,
			Cards:   make([]cardResponse, 0, len(columns[i])),
		}
		for _, rec := range columns[i] {
			col.Cards = append(col.Cards, cardResponse{
				ID:            rec.ID,
				StateID:       rec.StateID,
				Position:      rec.Position,
				Title:         rec.Title,
				Priority:      rec.Priority.String(),
				Data:          rec.Data,
				Tags:          rec.Tags,
				Progress:      rec.Progress,
				ParentID:      rec.ParentID,
				Level:         rec.Level,
				ResponsibleID: rec.ResponsibleID,
				ChildCount:    childCounts[rec.ID],
			})
		}
		resp.Columns = append(resp.Columns, col)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Events handles GET /api/processes/{id}/events, a websocket stream of the
// board's committed moves.
func (h *BoardHandler) Events(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := caller(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.graphs.GetProcessGraph(r.Context(), tenantID, processID); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	h.events.ServeWS(w, r, tenantID, processID)
}
