package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/internal/service/process"
	"github.com/heartmarshall/qms-backend/internal/service/record"
)

// ---------------------------------------------------------------------------
// Processes
// ---------------------------------------------------------------------------

type processResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Active    bool            `json:"active"`
	States    []stateResponse `json:"states,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type stateResponse struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Color          string      `json:"color,omitempty"`
	Order          int         `json:"order"`
	Initial        bool        `json:"initial"`
	Final          bool        `json:"final"`
	AllowedNext    []uuid.UUID `json:"allowedNext"`
	RequiredFields []string    `json:"requiredFields"`
}

type fieldResponse struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Label   string   `json:"label,omitempty"`
	Options []string `json:"options,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// graphResponse is the process graph read model: states in board order, the
// transition relation and the entry requirements keyed by state id.
type graphResponse struct {
	Process        processResponse           `json:"process"`
	States         []stateResponse           `json:"states"`
	Transitions    map[uuid.UUID][]uuid.UUID `json:"transitions"`
	RequiredFields map[uuid.UUID][]string    `json:"requiredFields"`
	Fields         []fieldResponse           `json:"fields"`
}

func toProcessResponse(p domain.Process) processResponse {
	return processResponse{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toStateResponse(s domain.State) stateResponse {
	next := s.AllowedNext
	if next == nil {
		next = []uuid.UUID{}
	}
	required := s.RequiredFields
	if required == nil {
		required = []string{}
	}
	return stateResponse{
		ID:             s.ID,
		Name:           s.Name,
		Color:          s.Color,
		Order:          s.Order,
		Initial:        s.IsInitial,
		Final:          s.IsFinal,
		AllowedNext:    next,
		RequiredFields: required,
	}
}

func toFieldResponse(f domain.FieldDefinition) fieldResponse {
	return fieldResponse{
		Name:    f.Name,
		Type:    f.Type.String(),
		Label:   f.Label,
		Options: f.Options,
		Pattern: f.Pattern,
	}
}

func toGraphResponse(g *domain.ProcessGraph) graphResponse {
	resp := graphResponse{
		Process:        toProcessResponse(g.Process),
		States:         make([]stateResponse, 0, len(g.States)),
		Transitions:    g.TransitionMap(),
		RequiredFields: g.RequiredFieldsByState(),
		Fields:         make([]fieldResponse, 0, len(g.Fields)),
	}
	for _, s := range g.States {
		resp.States = append(resp.States, toStateResponse(s))
	}
	for _, name := range sortedFieldNames(g.Fields) {
		resp.Fields = append(resp.Fields, toFieldResponse(g.Fields[name]))
	}
	return resp
}

type fieldRequest struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Options []string `json:"options"`
	Pattern string   `json:"pattern"`
}

func (f fieldRequest) input() process.FieldInput {
	return process.FieldInput{
		Name:    f.Name,
		Type:    domain.FieldType(f.Type),
		Label:   f.Label,
		Options: f.Options,
		Pattern: f.Pattern,
	}
}

type createProcessRequest struct {
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Fields   []fieldRequest `json:"fields"`
	States   []struct {
		Name           string   `json:"name"`
		Color          string   `json:"color"`
		Initial        bool     `json:"initial"`
		Final          bool     `json:"final"`
		Next           []string `json:"next"`
		RequiredFields []string `json:"requiredFields"`
	} `json:"states"`
}

func (req createProcessRequest) input() process.CreateProcessInput {
	in := process.CreateProcessInput{Name: req.Name, Category: req.Category}
	for _, f := range req.Fields {
		in.Fields = append(in.Fields, f.input())
	}
	for _, s := range req.States {
		in.States = append(in.States, process.ProcessStateInput{
			Name:           s.Name,
			Color:          s.Color,
			Initial:        s.Initial,
			Final:          s.Final,
			Next:           s.Next,
			RequiredFields: s.RequiredFields,
		})
	}
	return in
}

type reorderStatesRequest struct {
	OrderedStateIDs []uuid.UUID `json:"orderedStateIds"`
}

type stateRequest struct {
	Name           string      `json:"name"`
	Color          string      `json:"color"`
	Initial        bool        `json:"initial"`
	Final          bool        `json:"final"`
	AllowedNext    []uuid.UUID `json:"allowedNext"`
	RequiredFields []string    `json:"requiredFields"`
}

type updateStateRequest struct {
	Name           *string      `json:"name"`
	Color          *string      `json:"color"`
	Initial        *bool        `json:"initial"`
	Final          *bool        `json:"final"`
	AllowedNext    *[]uuid.UUID `json:"allowedNext"`
	RequiredFields *[]string    `json:"requiredFields"`
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

type historyResponse struct {
	Seq         int        `json:"seq"`
	FromStateID *uuid.UUID `json:"fromStateId"`
	ToStateID   uuid.UUID  `json:"toStateId"`
	ActorID     uuid.UUID  `json:"actorId"`
	Comment     *string    `json:"comment,omitempty"`
	At          time.Time  `json:"at"`
}

type recordResponse struct {
	ID            uuid.UUID         `json:"id"`
	ProcessID     uuid.UUID         `json:"processId"`
	StateID       uuid.UUID         `json:"stateId"`
	ParentID      *uuid.UUID        `json:"parentId,omitempty"`
	Level         int               `json:"level"`
	Title         string            `json:"title"`
	ResponsibleID *uuid.UUID        `json:"responsibleId,omitempty"`
	AssigneeIDs   []uuid.UUID       `json:"assigneeIds"`
	Priority      string            `json:"priority"`
	Data          map[string]any    `json:"data"`
	Files         []string          `json:"files"`
	Progress      int               `json:"progress"`
	Tags          []string          `json:"tags"`
	Position      float64           `json:"position"`
	ArchivedAt    *time.Time        `json:"archivedAt,omitempty"`
	History       []historyResponse `json:"history,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func toHistoryResponse(h domain.HistoryEntry) historyResponse {
	return historyResponse{
		Seq:         h.Seq,
		FromStateID: h.FromStateID,
		ToStateID:   h.ToStateID,
		ActorID:     h.ActorID,
		Comment:     h.Comment,
		At:          h.CreatedAt,
	}
}

func toHistoryResponses(entries []domain.HistoryEntry) []historyResponse {
	out := make([]historyResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, toHistoryResponse(h))
	}
	return out
}

func toRecordResponse(rec *domain.Record) recordResponse {
	resp := recordResponse{
		ID:            rec.ID,
		ProcessID:     rec.ProcessID,
		StateID:       rec.StateID,
		ParentID:      rec.ParentID,
		Level:         rec.Level,
		Title:         rec.Title,
		ResponsibleID: rec.ResponsibleID,
		AssigneeIDs:   nonNilSlice(rec.AssigneeIDs),
		Priority:      rec.Priority.String(),
		Data:          rec.Data,
		Files:         nonNilSlice(rec.Files),
		Progress:      rec.Progress,
		Tags:          nonNilSlice(rec.Tags),
		Position:      rec.Position,
		ArchivedAt:    rec.ArchivedAt,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if resp.Data == nil {
		resp.Data = map[string]any{}
	}
	if len(rec.History) > 0 {
		resp.History = toHistoryResponses(rec.History)
	}
	return resp
}

func toRecordResponses(recs []domain.Record) []recordResponse {
	out := make([]recordResponse, 0, len(recs))
	for i := range recs {
		out = append(out, toRecordResponse(&recs[i]))
	}
	return out
}

type createRecordRequest struct {
	ProcessID       uuid.UUID      `json:"processId"`
	InitialStateID  *uuid.UUID     `json:"initialStateId"`
	AllowNonInitial bool           `json:"allowNonInitial"`
	ParentID        *uuid.UUID     `json:"parentId"`
	Title           string         `json:"title"`
	ResponsibleID   *uuid.UUID     `json:"responsibleId"`
	AssigneeIDs     []uuid.UUID    `json:"assigneeIds"`
	Priority        string         `json:"priority"`
	Fields          map[string]any `json:"fields"`
	Files           []string       `json:"files"`
	Progress        int            `json:"progress"`
	Tags            []string       `json:"tags"`
}

func (req createRecordRequest) input() record.CreateRecordInput {
	return record.CreateRecordInput{
		ProcessID:       req.ProcessID,
		StateID:         req.InitialStateID,
		AllowNonInitial: req.AllowNonInitial,
		ParentID:        req.ParentID,
		Title:           req.Title,
		ResponsibleID:   req.ResponsibleID,
		AssigneeIDs:     req.AssigneeIDs,
		Priority:        domain.Priority(req.Priority),
		Data:            req.Fields,
		Files:           req.Files,
		Progress:        req.Progress,
		Tags:            req.Tags,
	}
}

type updateRecordRequest struct {
	Title            *string        `json:"title"`
	Priority         *string        `json:"priority"`
	ResponsibleID    *uuid.UUID     `json:"responsibleId"`
	ClearResponsible bool           `json:"clearResponsible"`
	AssigneeIDs      *[]uuid.UUID   `json:"assigneeIds"`
	Fields           map[string]any `json:"fields"`
	Files            *[]string      `json:"files"`
	Progress         *int           `json:"progress"`
	Tags             *[]string      `json:"tags"`
}

func (req updateRecordRequest) input() record.UpdateFieldsInput {
	patch := domain.RecordPatch{
		Title:            req.Title,
		ResponsibleID:    req.ResponsibleID,
		ClearResponsible: req.ClearResponsible,
		AssigneeIDs:      req.AssigneeIDs,
		Data:             req.Fields,
		Files:            req.Files,
		Progress:         req.Progress,
		Tags:             req.Tags,
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		patch.Priority = &p
	}
	return record.UpdateFieldsInput{Patch: patch}
}

// moveRequest carries recordId for body-only clients; the path id wins.
type moveRequest struct {
	RecordID      *uuid.UUID `json:"recordId"`
	TargetStateID uuid.UUID  `json:"targetStateId"`
	TargetIndex   int        `json:"targetIndex"`
	Comment       *string    `json:"comment"`
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
