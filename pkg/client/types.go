package client

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/pkg/boardsync"
)

// Process is a workflow definition.
type Process struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Active    bool      `json:"active"`
	States    []State   `json:"states,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// State is one node of a process graph.
type State struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Color          string      `json:"color,omitempty"`
	Order          int         `json:"order"`
	Initial        bool        `json:"initial"`
	Final          bool        `json:"final"`
	AllowedNext    []uuid.UUID `json:"allowedNext"`
	RequiredFields []string    `json:"requiredFields"`
}

// Field is one template field of a process.
type Field struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Label   string   `json:"label,omitempty"`
	Options []string `json:"options,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// Graph is a process with its states, transitions and field schema.
type Graph struct {
	Process        Process                   `json:"process"`
	States         []State                   `json:"states"`
	Transitions    map[uuid.UUID][]uuid.UUID `json:"transitions"`
	RequiredFields map[uuid.UUID][]string    `json:"requiredFields"`
	Fields         []Field                   `json:"fields"`
}

// StateByName returns the state with the given name.
func (g *Graph) StateByName(name string) (State, bool) {
	for _, s := range g.States {
		if s.Name == name {
			return s, true
		}
	}
	return State{}, false
}

// ProcessState describes a state of a new process. Next names other states.
type ProcessState struct {
	Name           string   `json:"name"`
	Color          string   `json:"color,omitempty"`
	Initial        bool     `json:"initial,omitempty"`
	Final          bool     `json:"final,omitempty"`
	Next           []string `json:"next,omitempty"`
	RequiredFields []string `json:"requiredFields,omitempty"`
}

// CreateProcessRequest is a complete process definition.
type CreateProcessRequest struct {
	Name     string         `json:"name"`
	Category string         `json:"category,omitempty"`
	Fields   []Field        `json:"fields,omitempty"`
	States   []ProcessState `json:"states"`
}

// HistoryEntry is one state change of a record.
type HistoryEntry struct {
	Seq         int        `json:"seq"`
	FromStateID *uuid.UUID `json:"fromStateId"`
	ToStateID   uuid.UUID  `json:"toStateId"`
	ActorID     uuid.UUID  `json:"actorId"`
	Comment     *string    `json:"comment,omitempty"`
	At          time.Time  `json:"at"`
}

// Record is a unit of work tracked through a process.
type Record struct {
	ID            uuid.UUID      `json:"id"`
	ProcessID     uuid.UUID      `json:"processId"`
	StateID       uuid.UUID      `json:"stateId"`
	ParentID      *uuid.UUID     `json:"parentId,omitempty"`
	Level         int            `json:"level"`
	Title         string         `json:"title"`
	ResponsibleID *uuid.UUID     `json:"responsibleId,omitempty"`
	AssigneeIDs   []uuid.UUID    `json:"assigneeIds"`
	Priority      string         `json:"priority"`
	Data          map[string]any `json:"data"`
	Files         []string       `json:"files"`
	Progress      int            `json:"progress"`
	Tags          []string       `json:"tags"`
	Position      float64        `json:"position"`
	ArchivedAt    *time.Time     `json:"archivedAt,omitempty"`
	History       []HistoryEntry `json:"history,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Card converts the record into its board view.
func (r *Record) Card() boardsync.Card {
	return boardsync.Card{
		ID:       r.ID,
		StateID:  r.StateID,
		Position: r.Position,
		Title:    r.Title,
		Priority: r.Priority,
		Data:     r.Data,
		Tags:     r.Tags,
		Progress: r.Progress,
		ParentID: r.ParentID,
		Level:    r.Level,
	}
}

// CreateRecordRequest holds the attributes of a new record.
type CreateRecordRequest struct {
	ProcessID       uuid.UUID      `json:"processId"`
	InitialStateID  *uuid.UUID     `json:"initialStateId,omitempty"`
	AllowNonInitial bool           `json:"allowNonInitial,omitempty"`
	ParentID        *uuid.UUID     `json:"parentId,omitempty"`
	Title           string         `json:"title"`
	ResponsibleID   *uuid.UUID     `json:"responsibleId,omitempty"`
	AssigneeIDs     []uuid.UUID    `json:"assigneeIds,omitempty"`
	Priority        string         `json:"priority,omitempty"`
	Fields          map[string]any `json:"fields,omitempty"`
	Files           []string       `json:"files,omitempty"`
	Progress        int            `json:"progress,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
}

// UpdateRecordRequest is a partial update. Nil fields are left unchanged;
// a nil value in Fields removes that key.
type UpdateRecordRequest struct {
	Title            *string        `json:"title,omitempty"`
	Priority         *string        `json:"priority,omitempty"`
	ResponsibleID    *uuid.UUID     `json:"responsibleId,omitempty"`
	ClearResponsible bool           `json:"clearResponsible,omitempty"`
	AssigneeIDs      *[]uuid.UUID   `json:"assigneeIds,omitempty"`
	Fields           map[string]any `json:"fields,omitempty"`
	Files            *[]string      `json:"files,omitempty"`
	Progress         *int           `json:"progress,omitempty"`
	Tags             *[]string      `json:"tags,omitempty"`
}

// MoveRequest asks to move a record to a state and slot.
type MoveRequest struct {
	TargetStateID uuid.UUID `json:"targetStateId"`
	TargetIndex   int       `json:"targetIndex"`
	Comment       *string   `json:"comment,omitempty"`
}

// BoardCard is a record summary on a board column.
type BoardCard struct {
	boardsync.Card
	ResponsibleID *uuid.UUID `json:"responsibleId,omitempty"`
	ChildCount    int        `json:"childCount"`
}

// BoardColumn is one state of a board.
type BoardColumn struct {
	StateID uuid.UUID   `json:"stateId"`
	Name    string      `json:"name"`
	Color   string      `json:"color,omitempty"`
	Initial bool        `json:"initial"`
	Final   bool        `json:"final"`
	Cards   []BoardCard `json:"cards"`
}

// Board is the full board of a process.
type Board struct {
	Process Process       `json:"process"`
	Columns []BoardColumn `json:"columns"`
}

// View returns a fresh reconciliation view of the board.
func (b *Board) View() boardsync.Board {
	cols := make([]boardsync.Column, 0, len(b.Columns))
	for _, c := range b.Columns {
		col := boardsync.Column{StateID: c.StateID, Name: c.Name, Cards: make([]boardsync.Card, 0, len(c.Cards))}
		for _, card := range c.Cards {
			col.Cards = append(col.Cards, card.Card)
		}
		cols = append(cols, col)
	}
	return boardsync.NewBoard(cols)
}
