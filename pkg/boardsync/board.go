// Package boardsync keeps a client-side board view in step with the server
// while moves are in flight. A move is applied to the local view at once and
// later reconciled with the server's answer: confirmed moves take the
// authoritative card, rejected moves are rolled back completely.
//
// All operations are pure: they return a new Board and never modify their
// receiver, so a caller can keep the previous value as a snapshot.
package boardsync

import (
	"errors"
	"slices"

	"github.com/google/uuid"
)

var (
	ErrUnknownCard   = errors.New("card not on board")
	ErrUnknownColumn = errors.New("column not on board")
	ErrMoveInFlight  = errors.New("card already has a move in flight")
	ErrNoPendingMove = errors.New("no move in flight for card")
)

// Card is the board's view of one record.
type Card struct {
	ID        uuid.UUID      `json:"id"`
	StateID   uuid.UUID      `json:"stateId"`
	Position  float64        `json:"position"`
	Title     string         `json:"title"`
	Priority  string         `json:"priority,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Progress  int            `json:"progress"`
	ParentID  *uuid.UUID     `json:"parentId,omitempty"`
	Level     int            `json:"level"`
	Revision  int            `json:"-"`
	Confirmed bool           `json:"-"`
}

// Column is one state of the board with its cards in display order.
type Column struct {
	StateID uuid.UUID `json:"stateId"`
	Name    string    `json:"name"`
	Cards   []Card    `json:"cards"`
}

// Move is an optimistic move awaiting the server's answer.
type Move struct {
	CardID        uuid.UUID
	TargetStateID uuid.UUID
	TargetIndex   int
}

// Board is a local board view plus the moves still in flight.
type Board struct {
	Columns []Column

	pending []Move
	// before holds the view as it was right before each pending move.
	before map[uuid.UUID][]Column
}

// NewBoard creates a board view from server data. Every card is confirmed.
func NewBoard(columns []Column) Board {
	cols := cloneColumns(columns)
	for i := range cols {
		for j := range cols[i].Cards {
			cols[i].Cards[j].Confirmed = true
		}
	}
	return Board{Columns: cols}
}

// Pending returns the moves still awaiting reconciliation, oldest first.
func (b Board) Pending() []Move {
	return slices.Clone(b.pending)
}

// InFlight reports whether cardID has an unreconciled move.
func (b Board) InFlight(cardID uuid.UUID) bool {
	_, ok := b.before[cardID]
	return ok
}

// Card returns a card and the index of its column.
func (b Board) Card(cardID uuid.UUID) (Card, int, bool) {
	for ci, col := range b.Columns {
		for _, c := range col.Cards {
			if c.ID == cardID {
				return c, ci, true
			}
		}
	}
	return Card{}, -1, false
}

// Column returns the column of a state.
func (b Board) Column(stateID uuid.UUID) (Column, bool) {
	i := b.columnIndex(stateID)
	if i < 0 {
		return Column{}, false
	}
	return b.Columns[i], true
}

func (b Board) columnIndex(stateID uuid.UUID) int {
	return slices.IndexFunc(b.Columns, func(c Column) bool { return c.StateID == stateID })
}

func (b Board) clone() Board {
	out := Board{
		Columns: cloneColumns(b.Columns),
		pending: slices.Clone(b.pending),
	}
	if b.before != nil {
		out.before = make(map[uuid.UUID][]Column, len(b.before))
		for id, cols := range b.before {
			out.before[id] = cloneColumns(cols)
		}
	}
	return out
}

func cloneColumns(cols []Column) []Column {
	if cols == nil {
		return nil
	}
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = Column{StateID: c.StateID, Name: c.Name}
		if c.Cards != nil {
			out[i].Cards = make([]Card, len(c.Cards))
			for j, card := range c.Cards {
				out[i].Cards[j] = cloneCard(card)
			}
		}
	}
	return out
}

func cloneCard(c Card) Card {
	out := c
	if c.Data != nil {
		out.Data = make(map[string]any, len(c.Data))
		for k, v := range c.Data {
			out.Data[k] = v
		}
	}
	out.Tags = slices.Clone(c.Tags)
	if c.ParentID != nil {
		id := *c.ParentID
		out.ParentID = &id
	}
	return out
}
