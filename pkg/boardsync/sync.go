package boardsync

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ApplyOptimistic moves a card in the local view without waiting for the
// server. targetIndex counts slots without the moving card and is clamped.
// The card gets a provisional position between its new neighbours.
func (b Board) ApplyOptimistic(cardID, targetStateID uuid.UUID, targetIndex int) (Board, error) {
	if b.InFlight(cardID) {
		return b, ErrMoveInFlight
	}
	if _, _, ok := b.Card(cardID); !ok {
		return b, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	if b.columnIndex(targetStateID) < 0 {
		return b, fmt.Errorf("%w: %s", ErrUnknownColumn, targetStateID)
	}

	out := b.clone()
	if out.before == nil {
		out.before = make(map[uuid.UUID][]Column)
	}
	out.before[cardID] = cloneColumns(b.Columns)

	move := Move{CardID: cardID, TargetStateID: targetStateID, TargetIndex: targetIndex}
	out.Columns = applyMove(out.Columns, move)
	out.pending = append(out.pending, move)
	return out, nil
}

// Result is the server's answer to a move.
type Result struct {
	CardID uuid.UUID
	// Card is the authoritative card on success.
	Card *Card
	// Err is the failure; it takes precedence over Card.
	Err error
}

// Rejection is a failed move explained for the user.
type Rejection struct {
	CardID  uuid.UUID
	Reason  string
	Fields  []string
	Message string
}

// reasoned is implemented by errors that carry a server rejection reason.
type reasoned interface {
	RejectReason() (reason string, fields []string)
}

// Reconcile folds the server's answer into the view.
//
// On success the optimistic card is replaced by the authoritative one,
// placed by its server position. On failure the view returns to exactly what
// it was before the move; moves applied later and still pending are replayed
// on top. The Rejection is nil on success.
func (b Board) Reconcile(res Result) (Board, *Rejection, error) {
	idx := slices.IndexFunc(b.pending, func(m Move) bool { return m.CardID == res.CardID })
	if idx < 0 {
		return b, nil, fmt.Errorf("%w: %s", ErrNoPendingMove, res.CardID)
	}

	out := b.clone()
	later := slices.Clone(out.pending[idx+1:])
	snapshot := out.before[res.CardID]
	out.pending = slices.Delete(out.pending, idx, idx+1)
	delete(out.before, res.CardID)

	if res.Err != nil || res.Card == nil {
		out.Columns = cloneColumns(snapshot)
		for _, m := range later {
			out.before[m.CardID] = cloneColumns(out.Columns)
			out.Columns = applyMove(out.Columns, m)
		}
		return out, rejectionFor(res), nil
	}

	card := cloneCard(*res.Card)
	card.Confirmed = true
	if out.columnIndex(card.StateID) < 0 {
		return b, nil, fmt.Errorf("%w: %s", ErrUnknownColumn, card.StateID)
	}
	out.Columns = confirm(out.Columns, card)
	// Every remaining snapshot must hold the confirmed card, including those
	// of earlier moves whose answers have not arrived yet.
	for id, cols := range out.before {
		out.before[id] = confirm(cols, card)
	}
	return out, nil, nil
}

// applyMove removes the card from its column and inserts it at the target
// slot with a provisional position.
func applyMove(cols []Column, m Move) []Column {
	card, cols := remove(cols, m.CardID)
	ci := slices.IndexFunc(cols, func(c Column) bool { return c.StateID == m.TargetStateID })
	cards := cols[ci].Cards

	index := min(max(m.TargetIndex, 0), len(cards))
	card.StateID = m.TargetStateID
	card.Position = provisional(cards, index)
	card.Confirmed = false
	card.Revision++

	cols[ci].Cards = slices.Insert(cards, index, card)
	return cols
}

// confirm replaces the card wherever it is with the authoritative one,
// placed by position in its server column.
func confirm(cols []Column, card Card) []Column {
	_, cols = remove(cols, card.ID)
	ci := slices.IndexFunc(cols, func(c Column) bool { return c.StateID == card.StateID })
	if ci < 0 {
		return cols
	}
	cards := cols[ci].Cards
	at, _ := slices.BinarySearchFunc(cards, card.Position, func(c Card, pos float64) int {
		switch {
		case c.Position < pos:
			return -1
		case c.Position > pos:
			return 1
		}
		return 0
	})
	cols[ci].Cards = slices.Insert(cards, at, card)
	return cols
}

func remove(cols []Column, cardID uuid.UUID) (Card, []Column) {
	for ci := range cols {
		for j, c := range cols[ci].Cards {
			if c.ID == cardID {
				cols[ci].Cards = slices.Delete(cols[ci].Cards, j, j+1)
				return c, cols
			}
		}
	}
	return Card{ID: cardID}, cols
}

func provisional(cards []Card, index int) float64 {
	switch {
	case len(cards) == 0:
		return 1
	case index == 0:
		return cards[0].Position - 1
	case index == len(cards):
		return cards[len(cards)-1].Position + 1
	}
	return (cards[index-1].Position + cards[index].Position) / 2
}

func rejectionFor(res Result) *Rejection {
	r := &Rejection{CardID: res.CardID, Reason: "Error"}

	var rr reasoned
	if errors.As(res.Err, &rr) {
		r.Reason, r.Fields = rr.RejectReason()
	}

	switch r.Reason {
	case "IllegalTransition":
		r.Message = "This card cannot move to that column."
	case "MissingRequiredFields":
		r.Message = "Fill in " + strings.Join(r.Fields, ", ") + " before moving this card."
	case "UnknownState":
		r.Message = "That column no longer exists. Reload the board."
	case "Conflict":
		r.Message = "Someone else moved cards here at the same time. Try again."
	case "NoSuchRecord", "NotFound":
		r.Message = "This card no longer exists."
	default:
		r.Message = "The move could not be saved."
		if res.Err != nil {
			r.Message += " " + res.Err.Error()
		}
	}
	return r
}
