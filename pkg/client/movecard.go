package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/pkg/boardsync"
)

// MoveCard moves a card optimistically and reconciles with the server.
//
// shown, when not nil, receives the optimistic view before the request is
// sent. The returned board is the reconciled view; on rejection it equals the
// view before the move and the Rejection explains why. The error is only set
// when the move could not be applied locally at all.
func (c *Client) MoveCard(
	ctx context.Context,
	board boardsync.Board,
	cardID, targetStateID uuid.UUID,
	targetIndex int,
	comment *string,
	shown func(boardsync.Board),
) (boardsync.Board, *boardsync.Rejection, error) {
	optimistic, err := board.ApplyOptimistic(cardID, targetStateID, targetIndex)
	if err != nil {
		return board, nil, err
	}
	if shown != nil {
		shown(optimistic)
	}

	res := boardsync.Result{CardID: cardID}
	rec, err := c.Move(ctx, cardID, MoveRequest{
		TargetStateID: targetStateID,
		TargetIndex:   targetIndex,
		Comment:       comment,
	})
	if err != nil {
		res.Err = err
	} else {
		card := rec.Card()
		res.Card = &card
	}

	return optimistic.Reconcile(res)
}
