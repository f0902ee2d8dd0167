package workflow

import (
	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// KeyBetween returns an ordering key strictly between prev and next.
// A nil bound means the column edge. ok is false when no representable key
// keeps at least minGap from both neighbours; the column must be renumbered.
func KeyBetween(prev, next *float64, minGap float64) (key float64, ok bool) {
	switch {
	case prev == nil && next == nil:
		return 1, true
	case next == nil:
		key = *prev + 1
		return key, key > *prev
	case prev == nil:
		key = *next - 1
		return key, key < *next
	}

	if *next-*prev < 2*minGap {
		return 0, false
	}
	key = *prev + (*next-*prev)/2
	return key, *prev < key && key < *next
}

// Neighbours returns the keys around index in slots. index is clamped to
// [0, len(slots)].
func Neighbours(slots []domain.Slot, index int) (prev, next *float64) {
	index = clampIndex(index, len(slots))
	if index > 0 {
		p := slots[index-1].Position
		prev = &p
	}
	if index < len(slots) {
		n := slots[index].Position
		next = &n
	}
	return prev, next
}

// Renumbered returns slots with evenly spaced keys step, 2*step, ...
// It mirrors what the record store writes for a renumbering pass.
func Renumbered(slots []domain.Slot, step float64) []domain.Slot {
	out := make([]domain.Slot, len(slots))
	for i, s := range slots {
		out[i] = domain.Slot{ID: s.ID, Position: float64(i+1) * step}
	}
	return out
}

// without drops id from slots, keeping order.
func without(slots []domain.Slot, id uuid.UUID) []domain.Slot {
	out := make([]domain.Slot, 0, len(slots))
	for _, s := range slots {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func slotIDs(slots []domain.Slot) []uuid.UUID {
	ids := make([]uuid.UUID, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}
	return ids
}

func clampIndex(index, n int) int {
	if index < 0 {
		return 0
	}
	if index > n {
		return n
	}
	return index
}
