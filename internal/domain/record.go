package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Record is one unit of work tracked through the states of a process (a card).
type Record struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ProcessID     uuid.UUID
	StateID       uuid.UUID
	ParentID      *uuid.UUID
	Level         int
	Title         string
	ResponsibleID *uuid.UUID
	AssigneeIDs   []uuid.UUID
	Priority      Priority
	Data          map[string]any
	Files         []string
	Progress      int
	Tags          []string
	// Position orders the record inside its (process, state) column.
	Position   float64
	Active     bool
	ArchivedAt *time.Time
	History    []HistoryEntry
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HistoryEntry is one appended state change of a record.
// FromStateID is nil for the creation entry.
type HistoryEntry struct {
	RecordID    uuid.UUID
	Seq         int
	FromStateID *uuid.UUID
	ToStateID   uuid.UUID
	ActorID     uuid.UUID
	Comment     *string
	CreatedAt   time.Time
}

// IsArchived returns true once the record has been soft-deleted.
func (r *Record) IsArchived() bool {
	return r.ArchivedAt != nil
}

// Touch stamps the record as modified. Called explicitly before every write.
func (r *Record) Touch(now time.Time) {
	r.UpdatedAt = now
}

// LastHistory returns the most recent history entry.
func (r *Record) LastHistory() (HistoryEntry, bool) {
	if len(r.History) == 0 {
		return HistoryEntry{}, false
	}
	return r.History[len(r.History)-1], true
}

// RecordPatch is a partial update of the mutable non-workflow attributes.
// A nil pointer leaves the attribute unchanged. Data keys are merged;
// a nil value deletes the key.
type RecordPatch struct {
	Title            *string
	Priority         *Priority
	ResponsibleID    *uuid.UUID
	ClearResponsible bool
	AssigneeIDs      *[]uuid.UUID
	Data             map[string]any
	Files            *[]string
	Progress         *int
	Tags             *[]string
}

// IsEmpty reports whether the patch would change nothing.
func (p RecordPatch) IsEmpty() bool {
	return p.Title == nil && p.Priority == nil && p.ResponsibleID == nil &&
		!p.ClearResponsible && p.AssigneeIDs == nil && len(p.Data) == 0 &&
		p.Files == nil && p.Progress == nil && p.Tags == nil
}

// Apply writes the patch onto r and returns the changed attributes for auditing.
// StateID and Position are never touched.
func (r *Record) Apply(p RecordPatch) map[string]any {
	changes := make(map[string]any)

	if p.Title != nil && *p.Title != r.Title {
		changes["title"] = *p.Title
		r.Title = *p.Title
	}
	if p.Priority != nil && *p.Priority != r.Priority {
		changes["priority"] = p.Priority.String()
		r.Priority = *p.Priority
	}
	if p.ClearResponsible && r.ResponsibleID != nil {
		changes["responsible_id"] = nil
		r.ResponsibleID = nil
	} else if p.ResponsibleID != nil {
		id := *p.ResponsibleID
		changes["responsible_id"] = id.String()
		r.ResponsibleID = &id
	}
	if p.AssigneeIDs != nil {
		changes["assignee_ids"] = *p.AssigneeIDs
		r.AssigneeIDs = slices.Clone(*p.AssigneeIDs)
	}
	if p.Files != nil {
		changes["files"] = *p.Files
		r.Files = slices.Clone(*p.Files)
	}
	if p.Progress != nil && *p.Progress != r.Progress {
		changes["progress"] = *p.Progress
		r.Progress = *p.Progress
	}
	if p.Tags != nil {
		changes["tags"] = *p.Tags
		r.Tags = slices.Clone(*p.Tags)
	}
	if len(p.Data) > 0 {
		data := maps.Clone(r.Data)
		if data == nil {
			data = make(map[string]any, len(p.Data))
		}
		for k, v := range p.Data {
			if v == nil {
				delete(data, k)
			} else {
				data[k] = v
			}
		}
		changes["data"] = p.Data
		r.Data = data
	}

	return changes
}

// Slot is the ordering key of one record inside a column.
type Slot struct {
	ID       uuid.UUID
	Position float64
}

// MoveEvent describes a committed move. It is published after commit.
type MoveEvent struct {
	TenantID    uuid.UUID
	ProcessID   uuid.UUID
	RecordID    uuid.UUID
	FromStateID uuid.UUID
	ToStateID   uuid.UUID
	Position    float64
	ActorID     uuid.UUID
	At          time.Time
}

// StateChanged reports whether the move crossed columns.
func (e MoveEvent) StateChanged() bool {
	return e.FromStateID != e.ToStateID
}
