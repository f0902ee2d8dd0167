package workflow

import (
	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// Verdict is the outcome of validating one move.
type Verdict struct {
	OK     bool
	Reason domain.RejectReason
	// Fields lists absent required fields when Reason is MissingRequiredFields.
	Fields []string
}

var okVerdict = Verdict{OK: true}

// Validate decides whether rec may move to target within graph.
// It is pure: no I/O, no clock, no mutation of its arguments.
//
// A move within the current state is a reorder and is always legal.
// Required fields are checked against the destination state only.
func Validate(rec domain.Record, graph *domain.ProcessGraph, target uuid.UUID) Verdict {
	if graph == nil || !graph.HasState(target) {
		return Verdict{Reason: domain.ReasonUnknownState}
	}
	if rec.ProcessID != graph.ProcessID() || rec.TenantID != graph.Process.TenantID {
		return Verdict{Reason: domain.ReasonNoSuchRecord}
	}
	if target == rec.StateID {
		return okVerdict
	}
	if !graph.CanTransition(rec.StateID, target) {
		return Verdict{Reason: domain.ReasonIllegalTransition}
	}
	if missing := graph.Fields.Missing(rec.Data, graph.RequiredFields(target)); len(missing) > 0 {
		return Verdict{Reason: domain.ReasonMissingRequiredFields, Fields: missing}
	}
	return okVerdict
}

// Err converts a rejected verdict into a typed error naming both states.
// It returns nil for an accepted verdict.
func (v Verdict) Err(graph *domain.ProcessGraph, from, to uuid.UUID) error {
	if v.OK {
		return nil
	}
	return &domain.TransitionError{
		Reason: v.Reason,
		From:   stateLabel(graph, from),
		To:     stateLabel(graph, to),
		Fields: v.Fields,
	}
}

func stateLabel(graph *domain.ProcessGraph, id uuid.UUID) string {
	if graph != nil {
		if st, ok := graph.State(id); ok {
			return st.Name
		}
	}
	return id.String()
}
