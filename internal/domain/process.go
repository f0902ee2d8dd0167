package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Process is a configurable workflow definition (a board).
type Process struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Category  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State is one node of a process workflow graph (a board column).
type State struct {
	ID             uuid.UUID
	ProcessID      uuid.UUID
	TenantID       uuid.UUID
	Name           string
	Color          string
	Order          int
	IsInitial      bool
	IsFinal        bool
	AllowedNext    []uuid.UUID
	RequiredFields []string
	CreatedAt      time.Time
}

// ProcessGraph is the read model of a process: its states in display order,
// the transition relation and the field schema.
type ProcessGraph struct {
	Process Process
	States  []State
	Fields  FieldSchema

	index map[uuid.UUID]int
}

// NewProcessGraph builds a graph from states already sorted by Order.
func NewProcessGraph(p Process, states []State, fields FieldSchema) *ProcessGraph {
	g := &ProcessGraph{
		Process: p,
		States:  states,
		Fields:  fields,
		index:   make(map[uuid.UUID]int, len(states)),
	}
	for i, s := range states {
		g.index[s.ID] = i
	}
	if g.Fields == nil {
		g.Fields = FieldSchema{}
	}
	return g
}

// ProcessID returns the id of the process the graph was built for.
func (g *ProcessGraph) ProcessID() uuid.UUID { return g.Process.ID }

func (g *ProcessGraph) HasState(id uuid.UUID) bool {
	_, ok := g.index[id]
	return ok
}

// State returns the state with the given id.
func (g *ProcessGraph) State(id uuid.UUID) (State, bool) {
	i, ok := g.index[id]
	if !ok {
		return State{}, false
	}
	return g.States[i], true
}

// AllowedNext returns the states reachable from id in one move.
func (g *ProcessGraph) AllowedNext(id uuid.UUID) []uuid.UUID {
	s, ok := g.State(id)
	if !ok {
		return nil
	}
	return s.AllowedNext
}

// CanTransition reports whether to is in the allowed-next set of from.
// It does not treat from == to as legal; callers handle reordering separately.
func (g *ProcessGraph) CanTransition(from, to uuid.UUID) bool {
	return slices.Contains(g.AllowedNext(from), to)
}

// RequiredFields returns the field names that must be present to enter id.
func (g *ProcessGraph) RequiredFields(id uuid.UUID) []string {
	s, ok := g.State(id)
	if !ok {
		return nil
	}
	return s.RequiredFields
}

// InitialStates returns the initial states in display order.
func (g *ProcessGraph) InitialStates() []State {
	var out []State
	for _, s := range g.States {
		if s.IsInitial {
			out = append(out, s)
		}
	}
	return out
}

// TransitionMap returns stateID -> allowed next stateIDs for every state.
func (g *ProcessGraph) TransitionMap() map[uuid.UUID][]uuid.UUID {
	m := make(map[uuid.UUID][]uuid.UUID, len(g.States))
	for _, s := range g.States {
		next := s.AllowedNext
		if next == nil {
			next = []uuid.UUID{}
		}
		m[s.ID] = next
	}
	return m
}

// RequiredFieldsByState returns stateID -> required field names for every state.
func (g *ProcessGraph) RequiredFieldsByState() map[uuid.UUID][]string {
	m := make(map[uuid.UUID][]string, len(g.States))
	for _, s := range g.States {
		req := s.RequiredFields
		if req == nil {
			req = []string{}
		}
		m[s.ID] = req
	}
	return m
}

// StateIDs returns the state ids in display order.
func (g *ProcessGraph) StateIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(g.States))
	for i, s := range g.States {
		ids[i] = s.ID
	}
	return ids
}

// CheckStates validates the structural invariants of a state set:
// at least one initial state, final states have no outgoing transitions,
// transitions stay inside the set, required fields exist in the schema.
func CheckStates(states []State, fields FieldSchema) []FieldError {
	var errs []FieldError

	if len(states) == 0 {
		return []FieldError{{Field: "states", Message: "at least one state required"}}
	}

	ids := make(map[uuid.UUID]struct{}, len(states))
	names := make(map[string]struct{}, len(states))
	hasInitial := false
	for _, s := range states {
		ids[s.ID] = struct{}{}
		if s.IsInitial {
			hasInitial = true
		}
		if s.Name == "" {
			errs = append(errs, FieldError{Field: "states.name", Message: "required"})
			continue
		}
		if _, dup := names[s.Name]; dup {
			errs = append(errs, FieldError{Field: "states.name", Message: "duplicate state name " + s.Name})
		}
		names[s.Name] = struct{}{}
	}
	if !hasInitial {
		errs = append(errs, FieldError{Field: "states", Message: "at least one initial state required"})
	}

	for _, s := range states {
		if s.IsFinal && len(s.AllowedNext) > 0 {
			errs = append(errs, FieldError{Field: "states.allowed_next", Message: "final state " + s.Name + " cannot have outgoing transitions"})
		}
		for _, next := range s.AllowedNext {
			if _, ok := ids[next]; !ok {
				errs = append(errs, FieldError{Field: "states.allowed_next", Message: "state " + s.Name + " references a state outside the process"})
				break
			}
		}
		for _, f := range s.RequiredFields {
			if _, ok := fields[f]; !ok {
				errs = append(errs, FieldError{Field: "states.required_fields", Message: "state " + s.Name + " requires undefined field " + f})
			}
		}
	}

	return errs
}
