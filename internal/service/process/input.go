package process

import (
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// FieldInput describes a template field.
type FieldInput struct {
	Name    string
	Type    domain.FieldType
	Label   string
	Options []string
	Pattern string
}

func (f FieldInput) definition(processID uuid.UUID) domain.FieldDefinition {
	return domain.FieldDefinition{
		ProcessID: processID,
		Name:      strings.TrimSpace(f.Name),
		Type:      f.Type,
		Label:     strings.TrimSpace(f.Label),
		Options:   f.Options,
		Pattern:   f.Pattern,
	}
}

// ProcessStateInput describes a state inside CreateProcessInput. Transitions
// refer to other states of the same input by name.
type ProcessStateInput struct {
	Name           string
	Color          string
	Initial        bool
	Final          bool
	Next           []string
	RequiredFields []string
}

// CreateProcessInput holds a complete process definition.
type CreateProcessInput struct {
	Name     string
	Category string
	Fields   []FieldInput
	States   []ProcessStateInput
}

// Validate checks the shape of the input and collects all errors.
// Graph invariants are checked by domain.CheckStates once ids are assigned.
func (i CreateProcessInput) Validate() error {
	var errs []domain.FieldError

	name := strings.TrimSpace(i.Name)
	if name == "" {
		errs = append(errs, domain.FieldError{Field: "name", Message: "required"})
	}
	if len(name) > MaxNameLength {
		errs = append(errs, domain.FieldError{Field: "name", Message: "max 200 characters"})
	}
	if len(i.States) == 0 {
		errs = append(errs, domain.FieldError{Field: "states", Message: "at least one state required"})
	}
	if len(i.States) > MaxStatesPerBoard {
		errs = append(errs, domain.FieldError{Field: "states", Message: "max 50 states"})
	}

	names := make(map[string]struct{}, len(i.States))
	for _, st := range i.States {
		names[strings.TrimSpace(st.Name)] = struct{}{}
	}
	for _, st := range i.States {
		for _, next := range st.Next {
			if _, ok := names[strings.TrimSpace(next)]; !ok {
				errs = append(errs, domain.FieldError{Field: "states.next", Message: "unknown state " + next})
			}
		}
	}

	fieldNames := make(map[string]struct{}, len(i.Fields))
	for _, f := range i.Fields {
		n := strings.TrimSpace(f.Name)
		if _, dup := fieldNames[n]; dup {
			errs = append(errs, domain.FieldError{Field: "fields.name", Message: "duplicate field " + n})
		}
		fieldNames[n] = struct{}{}
		for _, fe := range f.definition(uuid.Nil).Validate() {
			errs = append(errs, domain.FieldError{Field: "fields." + fe.Field, Message: fe.Message})
		}
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// StateInput describes a state added to an existing process.
type StateInput struct {
	Name           string
	Color          string
	IsInitial      bool
	IsFinal        bool
	AllowedNext    []uuid.UUID
	RequiredFields []string
}

// Validate checks all fields and collects all errors.
func (i StateInput) Validate() error {
	var errs []domain.FieldError

	name := strings.TrimSpace(i.Name)
	if name == "" {
		errs = append(errs, domain.FieldError{Field: "name", Message: "required"})
	}
	if len(name) > MaxNameLength {
		errs = append(errs, domain.FieldError{Field: "name", Message: "max 200 characters"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// UpdateStateInput holds a partial state update; nil leaves a value unchanged.
type UpdateStateInput struct {
	Name           *string
	Color          *string
	IsInitial      *bool
	IsFinal        *bool
	AllowedNext    *[]uuid.UUID
	RequiredFields *[]string
}

// Validate checks all fields and collects all errors.
func (i UpdateStateInput) Validate() error {
	var errs []domain.FieldError

	if i.Name == nil && i.Color == nil && i.IsInitial == nil && i.IsFinal == nil &&
		i.AllowedNext == nil && i.RequiredFields == nil {
		errs = append(errs, domain.FieldError{Field: "input", Message: "at least one field must be provided"})
	}
	if i.Name != nil {
		name := strings.TrimSpace(*i.Name)
		if name == "" {
			errs = append(errs, domain.FieldError{Field: "name", Message: "required"})
		}
		if len(name) > MaxNameLength {
			errs = append(errs, domain.FieldError{Field: "name", Message: "max 200 characters"})
		}
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
