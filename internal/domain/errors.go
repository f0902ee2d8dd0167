package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrStorage       = errors.New("storage error")

	ErrUnknownState          = errors.New("unknown state")
	ErrIllegalTransition     = errors.New("illegal transition")
	ErrMissingRequiredFields = errors.New("missing required fields")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// RejectReason is the machine-readable cause of a refused move.
type RejectReason string

const (
	ReasonUnknownState          RejectReason = "UnknownState"
	ReasonNoSuchRecord          RejectReason = "NoSuchRecord"
	ReasonIllegalTransition     RejectReason = "IllegalTransition"
	ReasonMissingRequiredFields RejectReason = "MissingRequiredFields"
	ReasonConflict              RejectReason = "Conflict"
)

func (r RejectReason) String() string { return string(r) }

// TransitionError is a typed move rejection. It is an expected outcome,
// returned unchanged from the executor to the caller.
type TransitionError struct {
	Reason RejectReason
	From   string
	To     string
	// Fields lists the required fields that were absent, for MissingRequiredFields.
	Fields []string
}

func (e *TransitionError) Error() string {
	switch e.Reason {
	case ReasonMissingRequiredFields:
		return fmt.Sprintf("move %s -> %s: missing required fields: %s", e.From, e.To, strings.Join(e.Fields, ", "))
	case ReasonIllegalTransition:
		return fmt.Sprintf("move %s -> %s: transition not allowed", e.From, e.To)
	case ReasonUnknownState:
		return fmt.Sprintf("move -> %s: unknown state", e.To)
	default:
		return fmt.Sprintf("move %s -> %s: %s", e.From, e.To, e.Reason)
	}
}

func (e *TransitionError) Unwrap() error {
	switch e.Reason {
	case ReasonUnknownState:
		return ErrUnknownState
	case ReasonIllegalTransition:
		return ErrIllegalTransition
	case ReasonMissingRequiredFields:
		return ErrMissingRequiredFields
	case ReasonConflict:
		return ErrConflict
	default:
		return ErrNotFound
	}
}
