package record

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

// CreateRecordInput holds the attributes of a new record.
type CreateRecordInput struct {
	ProcessID uuid.UUID
	// StateID selects the starting state; nil picks the first initial state.
	StateID *uuid.UUID
	// AllowNonInitial permits StateID to name a state that is not initial.
	AllowNonInitial bool
	ParentID        *uuid.UUID
	Title           string
	ResponsibleID   *uuid.UUID
	AssigneeIDs     []uuid.UUID
	Priority        domain.Priority
	Data            map[string]any
	Files           []string
	Progress        int
	Tags            []string
}

// Validate checks all fields and collects all errors.
func (i CreateRecordInput) Validate() error {
	var errs []domain.FieldError

	if i.ProcessID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "process_id", Message: "required"})
	}
	title := strings.TrimSpace(i.Title)
	if title == "" {
		errs = append(errs, domain.FieldError{Field: "title", Message: "required"})
	}
	if len(title) > MaxTitleLength {
		errs = append(errs, domain.FieldError{Field: "title", Message: fmt.Sprintf("max %d characters", MaxTitleLength)})
	}
	if i.Priority != "" && !i.Priority.IsValid() {
		errs = append(errs, domain.FieldError{Field: "priority", Message: "must be low, medium, high or critical"})
	}
	errs = append(errs, checkCommon(i.Progress, i.Tags, i.Files)...)

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// UpdateFieldsInput is a partial update of a record's non-workflow attributes.
type UpdateFieldsInput struct {
	Patch domain.RecordPatch
}

// Validate checks all fields and collects all errors.
func (i UpdateFieldsInput) Validate() error {
	var errs []domain.FieldError
	p := i.Patch

	if p.IsEmpty() {
		errs = append(errs, domain.FieldError{Field: "input", Message: "at least one field must be provided"})
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			errs = append(errs, domain.FieldError{Field: "title", Message: "required"})
		}
		if len(title) > MaxTitleLength {
			errs = append(errs, domain.FieldError{Field: "title", Message: fmt.Sprintf("max %d characters", MaxTitleLength)})
		}
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		errs = append(errs, domain.FieldError{Field: "priority", Message: "must be low, medium, high or critical"})
	}
	if p.ResponsibleID != nil && p.ClearResponsible {
		errs = append(errs, domain.FieldError{Field: "responsible_id", Message: "cannot set and clear at once"})
	}

	progress := 0
	if p.Progress != nil {
		progress = *p.Progress
	}
	var tags, files []string
	if p.Tags != nil {
		tags = *p.Tags
	}
	if p.Files != nil {
		files = *p.Files
	}
	errs = append(errs, checkCommon(progress, tags, files)...)

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func checkCommon(progress int, tags, files []string) []domain.FieldError {
	var errs []domain.FieldError
	if progress < 0 || progress > 100 {
		errs = append(errs, domain.FieldError{Field: "progress", Message: "must be between 0 and 100"})
	}
	if len(tags) > MaxTags {
		errs = append(errs, domain.FieldError{Field: "tags", Message: fmt.Sprintf("max %d tags", MaxTags)})
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			errs = append(errs, domain.FieldError{Field: "tags", Message: "empty tag"})
			break
		}
	}
	if len(files) > MaxFiles {
		errs = append(errs, domain.FieldError{Field: "files", Message: fmt.Sprintf("max %d files", MaxFiles)})
	}
	return errs
}
