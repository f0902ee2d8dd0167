package domain

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldDefinition describes one template field of a process.
type FieldDefinition struct {
	ProcessID uuid.UUID
	Name      string
	Type      FieldType
	Label     string
	Options   []string
	Pattern   string
	CreatedAt time.Time
}

// FieldSchema maps field name to its definition for one process.
type FieldSchema map[string]FieldDefinition

// Present reports whether name holds a value in data, judged by the field's
// type. Text-like values must be non-blank and lists non-empty; any number
// or boolean, including 0 and false, is a value. Fields without a
// definition fall back to the shape of the value.
func (s FieldSchema) Present(data map[string]any, name string) bool {
	v, ok := data[name]
	if !ok || v == nil {
		return false
	}

	def, defined := s[name]
	if !defined {
		return presentByShape(v)
	}
	switch def.Type {
	case FieldTypeText, FieldTypeDate, FieldTypeSelect, FieldTypeUser:
		str, ok := v.(string)
		return ok && strings.TrimSpace(str) != ""
	case FieldTypeMultiSelect:
		items, ok := toStrings(v)
		return ok && slices.ContainsFunc(items, func(it string) bool { return strings.TrimSpace(it) != "" })
	case FieldTypeNumber, FieldTypeBoolean:
		return true
	}
	return presentByShape(v)
}

func presentByShape(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// Missing returns the names in required that are absent from data, in the
// order they were declared.
func (s FieldSchema) Missing(data map[string]any, required []string) []string {
	var missing []string
	for _, name := range required {
		if !s.Present(data, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Check validates the values in data against their definitions.
// Keys without a definition are kept as free-form data. Nil values are allowed.
func (s FieldSchema) Check(data map[string]any) []FieldError {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []FieldError
	for _, k := range keys {
		def, ok := s[k]
		if !ok || data[k] == nil {
			continue
		}
		if err := def.checkValue(data[k]); err != nil {
			errs = append(errs, FieldError{Field: "data." + k, Message: err.Error()})
		}
	}
	return errs
}

func (d FieldDefinition) checkValue(v any) error {
	switch d.Type {
	case FieldTypeText:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("must be text")
		}
		if d.Pattern != "" {
			re, err := regexp.Compile(d.Pattern)
			if err != nil {
				return fmt.Errorf("invalid pattern in field definition")
			}
			if str != "" && !re.MatchString(str) {
				return fmt.Errorf("does not match pattern %s", d.Pattern)
			}
		}
	case FieldTypeNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("must be a number")
		}
	case FieldTypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("must be a boolean")
		}
	case FieldTypeDate:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("must be a date string")
		}
		if str == "" {
			return nil
		}
		if _, err := time.Parse(time.DateOnly, str); err != nil {
			if _, err := time.Parse(time.RFC3339, str); err != nil {
				return fmt.Errorf("must be YYYY-MM-DD or RFC3339")
			}
		}
	case FieldTypeSelect:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("must be one of the options")
		}
		if str != "" && len(d.Options) > 0 && !slices.Contains(d.Options, str) {
			return fmt.Errorf("%q is not an option", str)
		}
	case FieldTypeMultiSelect:
		items, ok := toStrings(v)
		if !ok {
			return fmt.Errorf("must be a list of options")
		}
		for _, it := range items {
			if len(d.Options) > 0 && !slices.Contains(d.Options, it) {
				return fmt.Errorf("%q is not an option", it)
			}
		}
	case FieldTypeUser:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("must be a user id")
		}
		if str == "" {
			return nil
		}
		if _, err := uuid.Parse(str); err != nil {
			return fmt.Errorf("must be a user id")
		}
	}
	return nil
}

// Validate checks a definition itself before it is stored.
func (d FieldDefinition) Validate() []FieldError {
	var errs []FieldError
	if d.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if !d.Type.IsValid() {
		errs = append(errs, FieldError{Field: "type", Message: "unknown field type"})
	}
	if (d.Type == FieldTypeSelect || d.Type == FieldTypeMultiSelect) && len(d.Options) == 0 {
		errs = append(errs, FieldError{Field: "options", Message: "required for select fields"})
	}
	if d.Pattern != "" {
		if _, err := regexp.Compile(d.Pattern); err != nil {
			errs = append(errs, FieldError{Field: "pattern", Message: "invalid regular expression"})
		}
	}
	return errs
}

func toStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
