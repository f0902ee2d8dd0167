package domain

import (
	"slices"
	"testing"
)

func TestFieldSchema_Present(t *testing.T) {
	t.Parallel()

	s := FieldSchema{}
	data := map[string]any{
		"zero":      float64(0),
		"false":     false,
		"empty":     "",
		"emptyList": []any{},
		"text":      "Ana",
		"nil":       nil,
		"list":      []any{"a"},
		"emptyStrs": []string{},
		"emptyMap":  map[string]any{},
	}

	tests := []struct {
		name string
		want bool
	}{
		{"zero", true},
		{"false", true},
		{"text", true},
		{"list", true},
		{"empty", false},
		{"emptyList", false},
		{"emptyStrs", false},
		{"emptyMap", false},
		{"nil", false},
		{"absent", false},
	}
	for _, tt := range tests {
		if got := s.Present(data, tt.name); got != tt.want {
			t.Errorf("Present(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFieldSchema_Present_UsesDefinitionType(t *testing.T) {
	t.Parallel()

	s := FieldSchema{
		"reviewer": {Name: "reviewer", Type: FieldTypeUser},
		"summary":  {Name: "summary", Type: FieldTypeText},
		"severity": {Name: "severity", Type: FieldTypeSelect, Options: []string{"minor", "major"}},
		"due":      {Name: "due", Type: FieldTypeDate},
		"areas":    {Name: "areas", Type: FieldTypeMultiSelect, Options: []string{"iso", "ops"}},
		"score":    {Name: "score", Type: FieldTypeNumber},
		"signed":   {Name: "signed", Type: FieldTypeBoolean},
	}

	tests := []struct {
		name  string
		field string
		value any
		want  bool
	}{
		{"blank text", "summary", "   ", false},
		{"text", "summary", "root cause found", true},
		{"text holding a number", "summary", float64(3), false},
		{"blank user", "reviewer", "\t", false},
		{"user", "reviewer", "2f7c1f3e-5d0b-4f7e-9a55-2f0b2c1f6a10", true},
		{"blank select", "severity", " ", false},
		{"select", "severity", "major", true},
		{"blank date", "due", "", false},
		{"date", "due", "2025-03-01", true},
		{"empty multiselect", "areas", []any{}, false},
		{"blank multiselect items", "areas", []any{" "}, false},
		{"multiselect", "areas", []any{"iso"}, true},
		{"zero number", "score", float64(0), true},
		{"false boolean", "signed", false, true},
		{"undefined blank text", "notes", "  ", false},
	}
	for _, tt := range tests {
		data := map[string]any{tt.field: tt.value}
		if got := s.Present(data, tt.field); got != tt.want {
			t.Errorf("%s: Present(%s=%v) = %v, want %v", tt.name, tt.field, tt.value, got, tt.want)
		}
	}
}

func TestFieldSchema_Missing_KeepsDeclarationOrder(t *testing.T) {
	t.Parallel()

	got := FieldSchema{}.Missing(map[string]any{"b": "x"}, []string{"c", "b", "a"})
	if !slices.Equal(got, []string{"c", "a"}) {
		t.Fatalf("Missing() = %v", got)
	}
}

func TestFieldSchema_Check(t *testing.T) {
	t.Parallel()

	s := FieldSchema{
		"code":     {Name: "code", Type: FieldTypeText, Pattern: `^QA-\d+$`},
		"score":    {Name: "score", Type: FieldTypeNumber},
		"approved": {Name: "approved", Type: FieldTypeBoolean},
		"due":      {Name: "due", Type: FieldTypeDate},
		"severity": {Name: "severity", Type: FieldTypeSelect, Options: []string{"minor", "major"}},
		"areas":    {Name: "areas", Type: FieldTypeMultiSelect, Options: []string{"ops", "hr"}},
		"owner":    {Name: "owner", Type: FieldTypeUser},
	}

	valid := map[string]any{
		"code":     "QA-12",
		"score":    float64(3),
		"approved": false,
		"due":      "2026-03-01",
		"severity": "major",
		"areas":    []any{"ops"},
		"owner":    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"free":     map[string]any{"any": "thing"},
		"cleared":  nil,
	}
	if errs := s.Check(valid); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	invalid := map[string]any{
		"code":     "X-1",
		"score":    "three",
		"approved": "yes",
		"due":      "01/03/2026",
		"severity": "critical",
		"areas":    []any{"ops", 3},
		"owner":    "ana",
	}
	errs := s.Check(invalid)
	if len(errs) != len(invalid) {
		t.Fatalf("expected %d errors, got %d: %v", len(invalid), len(errs), errs)
	}
	if errs[0].Field != "data.approved" {
		t.Errorf("errors should be sorted by key, first = %s", errs[0].Field)
	}
}

func TestFieldDefinition_Validate(t *testing.T) {
	t.Parallel()

	if errs := (FieldDefinition{Name: "x", Type: FieldTypeText}).Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	errs := (FieldDefinition{Type: FieldTypeSelect, Pattern: "("}).Validate()
	if len(errs) != 3 {
		t.Fatalf("expected name, options and pattern errors, got %v", errs)
	}
	if errs := (FieldDefinition{Name: "x", Type: "json"}).Validate(); len(errs) != 1 {
		t.Fatalf("expected type error, got %v", errs)
	}
}
