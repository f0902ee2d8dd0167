// Package processdef reads board definitions from YAML files. A file holds
// one or more documents separated by "---", each describing a process with
// its field schema and its states in board order:
//
//	name: Deviation
//	category: quality
//	fields:
//	  - name: reviewer
//	    type: user
//	states:
//	  - name: Open
//	    initial: true
//	    next: [Review]
//	  - name: Review
//	    next: [Closed]
//	    required: [reviewer]
//	  - name: Closed
//	    final: true
package processdef

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/internal/service/process"
)

// Field is one entry of the field schema.
type Field struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Label   string   `yaml:"label,omitempty"`
	Options []string `yaml:"options,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`
}

// State is one column of the board.
type State struct {
	Name     string   `yaml:"name"`
	Color    string   `yaml:"color,omitempty"`
	Initial  bool     `yaml:"initial,omitempty"`
	Final    bool     `yaml:"final,omitempty"`
	Next     []string `yaml:"next,omitempty"`
	Required []string `yaml:"required,omitempty"`
}

// Definition is a complete process definition.
type Definition struct {
	Name     string  `yaml:"name"`
	Category string  `yaml:"category,omitempty"`
	Fields   []Field `yaml:"fields,omitempty"`
	States   []State `yaml:"states"`
}

// Parse decodes every document in r. Unknown keys are rejected.
func Parse(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var defs []Definition
	for i := 0; ; i++ {
		var d Definition
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("processdef: document %d: %w", i+1, err)
		}
		if err := d.check(); err != nil {
			return nil, fmt.Errorf("processdef: document %d: %w", i+1, err)
		}
		defs = append(defs, d)
	}

	if len(defs) == 0 {
		return nil, errors.New("processdef: no definitions found")
	}
	return defs, nil
}

// Load parses the file at path.
func Load(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("processdef: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// check rejects what the YAML shape alone can express wrongly. Graph rules
// are enforced by the process service.
func (d Definition) check() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	for _, f := range d.Fields {
		if !domain.FieldType(f.Type).IsValid() {
			return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
	}
	seen := make(map[string]struct{}, len(d.States))
	for _, st := range d.States {
		if _, dup := seen[st.Name]; dup {
			return fmt.Errorf("duplicate state %q", st.Name)
		}
		seen[st.Name] = struct{}{}
	}
	return nil
}

// Input converts the definition into a process creation request.
func (d Definition) Input() process.CreateProcessInput {
	in := process.CreateProcessInput{
		Name:     d.Name,
		Category: d.Category,
		Fields:   make([]process.FieldInput, 0, len(d.Fields)),
		States:   make([]process.ProcessStateInput, 0, len(d.States)),
	}
	for _, f := range d.Fields {
		in.Fields = append(in.Fields, process.FieldInput{
			Name:    f.Name,
			Type:    domain.FieldType(f.Type),
			Label:   f.Label,
			Options: f.Options,
			Pattern: f.Pattern,
		})
	}
	for _, st := range d.States {
		in.States = append(in.States, process.ProcessStateInput{
			Name:           st.Name,
			Color:          st.Color,
			Initial:        st.Initial,
			Final:          st.Final,
			Next:           st.Next,
			RequiredFields: st.Required,
		})
	}
	return in
}

// FromGraph renders a stored process back into a definition, resolving
// transition targets to state names.
func FromGraph(g *domain.ProcessGraph) Definition {
	d := Definition{
		Name:     g.Process.Name,
		Category: g.Process.Category,
	}
	fieldNames := make([]string, 0, len(g.Fields))
	for name := range g.Fields {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)
	for _, name := range fieldNames {
		f := g.Fields[name]
		d.Fields = append(d.Fields, Field{
			Name:    f.Name,
			Type:    string(f.Type),
			Label:   f.Label,
			Options: f.Options,
			Pattern: f.Pattern,
		})
	}
	names := make(map[uuid.UUID]string, len(g.States))
	for _, st := range g.States {
		names[st.ID] = st.Name
	}
	for _, st := range g.States {
		s := State{
			Name:     st.Name,
			Color:    st.Color,
			Initial:  st.IsInitial,
			Final:    st.IsFinal,
			Required: st.RequiredFields,
		}
		for _, id := range st.AllowedNext {
			s.Next = append(s.Next, names[id])
		}
		d.States = append(d.States, s)
	}
	return d
}

// Encode writes defs as a multi-document YAML stream.
func Encode(w io.Writer, defs []Definition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, d := range defs {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("processdef: encode %q: %w", d.Name, err)
		}
	}
	return enc.Close()
}
