package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/internal/processdef"
	"github.com/heartmarshall/qms-backend/pkg/client"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <process-id>...",
		Short: "Print processes as a YAML definition file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			defs := make([]processdef.Definition, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid process id %q: %w", arg, err)
				}
				g, err := c.GetProcess(cmd.Context(), id)
				if err != nil {
					return err
				}
				defs = append(defs, processdef.FromGraph(domainGraph(g)))
			}
			return processdef.Encode(cmd.OutOrStdout(), defs)
		},
	}

	return cmd
}

// domainGraph rebuilds the graph read model from its API form.
func domainGraph(g *client.Graph) *domain.ProcessGraph {
	p := domain.Process{
		ID:       g.Process.ID,
		Name:     g.Process.Name,
		Category: g.Process.Category,
		Active:   g.Process.Active,
	}
	states := make([]domain.State, 0, len(g.States))
	for _, s := range g.States {
		states = append(states, domain.State{
			ID:             s.ID,
			ProcessID:      p.ID,
			Name:           s.Name,
			Color:          s.Color,
			Order:          s.Order,
			IsInitial:      s.Initial,
			IsFinal:        s.Final,
			AllowedNext:    s.AllowedNext,
			RequiredFields: s.RequiredFields,
		})
	}
	fields := make(domain.FieldSchema, len(g.Fields))
	for _, f := range g.Fields {
		fields[f.Name] = domain.FieldDefinition{
			ProcessID: p.ID,
			Name:      f.Name,
			Type:      domain.FieldType(f.Type),
			Label:     f.Label,
			Options:   f.Options,
			Pattern:   f.Pattern,
		}
	}
	return domain.NewProcessGraph(p, states, fields)
}
