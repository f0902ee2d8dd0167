package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/qms-backend/internal/processdef"
	"github.com/heartmarshall/qms-backend/pkg/client"
)

// ApplyResult reports what happened to one definition.
type ApplyResult struct {
	Name   string `json:"name"`
	ID     string `json:"id,omitempty"`
	Status string `json:"status"` // created | exists | valid
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		file   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "apply -f <board.yaml>",
		Short: "Create processes from a YAML definition file",
		Long: `Create every process defined in a YAML file. A file may hold several
documents separated by "---". Processes that already exist by name are left
untouched. With --dry-run the file is only validated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := processdef.Load(file)
			if err != nil {
				return err
			}
			if dryRun {
				results := make([]ApplyResult, 0, len(defs))
				for _, d := range defs {
					results = append(results, ApplyResult{Name: d.Name, Status: "valid"})
				}
				return rootOpts.printApply(cmd.OutOrStdout(), results)
			}

			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			results, err := apply(cmd, c, defs)
			if perr := rootOpts.printApply(cmd.OutOrStdout(), results); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "definition file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func apply(cmd *cobra.Command, c *client.Client, defs []processdef.Definition) ([]ApplyResult, error) {
	ctx := cmd.Context()

	existing, err := c.ListProcesses(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	byName := make(map[string]string, len(existing))
	for _, p := range existing {
		byName[p.Name] = p.ID.String()
	}

	results := make([]ApplyResult, 0, len(defs))
	for _, d := range defs {
		if id, ok := byName[d.Name]; ok {
			results = append(results, ApplyResult{Name: d.Name, ID: id, Status: "exists"})
			continue
		}
		g, err := c.CreateProcess(ctx, createRequest(d))
		if err != nil {
			return results, fmt.Errorf("create %q: %w", d.Name, err)
		}
		results = append(results, ApplyResult{Name: d.Name, ID: g.Process.ID.String(), Status: "created"})
	}
	return results, nil
}

func createRequest(d processdef.Definition) client.CreateProcessRequest {
	in := d.Input()
	req := client.CreateProcessRequest{Name: in.Name, Category: in.Category}
	for _, f := range in.Fields {
		req.Fields = append(req.Fields, client.Field{
			Name:    f.Name,
			Type:    f.Type.String(),
			Label:   f.Label,
			Options: f.Options,
			Pattern: f.Pattern,
		})
	}
	for _, s := range in.States {
		req.States = append(req.States, client.ProcessState{
			Name:           s.Name,
			Color:          s.Color,
			Initial:        s.Initial,
			Final:          s.Final,
			Next:           s.Next,
			RequiredFields: s.RequiredFields,
		})
	}
	return req
}

func (o *RootOptions) printApply(w io.Writer, results []ApplyResult) error {
	if o.Format == "json" {
		return o.writeJSON(w, results)
	}
	for _, r := range results {
		if r.ID != "" {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Status, r.ID, r.Name)
		} else {
			fmt.Fprintf(w, "%s\t%s\n", r.Status, r.Name)
		}
	}
	return nil
}
