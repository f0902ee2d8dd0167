package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processes of the organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			procs, err := c.ListProcesses(cmd.Context(), inactive)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return rootOpts.writeJSON(cmd.OutOrStdout(), procs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tSTATES")
			for _, p := range procs {
				names := make([]string, 0, len(p.States))
				for _, s := range p.States {
					names = append(names, s.Name)
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.ID, p.Name, p.Active, strings.Join(names, " > "))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&inactive, "inactive", false, "include deactivated processes")

	return cmd
}
