package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewReorderCommand creates the reorder command.
func NewReorderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reorder <process-id> <state-name>...",
		Short: "Set the column order of a process",
		Long: `Set the display order of the states of a process. Every state must be
named exactly once; transitions are not affected.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			processID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid process id %q: %w", args[0], err)
			}
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			g, err := c.GetProcess(cmd.Context(), processID)
			if err != nil {
				return err
			}

			ordered := make([]uuid.UUID, 0, len(args)-1)
			for _, name := range args[1:] {
				st, ok := g.StateByName(name)
				if !ok {
					return fmt.Errorf("process %q has no state %q", g.Process.Name, name)
				}
				ordered = append(ordered, st.ID)
			}

			if err := c.ReorderStates(cmd.Context(), processID, ordered); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reordered %d states of %s\n", len(ordered), g.Process.Name)
			return nil
		},
	}

	return cmd
}
