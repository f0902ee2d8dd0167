// Package cli implements processctl, the administration tool for process
// definitions.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/qms-backend/pkg/client"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server       string
	Token        string
	Tenant       string
	TenantHeader string
	Format       string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for processctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "processctl",
		Short: "Manage QMS process definitions",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("QMS_SERVER", "http://localhost:8080"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("QMS_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&opts.Tenant, "tenant", os.Getenv("QMS_TENANT"), "organization id sent with every request")
	cmd.PersistentFlags().StringVar(&opts.TenantHeader, "tenant-header", client.DefaultTenantHeader, "organization header name")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewReorderCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) client() (*client.Client, error) {
	opts := []client.Option{client.WithToken(o.Token)}
	if o.Tenant != "" {
		id, err := uuid.Parse(o.Tenant)
		if err != nil {
			return nil, fmt.Errorf("invalid tenant %q: %w", o.Tenant, err)
		}
		opts = append(opts, client.WithTenant(id, o.TenantHeader))
	}
	return client.New(o.Server, opts...), nil
}

func (o *RootOptions) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
