package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/qms-backend/internal/auth"
	"github.com/heartmarshall/qms-backend/internal/config"
)

// NewTokenCommand creates the token command. It signs an access token with
// the server's AUTH_* settings, for local use and scripting.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		actor string
		admin bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token from the server's auth settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg config.AuthConfig
			if err := cleanenv.ReadEnv(&cfg); err != nil {
				return fmt.Errorf("read auth settings: %w", err)
			}

			id := auth.Identity{Role: auth.RoleUser}
			if admin {
				id.Role = auth.RoleAdmin
			}
			var err error
			if id.TenantID, err = uuid.Parse(rootOpts.Tenant); err != nil {
				return fmt.Errorf("--tenant: %w", err)
			}
			if actor == "" {
				id.ActorID = uuid.New()
			} else if id.ActorID, err = uuid.Parse(actor); err != nil {
				return fmt.Errorf("--actor: %w", err)
			}

			token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL).GenerateAccessToken(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "actor id (random when empty)")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")

	return cmd
}
