package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/sitepass/pkg/middleware"
)

func newTokenCommand(root *rootOptions) *cobra.Command {
	var p middleware.Principal
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the configured JWT secret",
		Long: `Mint an HS256 bearer token for local development and tests. Deployments
that verify tokens through OIDC do not accept these.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.UserID == "" {
				return errors.New("--user is required")
			}
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("no JWT secret is configured")
			}
			token, err := middleware.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer).Sign(p, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.UserID, "user", "", "subject user id")
	cmd.Flags().StringVar(&p.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&p.Name, "name", "", "name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
