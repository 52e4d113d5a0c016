package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/sitepass/pkg/catalog"
)

type bootstrapOptions struct {
	projectID string
	userID    string
	email     string
	name      string
	company   string
	phone     string
}

func newBootstrapAdminCommand(root *rootOptions) *cobra.Command {
	opts := &bootstrapOptions{}

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Make a user the first admin of a project",
		Long: `Create the owner membership of a project that has never had members.
Every later change goes through invitations or an existing admin; the
command refuses once the project has any membership, active or removed.

Example:
  sitepass bootstrap-admin --project tower-a --user u-123 --email pm@gc.example`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.projectID == "" || opts.userID == "" {
				return errors.New("--project and --user are required")
			}
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			member, err := a.registry.Bootstrap(cmd.Context(), opts.projectID, opts.userID, catalog.Profile{
				CompanyName:  opts.company,
				ContactName:  opts.name,
				ContactEmail: opts.email,
				ContactPhone: opts.phone,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(member)
		},
	}
	cmd.Flags().StringVar(&opts.projectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id of the new admin")
	cmd.Flags().StringVar(&opts.email, "email", "", "contact email")
	cmd.Flags().StringVar(&opts.name, "name", "", "contact name")
	cmd.Flags().StringVar(&opts.company, "company", "", "company name")
	cmd.Flags().StringVar(&opts.phone, "phone", "", "contact phone")
	return cmd
}
