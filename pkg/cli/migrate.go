package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema to the configured store",
		Long: `Create the invitation, team and audit tables and their indexes.
Running it again is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			db, err := sqldb.Open(cmd.Context(), cfg.Database.SQL())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.WithField("driver", string(db.Dialect())).Info("Schema is up to date")
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
