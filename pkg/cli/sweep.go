package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/sitepass/pkg/sweeper"
)

func newSweepCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale invitations once and exit",
		Long: `Run one invitation sweep: every pending or accepted invitation whose
response window has closed is moved to expired. Suitable for an external
scheduler when the in-process sweep is disabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			s := sweeper.New(a.invitations,
				sweeper.WithLocker(a.locker()),
				sweeper.WithLogger(logger),
			)
			n, err := s.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d invitation(s)\n", n)
			return nil
		},
	}
}
