package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/sitepass/pkg/config"
	"github.com/platinummonkey/sitepass/pkg/observability"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=..."
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand creates the sitepass command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "sitepass",
		Short: "Sitepass - construction project access control",
		Long: `Sitepass manages who may work on a construction project: invitations,
access approval, the project team and per-action authorization, with an
append-only audit trail of every decision.

Examples:
  # Apply the schema and start the API
  sitepass migrate
  sitepass serve

  # Make the first admin of a new project
  sitepass bootstrap-admin --project tower-a --user u-123 --email pm@gc.example`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default $SITEPASS_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSweepCommand(opts),
		newBootstrapAdminCommand(opts),
		newTokenCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree against os.Args
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (o *rootOptions) load() (*config.Config, *observability.Logger, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("SITEPASS_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}
	return cfg, observability.NewLogger(cfg.Observability.Level(), os.Stderr), nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sitepass", Version)
		},
	}
}
