package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/config"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the forum daemon.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "forumd",
		Short:         "Q&A forum backend",
		Long:          "Serves the forum API and runs the vote, acceptance and reputation maintenance tasks.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "optional YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

// open loads the configuration and connects to the database it names.
func open(opts *RootOptions) (*config.Config, *database.Database, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
