package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove superseded, orphaned and stale notifications once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := open(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := notifications.NewService(db, nil).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return writeSweep(cmd.OutOrStdout(), rootOpts.Format, report)
		},
	}
}

func writeSweep(w io.Writer, format string, r notifications.Report) error {
	if format == "json" {
		return writeJSON(w, r)
	}
	_, err := fmt.Fprintf(w, "superseded: %d\norphaned: %d\nstale accepted: %d\ntotal: %d\n",
		r.Superseded, r.Orphaned, r.StaleAccepted, r.Total())
	return err
}
