package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/audit"
)

// ErrAuditFailed is returned when the audit finds inconsistencies.
var ErrAuditFailed = errors.New("reputation audit found inconsistencies")

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var userID int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check every reputation score against its ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := open(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			auditor, err := audit.New(db)
			if err != nil {
				return err
			}

			var report audit.Report
			if userID > 0 {
				report.Users = 1
				report.Findings, err = auditor.User(cmd.Context(), userID)
			} else {
				report, err = auditor.Run(cmd.Context())
			}
			if err != nil {
				return err
			}

			if err := writeAudit(cmd.OutOrStdout(), rootOpts.Format, report); err != nil {
				return err
			}
			if !report.Clean() {
				return ErrAuditFailed
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&userID, "user", 0, "audit a single user")

	return cmd
}

func writeAudit(w io.Writer, format string, r audit.Report) error {
	if format == "json" {
		return writeJSON(w, r)
	}
	if _, err := fmt.Fprintf(w, "users: %d\nentries: %d\nfindings: %d\n", r.Users, r.Entries, len(r.Findings)); err != nil {
		return err
	}
	for _, f := range r.Findings {
		_, err := fmt.Fprintf(w, "  user %d: %s (stored %d, expected %d", f.UserID, f.Reason, f.Stored, f.Expected)
		if err == nil && f.EntryID != 0 {
			_, err = fmt.Fprintf(w, ", entry %d", f.EntryID)
		}
		if err == nil {
			_, err = fmt.Fprintln(w, ")")
		}
		if err != nil {
			return err
		}
	}
	return nil
}
