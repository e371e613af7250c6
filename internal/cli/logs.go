package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/audit"
)

func NewLogsCommand() *cobra.Command {
	var limit int
	var asJSON bool
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the request audit trail",
		Long: `Show recorded exchanges with the analysis service, oldest first. Each line
carries the correlation ID that the service logged for the same request.`,
		Example: `  # Last 50 requests
  unip logs

  # Only failures, as JSON
  unip logs --failed --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := cfg.Audit.Dir
			if dir == "" {
				dir, err = audit.DefaultDir()
				if err != nil {
					return err
				}
			}

			entries, err := audit.ReadEntries(dir, 0)
			if err != nil {
				return fmt.Errorf("failed to read audit trail: %w", err)
			}

			if failedOnly {
				kept := entries[:0]
				for _, e := range entries {
					if e.ErrorKind != "" || e.Status >= 400 {
						kept = append(kept, e)
					}
				}
				entries = kept
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No requests recorded.")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-4s %-22s %3d  %5dms  %s",
					e.Time.Local().Format("2006-01-02 15:04:05"), e.Method, e.Path, e.Status, e.DurationMs, e.CorrelationID)
				if e.Error != "" {
					fmt.Fprintf(out, "  %s: %s", e.ErrorKind, e.Error)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Show at most this many of the latest requests (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed requests")

	return cmd
}
