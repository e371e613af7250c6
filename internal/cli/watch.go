package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/app"
	"github.com/jasperwreed/unip/internal/config"
	"github.com/jasperwreed/unip/internal/daemon"
	"github.com/jasperwreed/unip/internal/dashboard"
)

func NewWatchCommand() *cobra.Command {
	var existing bool
	var showStatus bool

	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Analyze files as they appear in a folder",
		Long: `Watch one or more folders and submit supported files once they stop
changing. Files are sent in batches; each batch becomes one history entry.`,
		Example: `  # Watch a folder
  unip watch ~/inbox

  # Also analyze files already in the folder
  unip watch ~/inbox --existing

  # Show the state of a running watcher
  unip watch --status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showStatus {
				return runWatchStatus(cmd.OutOrStdout())
			}
			if len(args) == 0 {
				return fmt.Errorf("at least one directory is required")
			}
			return runWatch(cmd, args, existing)
		},
	}

	cmd.Flags().BoolVar(&existing, "existing", false, "Also analyze files already present")
	cmd.Flags().BoolVar(&showStatus, "status", false, "Show the status of a running watcher and exit")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, existing bool) error {
	v := NewValidator()
	dirs := make([]string, 0, len(args))
	for _, arg := range args {
		dir, err := v.ResolvePath(arg)
		if err != nil {
			return err
		}
		if err := v.ValidateDirectory(dir); err != nil {
			return err
		}
		dirs = append(dirs, dir)
	}

	a, err := openApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	wcfg, err := a.WatchConfig(dirs, existing)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	d, err := daemon.NewWatchDaemon(wcfg, a.Runner,
		daemon.WithLogger(a.Logger),
		daemon.WithResultHandler(func(r daemon.BatchResult) {
			printBatch(out, r)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, dir := range dirs {
		fmt.Fprintf(out, "Watching %s\n", dir)
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if err := d.Run(cmd.Context()); err != nil {
		return err
	}

	m := d.Metrics()
	fmt.Fprintf(out, "Stopped: %d files analyzed, %d rejected, %d batches (%d failed)\n",
		m.FilesAnalyzed, m.FilesRejected, m.BatchesSent, m.BatchesFailed)
	return nil
}

func printBatch(w io.Writer, r daemon.BatchResult) {
	names := make([]string, len(r.Files))
	for i, f := range r.Files {
		names[i] = filepath.Base(f)
	}
	for _, rej := range r.Rejected {
		fmt.Fprintf(w, "Skipped %s\n", rej.Error())
	}
	if r.Err != nil {
		fmt.Fprintf(w, "✗ %s: %v\n", plural(len(names), "file", "files"), r.Err)
		return
	}
	stats := dashboard.Summarize(r.Entry.Results)
	sentiment := dashboard.Title(stats.DominantSentiment)
	if sentiment == "" {
		sentiment = "n/a"
	}
	fmt.Fprintf(w, "✓ %s analyzed [ID: %s] sentiment: %s\n", plural(r.Entry.FileCount, "file", "files"), r.Entry.ID, sentiment)
}

func runWatchStatus(w io.Writer) error {
	stateDir, err := config.Dir()
	if err != nil {
		return err
	}
	status, err := daemon.GetStatus(stateDir)
	if err != nil {
		return fmt.Errorf("failed to read watch status: %w", err)
	}

	fmt.Fprintf(w, "Status: %s\n", status.Status)
	if status.Status == "stopped" {
		return nil
	}
	fmt.Fprintf(w, "PID: %d\n", status.PID)
	for _, dir := range status.Directories {
		fmt.Fprintf(w, "Watching: %s\n", dir)
	}
	fmt.Fprintf(w, "Pending files: %d\n", status.Pending)
	if m := status.Metrics; m != nil {
		fmt.Fprintf(w, "Files seen: %d | analyzed: %d | rejected: %d\n", m.FilesSeen, m.FilesAnalyzed, m.FilesRejected)
		fmt.Fprintf(w, "Batches sent: %d | failed: %d\n", m.BatchesSent, m.BatchesFailed)
		if !m.StartTime.IsZero() {
			fmt.Fprintf(w, "Uptime: %s\n", time.Since(m.StartTime).Round(time.Second))
		}
	}
	fmt.Fprintf(w, "Updated: %s\n", status.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}
