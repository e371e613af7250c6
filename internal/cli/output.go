package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/dashboard"
	"github.com/jasperwreed/unip/internal/models"
)

const barWidth = 30

// printEntry writes the full text dashboard for one history entry.
func printEntry(w io.Writer, e models.HistoryEntry) {
	stats := dashboard.Summarize(e.Results)

	fmt.Fprintf(w, "Analysis %s\n", e.ID)
	if t := e.CreatedAt(); !t.IsZero() {
		fmt.Fprintf(w, "Created: %s\n", t.Local().Format("2006-01-02 15:04:05"))
	}
	if e.ProcessingInfo != nil && e.ProcessingInfo.Mode != "" {
		fmt.Fprintf(w, "Mode: %s\n", e.ProcessingInfo.Mode)
	}
	if e.Timing != nil {
		fmt.Fprintf(w, "Elapsed: %dms\n", e.Timing.FrontendMs)
	}
	if len(e.FileNames) > 0 {
		fmt.Fprintf(w, "Files: %s\n", strings.Join(e.FileNames, ", "))
	}
	if e.ProcessingInfo != nil {
		for _, warn := range e.ProcessingInfo.Warnings {
			fmt.Fprintf(w, "Warning: %s\n", warn)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, dashboard.RenderOverview(stats, barWidth))
	fmt.Fprintln(w)
	fmt.Fprint(w, dashboard.RenderKeywords(stats, barWidth))
	fmt.Fprintln(w)
	fmt.Fprint(w, dashboard.RenderInsights(stats))

	if len(e.Results) > 0 {
		fmt.Fprintln(w)
		for i, r := range e.Results {
			fmt.Fprint(w, dashboard.RenderResult(i, r))
		}
	}
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

// exportEntry writes e as indented JSON to path.
func exportEntry(e models.HistoryEntry, path string) error {
	output, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	return os.WriteFile(path, append(output, '\n'), 0o644)
}

// confirm asks a yes/no question on the command's streams.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	response = strings.TrimSpace(response)
	return response == "y" || response == "Y"
}

func textCount(e models.HistoryEntry) int {
	if e.TextCount > 0 {
		return e.TextCount
	}
	return len(e.Results)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
