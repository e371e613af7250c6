package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/app"
	"github.com/jasperwreed/unip/internal/dashboard"
	"github.com/jasperwreed/unip/internal/history"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/search"
	"github.com/jasperwreed/unip/internal/tui"
)

func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage past analyses",
		Long:  `List, show, export and delete analyses kept in the local history.`,
		Example: `  # List recent analyses
  unip history list

  # Show one analysis in full
  unip history show 0192f3c4

  # Find negative analyses that mention shipping
  unip history search shipping --sentiment negative

  # Export an analysis to a file
  unip history export 0192f3c4 --output result.json

  # Browse history interactively
  unip history browse`,
	}

	cmd.AddCommand(
		newHistoryListCommand(),
		newHistoryShowCommand(),
		newHistorySearchCommand(),
		newHistoryDeleteCommand(),
		newHistoryClearCommand(),
		newHistoryExportCommand(),
		newHistoryBrowseCommand(),
	)

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List past analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			return runHistoryList(cmd, a.History, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of analyses to list (0 for all)")

	return cmd
}

func runHistoryList(cmd *cobra.Command, h *history.Store, limit int) error {
	out := cmd.OutOrStdout()
	entries := h.Newest()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No analyses found.")
		return nil
	}

	fmt.Fprintf(out, "Analysis history (%d):\n\n", len(entries))

	for i, e := range entries {
		if limit > 0 && i >= limit {
			fmt.Fprintf(out, "... %d more\n", len(entries)-limit)
			break
		}
		stats := dashboard.Summarize(e.Results)
		fmt.Fprintf(out, "Analysis #%d [ID: %s]\n", len(entries)-i, e.ID)
		fmt.Fprintf(out, "  %s", plural(textCount(e), "text", "texts"))
		if e.FileCount > 0 {
			fmt.Fprintf(out, " | Files: %s", strings.Join(e.FileNames, ", "))
		}
		if stats.DominantSentiment != "" {
			fmt.Fprintf(out, " | Sentiment: %s", dashboard.Title(stats.DominantSentiment))
		}
		if t := e.CreatedAt(); !t.IsZero() {
			fmt.Fprintf(out, "\n  Created: %s", t.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out)
	}

	return nil
}

func newHistoryShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one analysis",
		Long:  `Show one analysis. Any unique prefix of the ID is accepted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := findEntry(a.History, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			printEntry(cmd.OutOrStdout(), entry)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the entry as JSON")

	return cmd
}

func newHistorySearchCommand() *cobra.Command {
	var limit int
	var sentiment string
	var filesOnly bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search past analyses",
		Long: `Search texts, keywords, topics, summaries and file names of past analyses.
Every word of the query must match; entries matching more fields come first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := search.NewSearcher(a.History).SearchWithFilters(query, limit, search.Filters{
				Sentiment: sentiment,
				Files:     filesOnly,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching analyses.")
				return nil
			}

			fmt.Fprintf(out, "Found %d matching analyses:\n\n", len(results))
			for _, r := range results {
				fmt.Fprintf(out, "[ID: %s] %s", r.Entry.ID, plural(textCount(r.Entry), "text", "texts"))
				if t := r.Entry.CreatedAt(); !t.IsZero() {
					fmt.Fprintf(out, " | %s", t.Local().Format("2006-01-02 15:04"))
				}
				fmt.Fprintln(out)
				if r.Snippet != "" {
					fmt.Fprintf(out, "  %s\n", r.Snippet)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	cmd.Flags().StringVar(&sentiment, "sentiment", "", "Only analyses with a result of this sentiment")
	cmd.Flags().BoolVar(&filesOnly, "files", false, "Only file analyses")

	return cmd
}

func newHistoryDeleteCommand() *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := findEntry(a.History, args[0])
			if err != nil {
				return err
			}

			if !skipConfirm && !confirm(cmd, fmt.Sprintf("Delete analysis %s (%s)?", entry.ID, plural(textCount(entry), "text", "texts"))) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}

			a.History.Remove(entry.ID)
			if err := a.History.LastPersistError(); err != nil {
				return fmt.Errorf("failed to delete analysis: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted analysis (ID: %s)\n", entry.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipConfirm, "yes", false, "Skip confirmation prompt")

	return cmd
}

func newHistoryClearCommand() *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			n := a.History.Len()
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "History is already empty.")
				return nil
			}

			if !skipConfirm && !confirm(cmd, fmt.Sprintf("Delete all %d analyses?", n)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}

			a.History.Clear()
			if err := a.History.LastPersistError(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %d analyses\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipConfirm, "yes", false, "Skip confirmation prompt")

	return cmd
}

func newHistoryExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export one analysis as JSON",
		Example: `  # Print to stdout
  unip history export 0192f3c4

  # Write to a file
  unip history export 0192f3c4 --output result.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := findEntry(a.History, args[0])
			if err != nil {
				return err
			}
			if output == "" {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			if err := exportEntry(entry, output); err != nil {
				return fmt.Errorf("failed to export analysis: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported analysis to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

func newHistoryBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse history in the terminal UI",
		Long: `Open an interactive browser over past analyses. Select an entry to see
its dashboard; press ? inside the browser for key bindings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			theme := a.Theme(ctx)
			if theme == "" {
				theme = tui.ThemeDark
			}

			return tui.NewBrowser(a.History, theme).
				WithExporter(exportEntry).
				WithThemeSetter(func(t string) error {
					store, err := a.RequireStore()
					if err != nil {
						return err
					}
					return store.SetTheme(ctx, t)
				}).
				Run()
		},
	}
}

// findEntry resolves an exact ID or a unique ID prefix.
func findEntry(h *history.Store, id string) (models.HistoryEntry, error) {
	if e, ok := h.Get(id); ok {
		return e, nil
	}

	var matches []models.HistoryEntry
	for _, e := range h.Entries() {
		if strings.HasPrefix(e.ID, id) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return models.HistoryEntry{}, fmt.Errorf("analysis not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return models.HistoryEntry{}, fmt.Errorf("ambiguous ID %q matches %d analyses", id, len(matches))
	}
}
