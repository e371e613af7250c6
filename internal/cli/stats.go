package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/app"
	"github.com/jasperwreed/unip/internal/dashboard"
	"github.com/jasperwreed/unip/internal/storage"
)

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show statistics about past analyses",
		Long:  `Display totals across the local history: analyses, texts, files, sentiments and processing modes.`,
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.RequireStore()
	if err != nil {
		return err
	}

	stats, err := store.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "unip Statistics")
	fmt.Fprintln(out, "===============")
	fmt.Fprintf(out, "\nTotal Analyses: %d\n", stats.TotalEntries)
	fmt.Fprintf(out, "Total Texts: %d\n", stats.TotalTexts)
	fmt.Fprintf(out, "Total Files: %d\n", stats.TotalFiles)

	if len(stats.SentimentBreakdown) > 0 {
		fmt.Fprintln(out, "\nResults by Sentiment:")
		for _, label := range sortedKeys(stats.SentimentBreakdown) {
			fmt.Fprintf(out, "  %s: %d\n", dashboard.Title(label), stats.SentimentBreakdown[label])
		}
	}

	if len(stats.ModeBreakdown) > 0 {
		fmt.Fprintln(out, "\nAnalyses by Mode:")
		for _, mode := range sortedKeys(stats.ModeBreakdown) {
			fmt.Fprintf(out, "  %s: %d\n", mode, stats.ModeBreakdown[mode])
		}
	}

	return nil
}

func NewLastCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show the most recent result",
		Long:  `Show the result of the last completed analysis, as it was saved when the run finished.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.RequireStore()
			if err != nil {
				return err
			}

			entry, err := store.LoadCurrent(cmd.Context())
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No previous analysis.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load last result: %w", err)
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			printEntry(cmd.OutOrStdout(), *entry)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the entry as JSON")

	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
