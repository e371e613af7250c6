package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/analysis"
	"github.com/jasperwreed/unip/internal/app"
	"github.com/jasperwreed/unip/internal/extract"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/security"
	"github.com/jasperwreed/unip/internal/tui"
)

type analyzeOptions struct {
	files  []string
	url    string
	stdin  bool
	tasks  []string
	useTUI bool
	asJSON bool
}

func NewAnalyzeCommand() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Analyze texts or files",
		Long: `Send texts or documents to the analysis service and show the results.
Each argument is analyzed as a separate text. Files are uploaded in one
request; files that fail validation are skipped and reported.`,
		Example: `  # Analyze two texts
  unip analyze "I love this product" "The delivery was late"

  # Analyze files with a live progress view
  unip analyze --file notes.txt --file talk.srt --tui

  # Analyze a web article, keywords and summary only
  unip analyze --url https://example.com/post --tasks keywords,summary

  # Pipe text in and get JSON out
  cat review.txt | unip analyze --stdin --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, "File to analyze (repeatable)")
	cmd.Flags().StringVar(&opts.url, "url", "", "Fetch a web page and analyze its article text")
	cmd.Flags().BoolVar(&opts.stdin, "stdin", false, "Read one text from standard input")
	cmd.Flags().StringSliceVar(&opts.tasks, "tasks", nil, "Tasks to run: sentiment,keywords,topics,summary (default: all)")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "Show live progress and an interactive dashboard")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the history entry as JSON")

	return cmd
}

func runAnalyze(cmd *cobra.Command, texts []string, opts analyzeOptions) error {
	v := NewValidator()

	tasks := make([]string, len(opts.tasks))
	for i, t := range opts.tasks {
		tasks[i] = strings.ToLower(strings.TrimSpace(t))
	}
	if err := v.ValidateTasks(tasks); err != nil {
		return err
	}

	if len(opts.files) > 0 && (len(texts) > 0 || opts.url != "" || opts.stdin) {
		return fmt.Errorf("--file cannot be combined with text, --url or --stdin")
	}

	var paths []string
	for _, f := range opts.files {
		p, err := v.ResolvePath(f)
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}

	stderr := cmd.ErrOrStderr()
	appOpts := app.Options{}
	if !opts.useTUI {
		appOpts.Listener = progressPrinter(stderr)
	}

	a, err := openApp(cmd, appOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if opts.stdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		texts = append(texts, string(data))
	}

	if opts.url != "" {
		hc := &http.Client{Timeout: a.Config.Timeout.Std()}
		article, err := extract.URL(ctx, hc, opts.url)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", opts.url, err)
		}
		fmt.Fprintf(stderr, "Fetched %q (%d characters)\n", article.Title, utf8.RuneCountInString(article.Text))
		texts = append(texts, article.Text)
	}

	if len(paths) == 0 && len(texts) == 0 {
		return fmt.Errorf("nothing to analyze: pass text arguments, --file, --url or --stdin")
	}

	if len(paths) > 0 && !opts.useTUI && !opts.asJSON {
		previewFiles(ctx, stderr, paths, a.Limits())
	}

	var rejected []security.ValidationError
	submit := func(ctx context.Context) (*models.HistoryEntry, error) {
		if len(paths) > 0 {
			entry, rej, err := a.Runner.SubmitFiles(ctx, paths, tasks)
			rejected = rej
			return entry, err
		}
		return a.Runner.SubmitTexts(ctx, texts, tasks)
	}

	var entry *models.HistoryEntry
	if opts.useTUI {
		theme := a.Theme(ctx)
		if theme == "" {
			theme = tui.ThemeDark
		}
		entry, err = tui.RunAnalyze(ctx, a.Runner, submit, tui.AnalyzeOptions{
			Theme:       theme,
			Tasks:       tasks,
			RevealDelay: a.RevealDelay(),
		})
		printRejected(stderr, rejected)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	} else {
		entry, err = submit(ctx)
		printRejected(stderr, rejected)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	}

	if err := a.History.LastPersistError(); err != nil {
		fmt.Fprintf(stderr, "Warning: history not saved: %v\n", err)
	}

	if opts.asJSON {
		return printJSON(cmd.OutOrStdout(), entry)
	}
	if !opts.useTUI {
		printEntry(cmd.OutOrStdout(), *entry)
	}
	return nil
}

// progressPrinter logs each new progress message on its own line.
func progressPrinter(w io.Writer) analysis.Listener {
	var last string
	return func(s models.ProgressState) {
		if !s.Loading || s.Message == "" || s.Message == last {
			return
		}
		last = s.Message
		fmt.Fprintf(w, "[%3d%%] %s\n", s.Percent, s.Message)
	}
}

// previewFiles shows what will be sent for each file. Files the extractor
// cannot read are left to the upload validation to report.
func previewFiles(ctx context.Context, w io.Writer, paths []string, limits security.Limits) {
	for _, p := range paths {
		doc, err := extract.File(ctx, p)
		if err != nil {
			continue
		}
		n := utf8.RuneCountInString(doc.Text)
		fmt.Fprintf(w, "%s (%d characters): %s\n", doc.Name, n, extract.Preview(doc.Text, 60))
		if limits.MaxTextLength > 0 && n > limits.MaxTextLength {
			fmt.Fprintf(w, "Warning: %s exceeds %d characters and may be truncated by the service\n", doc.Name, limits.MaxTextLength)
		}
	}
}

func printRejected(w io.Writer, rejected []security.ValidationError) {
	for _, r := range rejected {
		fmt.Fprintf(w, "Skipped %s\n", r.Error())
	}
}
