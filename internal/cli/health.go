package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/app"
	"github.com/jasperwreed/unip/internal/client"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/scheduler"
)

func NewHealthCommand() *cobra.Command {
	var every string
	var follow bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the analysis service is up",
		Long: `Query the service health endpoint once, or keep polling it on a schedule.
The schedule is an interval such as 30s or a cron expression.`,
		Example: `  # Check once
  unip health

  # Poll every 30 seconds until interrupted
  unip health --every 30s

  # Poll on the schedule from the config file
  unip health --follow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{NoStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if every == "" && follow {
				every = a.Config.Health.Every
			}
			if every == "" {
				return checkHealth(cmd.Context(), cmd.OutOrStdout(), a.Client)
			}
			return pollHealth(cmd.Context(), cmd.OutOrStdout(), a, every)
		},
	}

	cmd.Flags().StringVar(&every, "every", "", "Poll on this schedule (interval or cron expression)")
	cmd.Flags().BoolVar(&follow, "follow", false, "Poll on the configured health schedule")

	return cmd
}

func checkHealth(ctx context.Context, w io.Writer, c *client.Client) error {
	start := time.Now()
	h, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintf(w, "%s  unavailable  %v\n", time.Now().Format("15:04:05"), err)
		return fmt.Errorf("health check failed: %w", err)
	}
	fmt.Fprintf(w, "%s  %s  service=%s  latency=%s\n",
		time.Now().Format("15:04:05"), h.Status, h.Service, time.Since(start).Round(time.Millisecond))
	return nil
}

func pollHealth(ctx context.Context, w io.Writer, a *app.App, every string) error {
	s := scheduler.New(
		scheduler.WithLogger(a.Logger),
		scheduler.WithJobTimeout(a.Config.Timeout.Std()),
	)

	job := func(ctx context.Context) error {
		return checkHealth(ctx, w, a.Client)
	}
	if err := s.AddJob("health", every, job); err != nil {
		return err
	}

	fmt.Fprintf(w, "Polling %s on schedule %q (Ctrl+C to stop)\n", a.Client.BaseURL(), every)
	_ = s.RunNow(ctx, "health", job)

	s.Start()
	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}

func NewMetaCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Show service capabilities",
		Long:  `Show the service version, supported tasks and formats, batch limits and models.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app.Options{NoStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			meta, err := a.Client.Meta(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get service metadata: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), meta)
			}

			out := cmd.OutOrStdout()
			caps := meta.Capabilities
			fmt.Fprintf(out, "Service: %s\n", a.Client.BaseURL())
			fmt.Fprintf(out, "Version: %s\n", meta.Version)
			fmt.Fprintf(out, "Pipeline: %s\n", meta.PipelineVersion)
			fmt.Fprintf(out, "\nTasks: %s\n", strings.Join(caps.NLPTasks, ", "))
			fmt.Fprintf(out, "Formats: %s\n", strings.Join(caps.SupportedFormats, ", "))
			if caps.BatchProcessing {
				fmt.Fprintf(out, "Batch processing: up to %d texts\n", caps.MaxBatchSize)
			} else {
				fmt.Fprintln(out, "Batch processing: unavailable")
			}

			if len(meta.Models) > 0 {
				fmt.Fprintln(out, "\nModels:")
				names := make([]string, 0, len(meta.Models))
				for task := range meta.Models {
					names = append(names, task)
				}
				sort.Strings(names)
				for _, task := range names {
					fmt.Fprintf(out, "  %s: %s\n", task, models.DescribeModel(meta.Models[task]))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response as JSON")

	return cmd
}
