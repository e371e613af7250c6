package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/logging"
	"github.com/jasperwreed/unip/internal/mockserver"
)

func NewMockServerCommand() *cobra.Command {
	var addr string
	var latency time.Duration
	var mode string

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local stand-in for the analysis service",
		Long: `Serve the analysis API with deterministic heuristics instead of models.
Useful for trying the client without the real service.`,
		Example: `  # Serve on the default client URL
  unip mock-server

  # Simulate a slow GPU backend
  unip mock-server --addr :9000 --latency 3s --mode gpu`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logging.ParseLevel(logLevel, logging.LevelForEnv(envName))
			logger := logging.New(cmd.ErrOrStderr(), level, nil)

			srv := mockserver.New(
				mockserver.WithLogger(logger),
				mockserver.WithLatency(latency),
				mockserver.WithMode(mode),
			)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Delay added to every analysis request")
	cmd.Flags().StringVar(&mode, "mode", "cpu", "Processing mode reported in response metadata")

	return cmd
}
