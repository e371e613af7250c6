package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/app"
	"github.com/jasperwreed/unip/internal/config"
)

var (
	configPath string
	apiURL     string
	dbPath     string
	logLevel   string
	envName    string
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unip",
		Short: "Terminal client for the NLP analysis service",
		Long: `unip - Send texts and documents to the NLP analysis service and explore
sentiment, keywords, topics and summaries from your terminal.
Every run is kept in a local history you can browse later.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.unip/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Analysis service base URL (default: http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (default: ~/.unip/unip.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "Environment name; development keeps raw server errors")

	rootCmd.AddCommand(
		NewAnalyzeCommand(),
		NewHistoryCommand(),
		NewStatsCommand(),
		NewLastCommand(),
		NewHealthCommand(),
		NewMetaCommand(),
		NewWatchCommand(),
		NewLogsCommand(),
		NewMockServerCommand(),
		NewThemeCommand(),
	)

	return rootCmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies the
// persistent flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if envName != "" {
		cfg.Env = envName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openApp(cmd *cobra.Command, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.Stderr == nil {
		opts.Stderr = cmd.ErrOrStderr()
	}
	return app.New(cmd.Context(), cfg, opts)
}
