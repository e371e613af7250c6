// Package app constructs every long-lived component from a Config. Nothing
// in the client reaches for globals; commands receive what they need from
// an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jasperwreed/unip/internal/analysis"
	"github.com/jasperwreed/unip/internal/audit"
	"github.com/jasperwreed/unip/internal/client"
	"github.com/jasperwreed/unip/internal/config"
	"github.com/jasperwreed/unip/internal/daemon"
	"github.com/jasperwreed/unip/internal/history"
	"github.com/jasperwreed/unip/internal/logging"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/security"
	"github.com/jasperwreed/unip/internal/storage"
)

type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Correlation *client.CorrelationID
	Limiter     *security.RateLimiter
	Client      *client.Client
	Audit       *audit.Trail
	Shipper     *logging.Shipper
	Store       *storage.SQLiteStore
	History     *history.Store
	Runner      *analysis.Runner
}

// Options tune construction for commands that need less than everything.
type Options struct {
	// Stderr receives console logs. Defaults to os.Stderr.
	Stderr io.Writer
	// NoStore skips the database, history and runner.
	NoStore bool
	// Diagnostic receives history persistence failures.
	Diagnostic func(error)
	// Listener is subscribed to the runner before any submission.
	Listener analysis.Listener
}

// New builds the component graph. Close releases it.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	a := &App{
		Config:      cfg,
		Correlation: client.NewCorrelationID(),
		Limiter:     security.NewRateLimiter(time.Now),
	}

	console := logging.New(opts.Stderr, a.level(), nil)
	a.Logger = console

	if cfg.Logging.Ship {
		// The shipper gets its own client: shipped records must not be
		// rate limited, audited or logged back into the shipper.
		sender := client.New(cfg.APIURL,
			client.WithLogger(console),
			client.WithCorrelationID(a.Correlation),
			client.WithTimeout(cfg.Timeout.Std()))
		a.Shipper = logging.NewShipper(sender, logging.ShipperConfig{
			BatchSize:     cfg.Logging.BatchSize,
			FlushInterval: cfg.Logging.FlushInterval.Std(),
			QueueSize:     cfg.Logging.QueueSize,
			Level:         a.level(),
			CorrelationID: a.Correlation.Get,
		})
		a.Logger = logging.New(opts.Stderr, a.level(), a.Shipper)
	}

	if cfg.Audit.Enabled {
		dir := cfg.Audit.Dir
		if dir == "" {
			d, err := audit.DefaultDir()
			if err != nil {
				a.Close()
				return nil, err
			}
			dir = d
		}
		trail, err := audit.NewTrail(dir, cfg.Audit.MaxShardSize, cfg.Audit.Compress)
		if err != nil {
			// The audit trail is a side channel; run without it.
			a.Logger.Warn("audit trail disabled", "dir", dir, "error", err)
		} else {
			a.Audit = trail
		}
	}

	a.Client = a.newClient()

	if opts.NoStore {
		return a, nil
	}

	var persister history.Persister
	store, err := a.openStore(ctx)
	if err != nil {
		a.Logger.Error("local database unavailable, history will not be saved", "path", cfg.DBPath, "error", err)
		persister = unavailable{err: err}
	} else {
		a.Store = store
		persister = store
	}

	histOpts := []history.Option{history.WithLogger(a.Logger)}
	if opts.Diagnostic != nil {
		histOpts = append(histOpts, history.WithDiagnostic(opts.Diagnostic))
	}
	a.History = history.New(ctx, persister, histOpts...)

	runnerOpts := []analysis.Option{
		analysis.WithConfig(a.AnalysisConfig()),
		analysis.WithLogger(a.Logger),
	}
	if a.Store != nil {
		runnerOpts = append(runnerOpts, analysis.WithSnapshotSaver(a.Store))
	}
	if opts.Listener != nil {
		runnerOpts = append(runnerOpts, analysis.WithListener(opts.Listener))
	}
	a.Runner = analysis.NewRunner(a.Client, a.History, runnerOpts...)

	return a, nil
}

// openStore opens the database. A file that exists but cannot be opened is
// moved aside and replaced by an empty database.
func (a *App) openStore(ctx context.Context) (*storage.SQLiteStore, error) {
	path := a.Config.DBPath
	store, err := storage.NewSQLiteStore(ctx, path)
	if err == nil {
		return store, nil
	}

	aside, qerr := storage.Quarantine(path, time.Now())
	if qerr != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.Logger.Warn("database unreadable, moved aside", "path", path, "moved_to", aside, "error", err)

	store, err = storage.NewSQLiteStore(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to recreate database: %w", err)
	}
	return store, nil
}

// ErrStoreUnavailable is returned by RequireStore when the database could
// not be opened or recreated.
var ErrStoreUnavailable = errors.New("local database unavailable")

// RequireStore returns the database for commands that cannot work from
// memory alone.
func (a *App) RequireStore() (*storage.SQLiteStore, error) {
	if a.Store == nil {
		if a.History != nil && a.History.LoadError() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, a.History.LoadError())
		}
		return nil, ErrStoreUnavailable
	}
	return a.Store, nil
}

// Theme is the saved theme preference, or "" when none is saved or the
// database is unavailable.
func (a *App) Theme(ctx context.Context) string {
	if a.Store == nil {
		return ""
	}
	theme, err := a.Store.Theme(ctx)
	if err != nil {
		a.Logger.Debug("theme preference unreadable", "error", err)
		return ""
	}
	return theme
}

// unavailable stands in for the database when it cannot be opened. Loads
// and saves fail with the open error so the history store reports them.
type unavailable struct {
	err error
}

func (u unavailable) LoadHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	return nil, u.err
}

func (u unavailable) SaveHistory(ctx context.Context, entries []models.HistoryEntry) error {
	return u.err
}

func (a *App) level() slog.Level {
	def := logging.LevelForEnv(a.Config.Env)
	return logging.ParseLevel(a.Config.LogLevel, def)
}

func (a *App) newClient() *client.Client {
	cfg := a.Config
	opts := []client.Option{
		client.WithLogger(a.Logger),
		client.WithCorrelationID(a.Correlation),
		client.WithTimeout(cfg.Timeout.Std()),
		client.WithDevMode(cfg.Development()),
	}
	if cfg.Limits.RateLimitRequests > 0 {
		opts = append(opts, client.WithRateLimiter(a.Limiter, cfg.Limits.RateLimitRequests, cfg.Limits.RateLimitWindow.Std()))
	}
	if a.Audit != nil {
		opts = append(opts, client.WithRecorder(a.Audit))
	}
	return client.New(cfg.APIURL, opts...)
}

// Limits converts the configured limits.
func (a *App) Limits() security.Limits {
	l := a.Config.Limits
	return security.Limits{
		MaxTextLength:     l.MaxTextLength,
		MaxFileSize:       l.MaxFileSize,
		MaxBatchSize:      l.MaxBatchSize,
		AllowedExtensions: l.AllowedExtensions,
	}
}

func (a *App) AnalysisConfig() analysis.Config {
	p := a.Config.Progress
	return analysis.Config{
		StageDelay:   p.StageDelay.Std(),
		TickInterval: p.TickInterval.Std(),
		ClearDelay:   p.ClearDelay.Std(),
		Limits:       a.Limits(),
	}
}

// RevealDelay is how long the TUI waits after completion before showing
// the dashboard.
func (a *App) RevealDelay() time.Duration {
	return a.Config.Progress.RevealDelay.Std()
}

// WatchConfig builds the daemon configuration for dirs.
func (a *App) WatchConfig(dirs []string, existing bool) (*daemon.WatchConfig, error) {
	stateDir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	w := a.Config.Watch
	return &daemon.WatchConfig{
		StateDir:      stateDir,
		WatchDirs:     dirs,
		Extensions:    a.Limits().AllowedExtensions,
		Tasks:         w.Tasks,
		BatchSize:     w.BatchSize,
		FlushInterval: w.FlushInterval.Std(),
		Debounce:      w.Debounce.Std(),
		Existing:      existing,
	}, nil
}

// Close flushes the side channels and closes the database.
func (a *App) Close() error {
	var errs []error
	if a.Shipper != nil {
		errs = append(errs, a.Shipper.Close())
	}
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
