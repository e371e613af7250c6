// Package daemon runs `unip watch`: files that settle in the watched folders
// are batched and submitted for analysis, and a status file describes the
// running process.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/jasperwreed/unip/internal/analysis"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/security"
	"github.com/jasperwreed/unip/internal/watcher"
)

// Submitter is the part of the analysis runner the daemon drives.
type Submitter interface {
	SubmitFiles(ctx context.Context, paths []string, tasks []string) (*models.HistoryEntry, []security.ValidationError, error)
}

// WatchConfig holds configuration for the watch daemon
type WatchConfig struct {
	StateDir      string        `json:"state_dir"`
	WatchDirs     []string      `json:"watch_dirs"`
	Extensions    []string      `json:"extensions"`
	Tasks         []string      `json:"tasks,omitempty"`
	BatchSize     int           `json:"batch_size"`
	FlushInterval time.Duration `json:"flush_interval"`
	Debounce      time.Duration `json:"debounce"`
	Existing      bool          `json:"existing"`
}

// DefaultConfig returns default daemon configuration
func DefaultConfig() *WatchConfig {
	home, _ := os.UserHomeDir()
	return &WatchConfig{
		StateDir:      filepath.Join(home, ".unip"),
		Extensions:    append([]string(nil), security.AllowedExtensions...),
		BatchSize:     10,
		FlushInterval: 2 * time.Second,
		Debounce:      500 * time.Millisecond,
	}
}

// BatchResult is reported once per submitted batch.
type BatchResult struct {
	Files    []string
	Entry    *models.HistoryEntry
	Rejected []security.ValidationError
	Err      error
}

// Metrics tracks daemon activity
type Metrics struct {
	FilesSeen     int64     `json:"files_seen"`
	FilesAnalyzed int64     `json:"files_analyzed"`
	FilesRejected int64     `json:"files_rejected"`
	BatchesSent   int64     `json:"batches_sent"`
	BatchesFailed int64     `json:"batches_failed"`
	EventsDropped int64     `json:"events_dropped"`
	LastEntryID   string    `json:"last_entry_id,omitempty"`
	StartTime     time.Time `json:"start_time"`
	LastEventTime time.Time `json:"last_event_time"`
	mu            sync.RWMutex
}

func (m *Metrics) snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		FilesSeen:     m.FilesSeen,
		FilesAnalyzed: m.FilesAnalyzed,
		FilesRejected: m.FilesRejected,
		BatchesSent:   m.BatchesSent,
		BatchesFailed: m.BatchesFailed,
		EventsDropped: m.EventsDropped,
		LastEntryID:   m.LastEntryID,
		StartTime:     m.StartTime,
		LastEventTime: m.LastEventTime,
	}
}

// WatchDaemon feeds settled files to the analysis runner.
type WatchDaemon struct {
	config     *WatchConfig
	watcher    *watcher.FolderWatcher
	submitter  Submitter
	logger     *slog.Logger
	onResult   func(BatchResult)
	eventQueue chan watcher.Event
	metrics    *Metrics
	ctx        context.Context
	cancel     context.CancelFunc
	statusStop chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
	pidFile    string
	statusFile string
}

type Option func(*WatchDaemon)

func WithLogger(l *slog.Logger) Option {
	return func(d *WatchDaemon) { d.logger = l }
}

// WithResultHandler is called after every batch, from the daemon goroutine.
func WithResultHandler(fn func(BatchResult)) Option {
	return func(d *WatchDaemon) { d.onResult = fn }
}

func NewWatchDaemon(config *WatchConfig, submitter Submitter, opts ...Option) (*WatchDaemon, error) {
	if config == nil {
		config = DefaultConfig()
	}
	d0 := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = d0.BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = d0.FlushInterval
	}
	if config.StateDir == "" {
		config.StateDir = d0.StateDir
	}
	if err := os.MkdirAll(config.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &WatchDaemon{
		config:     config,
		submitter:  submitter,
		logger:     slog.Default(),
		eventQueue: make(chan watcher.Event, 1000),
		metrics:    &Metrics{StartTime: time.Now()},
		ctx:        ctx,
		cancel:     cancel,
		statusStop: make(chan struct{}),
		pidFile:    filepath.Join(config.StateDir, "watch.pid"),
		statusFile: filepath.Join(config.StateDir, "watch.status"),
	}
	for _, opt := range opts {
		opt(d)
	}

	w, err := watcher.NewFolderWatcher(
		watcher.WithLogger(d.logger),
		watcher.WithDebounce(config.Debounce),
		watcher.WithExtensions(config.Extensions),
		watcher.WithExisting(config.Existing),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	d.watcher = w
	w.AddHandler(d.handleEvent)

	return d, nil
}

// Start starts the watch daemon
func (d *WatchDaemon) Start() error {
	if d.isRunning() {
		return fmt.Errorf("watch already running (see %s)", d.pidFile)
	}
	if len(d.config.WatchDirs) == 0 {
		return errors.New("no directories to watch")
	}

	for _, dir := range d.config.WatchDirs {
		if err := d.watcher.WatchDirectory(dir); err != nil {
			return err
		}
	}

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	if err := d.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// The runner accepts one submission at a time, so one worker.
	d.wg.Add(1)
	go d.processEvents()

	d.wg.Add(1)
	go d.writeStatus()

	return nil
}

// Stop stops the daemon, flushing any batch still pending.
func (d *WatchDaemon) Stop() error {
	d.stopOnce.Do(func() {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Warn("error stopping watcher", "error", err)
		}
		close(d.eventQueue)
		close(d.statusStop)
		d.wg.Wait()
		d.cancel()

		os.Remove(d.pidFile)
		os.Remove(d.statusFile)
	})
	return nil
}

// Run runs the daemon until ctx is done or the process is interrupted.
func (d *WatchDaemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		d.logger.Info("shutting down", "signal", sig.String())
	}

	return d.Stop()
}

// Metrics returns a copy of the current counters.
func (d *WatchDaemon) Metrics() Metrics {
	return d.metrics.snapshot()
}

// handleEvent handles events from the watcher
func (d *WatchDaemon) handleEvent(event watcher.Event) error {
	d.metrics.mu.Lock()
	if event.Type == watcher.EventFileReady {
		d.metrics.FilesSeen++
	}
	d.metrics.LastEventTime = time.Now()
	d.metrics.mu.Unlock()

	select {
	case d.eventQueue <- event:
		return nil
	case <-time.After(100 * time.Millisecond):
		d.metrics.mu.Lock()
		d.metrics.EventsDropped++
		d.metrics.mu.Unlock()
		return fmt.Errorf("event queue full")
	}
}

// processEvents groups ready files into batches
func (d *WatchDaemon) processEvents() {
	defer d.wg.Done()

	batch := make([]string, 0, d.config.BatchSize)
	ticker := time.NewTicker(d.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-d.eventQueue:
			if !ok {
				d.flushBatch(batch)
				return
			}

			switch event.Type {
			case watcher.EventFileReady:
				batch = appendUnique(batch, event.Path)
			case watcher.EventFileRemoved:
				batch = without(batch, event.Path)
			}
			if len(batch) >= d.config.BatchSize {
				batch = d.flushBatch(batch)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				batch = d.flushBatch(batch)
			}
		}
	}
}

// flushBatch submits batch and returns what is left to send. A busy runner
// keeps the batch for the next tick.
func (d *WatchDaemon) flushBatch(batch []string) []string {
	if len(batch) == 0 {
		return batch
	}
	files := append([]string(nil), batch...)

	entry, rejected, err := d.submitter.SubmitFiles(d.ctx, files, d.config.Tasks)
	if errors.Is(err, analysis.ErrBusy) {
		d.logger.Debug("runner busy, retrying batch later", "files", len(files))
		return batch
	}

	d.metrics.mu.Lock()
	d.metrics.BatchesSent++
	d.metrics.FilesRejected += int64(len(rejected))
	if err != nil {
		d.metrics.BatchesFailed++
	} else {
		d.metrics.FilesAnalyzed += int64(entry.FileCount)
		d.metrics.LastEntryID = entry.ID
	}
	d.metrics.mu.Unlock()

	if err != nil {
		d.logger.Warn("batch failed", "files", len(files), "error", err)
	} else {
		d.logger.Info("batch analyzed", "files", entry.FileCount, "entry", entry.ID)
	}

	if d.onResult != nil {
		d.onResult(BatchResult{Files: files, Entry: entry, Rejected: rejected, Err: err})
	}
	return batch[:0]
}

func appendUnique(paths []string, p string) []string {
	for _, q := range paths {
		if q == p {
			return paths
		}
	}
	return append(paths, p)
}

func without(paths []string, p string) []string {
	out := paths[:0]
	for _, q := range paths {
		if q != p {
			out = append(out, q)
		}
	}
	return out
}

// writeStatus writes daemon status to file
func (d *WatchDaemon) writeStatus() {
	defer d.wg.Done()

	d.writeStatusFile()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.statusStop:
			return
		case <-ticker.C:
			d.writeStatusFile()
		}
	}
}

// writeStatusFile writes current status to file
func (d *WatchDaemon) writeStatusFile() {
	m := d.metrics.snapshot()
	status := Status{
		PID:         os.Getpid(),
		Status:      "running",
		Directories: d.watcher.Directories(),
		Pending:     d.watcher.Pending(),
		Metrics:     &m,
		UpdatedAt:   time.Now(),
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return
	}

	// Write atomically
	tmpFile := d.statusFile + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return
	}
	os.Rename(tmpFile, d.statusFile)
}

// writePIDFile writes the process ID to file
func (d *WatchDaemon) writePIDFile() error {
	return os.WriteFile(d.pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644)
}

// isRunning checks if another watch process owns the state directory
func (d *WatchDaemon) isRunning() bool {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		return false
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil || pid <= 0 {
		return false
	}
	if pid == os.Getpid() {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process is alive
	return process.Signal(syscall.Signal(0)) == nil
}

// Status is the content of the status file
type Status struct {
	PID         int       `json:"pid"`
	Status      string    `json:"status"`
	Directories []string  `json:"directories,omitempty"`
	Pending     int       `json:"pending"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GetStatus reads the status file in stateDir. A missing file means the
// daemon is stopped.
func GetStatus(stateDir string) (*Status, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, "watch.status"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Status{Status: "stopped"}, nil
		}
		return nil, err
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
