// Package analysis drives one submission from input to history entry and
// publishes the user-visible progress of that run.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jasperwreed/unip/internal/client"
	"github.com/jasperwreed/unip/internal/history"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/security"
)

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("analysis already in progress")

// Analyzer is the part of the API client the runner needs.
type Analyzer interface {
	AnalyzeTexts(ctx context.Context, texts []string, tasks []string) (*models.AnalyzeResponse, error)
	AnalyzeFiles(ctx context.Context, files []client.FileUpload, tasks []string) (*models.AnalyzeResponse, error)
}

// SnapshotSaver keeps the latest result so the last view can be restored.
type SnapshotSaver interface {
	SaveCurrent(ctx context.Context, entry models.HistoryEntry) error
}

type Listener func(models.ProgressState)

const (
	percentInitializing = 5
	percentConnecting   = 10
	percentHealthCheck  = 20
	percentSending      = 25
	percentTaskBase     = 30
	percentTaskCeiling  = 90
	percentFinalizing   = 95
	percentComplete     = 100
)

type Config struct {
	StageDelay   time.Duration
	TickInterval time.Duration
	ClearDelay   time.Duration
	Limits       security.Limits
}

func DefaultConfig() Config {
	return Config{
		StageDelay:   300 * time.Millisecond,
		TickInterval: 2 * time.Second,
		ClearDelay:   500 * time.Millisecond,
		Limits:       security.DefaultLimits(),
	}
}

type Option func(*Runner)

func WithConfig(cfg Config) Option {
	return func(r *Runner) { r.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithSnapshotSaver(s SnapshotSaver) Option {
	return func(r *Runner) { r.snapshot = s }
}

func WithListener(l Listener) Option {
	return func(r *Runner) { r.addListener(l) }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner accepts one submission at a time.
type Runner struct {
	api       Analyzer
	hist      *history.Store
	snapshot  SnapshotSaver
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
	listeners []subscription
	nextSub   uint64

	busy atomic.Bool

	notifyMu sync.Mutex
	mu       sync.Mutex
	state    models.ProgressState
	gen      uint64
	last     *models.HistoryEntry
	updates  uint64
}

func NewRunner(api Analyzer, hist *history.Store, opts ...Option) *Runner {
	r := &Runner{
		api:    api,
		hist:   hist,
		logger: slog.Default(),
		cfg:    DefaultConfig(),
		now:    time.Now,
		state:  models.ProgressState{Stage: models.StageIdle},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type subscription struct {
	id uint64
	fn Listener
}

// Subscribe adds a listener and returns a func that removes it. Listeners
// run synchronously in update order and may call State but must not submit
// or unsubscribe.
func (r *Runner) Subscribe(l Listener) (unsubscribe func()) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	id := r.addListener(l)
	return func() {
		r.notifyMu.Lock()
		defer r.notifyMu.Unlock()
		for i, s := range r.listeners {
			if s.id == id {
				r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

func (r *Runner) addListener(l Listener) uint64 {
	r.nextSub++
	r.listeners = append(r.listeners, subscription{id: r.nextSub, fn: l})
	return r.nextSub
}

// State returns a copy of the current progress.
func (r *Runner) State() models.ProgressState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Updates counts every state change published so far.
func (r *Runner) Updates() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

// Last returns the entry produced by the most recent successful run.
func (r *Runner) Last() *models.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// SubmitTexts validates texts, sends them for analysis and records the
// result in history.
func (r *Runner) SubmitTexts(ctx context.Context, texts []string, tasks []string) (*models.HistoryEntry, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.busy.Store(false)

	tasks = normalizeTasks(tasks)
	run := r.begin(tasks)
	defer r.scheduleClear(run.gen)

	if err := security.ValidateTexts(texts, r.cfg.Limits); err != nil {
		return nil, r.fail(run, client.ValidationError(err))
	}
	texts = nonBlank(texts)

	if err := r.preflight(ctx, run, fmt.Sprintf("Sending %d text(s) for analysis...", len(texts))); err != nil {
		return nil, r.fail(run, err)
	}

	resp, err := r.await(run, func() (*models.AnalyzeResponse, error) {
		return r.api.AnalyzeTexts(ctx, texts, tasks)
	})
	if err != nil {
		return nil, r.fail(run, err)
	}

	entry := r.buildEntry(run, resp, len(texts), nil)
	return r.complete(ctx, run, entry), nil
}

// SubmitFiles validates every path, uploads the accepted files in one
// request and records the result. Rejected files are returned alongside a
// successful entry; the run fails only when no file is usable.
func (r *Runner) SubmitFiles(ctx context.Context, paths []string, tasks []string) (*models.HistoryEntry, []security.ValidationError, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}
	defer r.busy.Store(false)

	tasks = normalizeTasks(tasks)
	run := r.begin(tasks)
	defer r.scheduleClear(run.gen)

	var candidates []security.FileCandidate
	var rejected []security.ValidationError
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			rejected = append(rejected, security.ValidationError{Field: "file", Name: filepath.Base(p), Reason: "File not found."})
			continue
		}
		candidates = append(candidates, security.FileCandidate{Path: p, Name: filepath.Base(p), Size: info.Size()})
	}

	accepted, invalid := security.SelectFiles(candidates, r.cfg.Limits)
	rejected = append(rejected, invalid...)
	for _, v := range rejected {
		r.logger.Warn("file rejected", "file", v.Name, "reason", v.Reason)
	}

	if len(accepted) == 0 {
		reason := security.ValidationError{Field: "file", Reason: "Please select at least one valid file."}
		if len(rejected) > 0 {
			reason = rejected[0]
		}
		return nil, rejected, r.fail(run, client.ValidationError(reason))
	}

	if err := r.preflight(ctx, run, fmt.Sprintf("Uploading %d file(s)...", len(accepted))); err != nil {
		return nil, rejected, r.fail(run, err)
	}

	uploads, closeAll, err := openUploads(accepted)
	if err != nil {
		return nil, rejected, r.fail(run, err)
	}
	defer closeAll()

	resp, err := r.await(run, func() (*models.AnalyzeResponse, error) {
		return r.api.AnalyzeFiles(ctx, uploads, tasks)
	})
	if err != nil {
		return nil, rejected, r.fail(run, err)
	}

	names := make([]string, len(accepted))
	for i, f := range accepted {
		names[i] = f.Name
	}
	entry := r.buildEntry(run, resp, len(resp.Results), names)
	return r.complete(ctx, run, entry), rejected, nil
}

func openUploads(files []security.FileCandidate) ([]client.FileUpload, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	uploads := make([]client.FileUpload, 0, len(files))
	for _, fc := range files {
		f, err := os.Open(fc.Path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", fc.Name, err)
		}
		opened = append(opened, f)
		uploads = append(uploads, client.FileUpload{Name: fc.Name, Content: f})
	}
	return uploads, closeAll, nil
}

func normalizeTasks(tasks []string) []string {
	if len(tasks) == 0 {
		return append([]string(nil), models.AllTasks...)
	}
	want := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		want[t] = true
	}
	var out []string
	for _, t := range models.AllTasks {
		if want[t] {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), models.AllTasks...)
	}
	return out
}

func nonBlank(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
