// Package scheduler runs periodic client jobs such as health polling.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks. A job that is still running when its
// next slot comes up is skipped for that slot.
type Scheduler struct {
	cron       *cron.Cron
	logger     *slog.Logger
	location   *time.Location
	jobTimeout time.Duration

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithJobTimeout bounds each run. The default is 30 seconds.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:     slog.Default(),
		location:   time.Local,
		jobTimeout: 30 * time.Second,
		jobs:       make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Spec turns "30s" into "@every 30s" and passes cron expressions and
// descriptors through.
func Spec(every string) (string, error) {
	every = strings.TrimSpace(every)
	if every == "" {
		return "", fmt.Errorf("empty schedule")
	}
	if d, err := time.ParseDuration(every); err == nil {
		if d < time.Second {
			return "", fmt.Errorf("interval %s is shorter than one second", d)
		}
		return "@every " + d.String(), nil
	}
	if _, err := cron.ParseStandard(every); err != nil {
		return "", fmt.Errorf("invalid schedule %q: %w", every, err)
	}
	return every, nil
}

// AddJob adds a job with a cron schedule or interval ("0 7 * * *", "@hourly", "30s").
func (s *Scheduler) AddJob(name, every string, job Job) error {
	spec, err := Spec(every)
	if err != nil {
		return err
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		s.run(ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = entryID
	s.mu.Unlock()

	s.logger.Debug("job added", "job", name, "schedule", spec)
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	start := time.Now()
	err := job(ctx)
	if err != nil {
		s.logger.Warn("job failed", "job", name, "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Debug("job completed", "job", name, "duration", time.Since(start))
	return nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow executes job immediately with the scheduler's timeout.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	return s.run(ctx, name, job)
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{Name: name, NextRun: entry.Next, LastRun: entry.Prev})
				break
			}
		}
	}
	return infos
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
