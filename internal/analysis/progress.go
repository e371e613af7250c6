package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jasperwreed/unip/internal/client"
	"github.com/jasperwreed/unip/internal/models"
)

var taskMessages = map[string]string{
	models.TaskSentiment: "Analyzing sentiment...",
	models.TaskKeywords:  "Extracting keywords...",
	models.TaskTopics:    "Modeling topics...",
	models.TaskSummary:   "Generating summary...",
}

type run struct {
	gen   uint64
	tasks []string
	start time.Time
}

func (r *Runner) begin(tasks []string) run {
	r.mu.Lock()
	r.gen++
	rn := run{gen: r.gen, tasks: tasks, start: r.now()}
	r.mu.Unlock()

	r.update(rn.gen, func(s *models.ProgressState) {
		*s = models.ProgressState{
			Stage:      models.StageInitializing,
			Percent:    percentInitializing,
			Message:    "Initializing analysis...",
			TotalTasks: len(tasks),
			Loading:    true,
		}
	})
	return rn
}

// update applies fn to the state of run gen and broadcasts the result.
// Updates for a superseded generation are dropped.
func (r *Runner) update(gen uint64, fn func(*models.ProgressState)) bool {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return false
	}
	fn(&r.state)
	r.updates++
	snap := r.state.Clone()
	r.mu.Unlock()

	for _, l := range r.listeners {
		l.fn(snap)
	}
	return true
}

func (r *Runner) preflight(ctx context.Context, rn run, sending string) error {
	stages := []struct {
		stage   models.Stage
		percent int
		message string
	}{
		{models.StageConnecting, percentConnecting, "Connecting to analysis service..."},
		{models.StageHealthCheck, percentHealthCheck, "Checking GPU and service availability..."},
		{models.StageSending, percentSending, sending},
	}
	for _, st := range stages {
		r.update(rn.gen, func(s *models.ProgressState) {
			s.Stage = st.stage
			s.Percent = st.percent
			s.Message = st.message
		})
		if err := sleep(ctx, r.cfg.StageDelay); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) await(rn run, call func() (*models.AnalyzeResponse, error)) (*models.AnalyzeResponse, error) {
	stop := r.startTicker(rn)
	defer stop()
	return call()
}

// startTicker moves the task checklist forward while the request is in
// flight. The returned stop cancels the goroutine and waits for it to exit.
func (r *Runner) startTicker(rn run) (stop func()) {
	n := len(rn.tasks)
	r.update(rn.gen, func(s *models.ProgressState) {
		s.Stage = models.StageProcessing
		s.Percent = percentTaskBase
		s.CompletedTasks = nil
		if n > 0 {
			s.CurrentTask = rn.tasks[0]
			s.Message = taskMessages[rn.tasks[0]]
		}
	})

	stopCh := make(chan struct{})
	done := make(chan struct{})
	interval := r.cfg.TickInterval
	if interval <= 0 {
		interval = DefaultConfig().TickInterval
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for idx := 1; idx <= n; idx++ {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
			}
			i := idx
			ok := r.update(rn.gen, func(s *models.ProgressState) {
				s.CompletedTasks = append([]string(nil), rn.tasks[:i]...)
				s.Percent = max(s.Percent, percentTaskBase+(percentTaskCeiling-percentTaskBase)*i/n)
				if i < n {
					s.CurrentTask = rn.tasks[i]
					s.Message = taskMessages[rn.tasks[i]]
				} else {
					s.CurrentTask = ""
					s.Message = "Waiting for results..."
				}
			})
			if !ok {
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopCh) })
		<-done
	}
}

func (r *Runner) fail(rn run, err error) error {
	apiErr := client.Normalize(err)
	r.update(rn.gen, func(s *models.ProgressState) {
		s.Stage = models.StageFailed
		s.CurrentTask = ""
		s.Message = apiErr.Message
		s.Err = apiErr
	})
	r.logger.Warn("analysis failed",
		"kind", apiErr.Kind,
		"status", apiErr.Status,
		"error", apiErr.Message,
		"duration", r.now().Sub(rn.start))
	return apiErr
}

func (r *Runner) buildEntry(rn run, resp *models.AnalyzeResponse, textCount int, fileNames []string) models.HistoryEntry {
	now := r.now()
	entry := models.HistoryEntry{
		ID:        newEntryID(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Results:   resp.Results,
		TextCount: textCount,
		Timing: &models.Timing{
			FrontendMs: now.Sub(rn.start).Milliseconds(),
			Backend:    backendTimings(resp.Metadata),
		},
	}
	if len(fileNames) > 0 {
		entry.FileCount = len(fileNames)
		entry.FileNames = fileNames
	}
	if resp.Metadata.Mode != "" || len(resp.Metadata.Warnings) > 0 {
		entry.ProcessingInfo = &models.ProcessingInfo{
			Mode:     resp.Metadata.Mode,
			Warnings: resp.Metadata.Warnings,
		}
	}
	return entry
}

func backendTimings(meta models.AnalyzeMetadata) map[string]float64 {
	if len(meta.Timings) == 0 && meta.ProcessingTime == 0 {
		return nil
	}
	out := make(map[string]float64, len(meta.Timings)+1)
	for k, v := range meta.Timings {
		out[k] = v
	}
	if meta.ProcessingTime > 0 {
		out["total"] = meta.ProcessingTime
	}
	return out
}

func (r *Runner) complete(ctx context.Context, rn run, entry models.HistoryEntry) *models.HistoryEntry {
	r.update(rn.gen, func(s *models.ProgressState) {
		s.Stage = models.StageFinalizing
		s.Percent = percentFinalizing
		s.CurrentTask = ""
		s.Message = "Finalizing results..."
	})

	if err := r.hist.Add(entry); err != nil {
		r.logger.Error("history add failed", "id", entry.ID, "error", err)
	}
	if r.snapshot != nil {
		if err := r.snapshot.SaveCurrent(ctx, entry); err != nil {
			r.logger.Warn("saving current result failed", "id", entry.ID, "error", err)
		}
	}

	r.mu.Lock()
	r.last = &entry
	r.mu.Unlock()

	r.update(rn.gen, func(s *models.ProgressState) {
		s.Stage = models.StageComplete
		s.Percent = percentComplete
		s.CompletedTasks = append([]string(nil), rn.tasks...)
		s.Message = fmt.Sprintf("Analysis complete: %d result(s)", len(entry.Results))
	})
	r.logger.Info("analysis complete",
		"id", entry.ID,
		"results", len(entry.Results),
		"frontend_ms", entry.Timing.FrontendMs)
	return &entry
}

// scheduleClear clears the progress once the terminal state has been
// visible for ClearDelay. A failure keeps its error for display. A newer run
// cancels it.
func (r *Runner) scheduleClear(gen uint64) {
	drop := func() {
		r.update(gen, func(s *models.ProgressState) {
			if s.Stage == models.StageFailed {
				s.Loading = false
				return
			}
			*s = models.ProgressState{Stage: models.StageIdle}
		})
	}
	if r.cfg.ClearDelay <= 0 {
		drop()
		return
	}
	time.AfterFunc(r.cfg.ClearDelay, drop)
}
