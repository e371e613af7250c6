package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"30s", "@every 30s", false},
		{"1m30s", "@every 1m30s", false},
		{"*/5 * * * *", "*/5 * * * *", false},
		{"@hourly", "@hourly", false},
		{"100ms", "", true},
		{"", "", true},
		{"whenever", "", true},
	}
	for _, tt := range tests {
		got, err := Spec(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Spec(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Spec(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(WithLogger(quietLogger()))
	var runs atomic.Int32
	if err := s.AddJob("health", "1s", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}

	jobs := s.ListJobs()
	if len(jobs) != 1 || jobs[0].Name != "health" || jobs[0].NextRun.IsZero() {
		t.Errorf("ListJobs = %+v", jobs)
	}
}

func TestAddJobReplacesSameName(t *testing.T) {
	s := New(WithLogger(quietLogger()))
	noop := func(ctx context.Context) error { return nil }
	if err := s.AddJob("a", "1m", noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("a", "2m", noop); err != nil {
		t.Fatal(err)
	}
	if n := len(s.ListJobs()); n != 1 {
		t.Errorf("jobs = %d, want 1", n)
	}
	s.RemoveJob("a")
	if n := len(s.ListJobs()); n != 0 {
		t.Errorf("jobs after remove = %d", n)
	}
}

func TestAddJobInvalidSchedule(t *testing.T) {
	s := New(WithLogger(quietLogger()))
	if err := s.AddJob("bad", "not a schedule", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunNow(t *testing.T) {
	s := New(WithLogger(quietLogger()), WithJobTimeout(50*time.Millisecond))
	boom := errors.New("boom")

	if err := s.RunNow(context.Background(), "x", func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}

	err := s.RunNow(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout err = %v", err)
	}
}
