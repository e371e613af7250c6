package watcher

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) ofType(typ string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newWatcher(t *testing.T, opts ...Option) (*FolderWatcher, *collector) {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDebounce(30 * time.Millisecond),
		WithExtensions([]string{".txt", "md"}),
	}, opts...)
	w, err := NewFolderWatcher(opts...)
	if err != nil {
		t.Fatalf("NewFolderWatcher: %v", err)
	}
	c := &collector{}
	w.AddHandler(c.handle)
	t.Cleanup(func() { w.Stop() })
	return w, c
}

func TestNewFileReported(t *testing.T) {
	dir := t.TempDir()
	w, c := newWatcher(t)
	if err := w.WatchDirectory(dir); err != nil {
		t.Fatalf("WatchDirectory: %v", err)
	}
	w.Start()

	if err := os.WriteFile(filepath.Join(dir, "review.txt"), []byte("great"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(c.ofType(EventFileReady)) == 1 })
	ev := c.ofType(EventFileReady)[0]
	if filepath.Base(ev.Path) != "review.txt" || ev.Size != 5 {
		t.Errorf("event = %+v", ev)
	}

	// a quiet period produces no duplicate
	time.Sleep(150 * time.Millisecond)
	if n := len(c.ofType(EventFileReady)); n != 1 {
		t.Errorf("ready events = %d, want 1", n)
	}
}

func TestExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.md"), []byte("# notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("skipped by default", func(t *testing.T) {
		w, c := newWatcher(t)
		if err := w.WatchDirectory(dir); err != nil {
			t.Fatal(err)
		}
		w.Start()
		time.Sleep(150 * time.Millisecond)
		if n := len(c.ofType(EventFileReady)); n != 0 {
			t.Errorf("ready events = %d, want 0", n)
		}
	})

	t.Run("reported with WithExisting", func(t *testing.T) {
		w, c := newWatcher(t, WithExisting(true))
		if err := w.WatchDirectory(dir); err != nil {
			t.Fatal(err)
		}
		w.Start()
		waitFor(t, func() bool { return len(c.ofType(EventFileReady)) == 1 })
	})
}

func TestRemovedFile(t *testing.T) {
	dir := t.TempDir()
	w, c := newWatcher(t)
	if err := w.WatchDirectory(dir); err != nil {
		t.Fatal(err)
	}
	w.Start()

	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("bye"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(c.ofType(EventFileReady)) == 1 })

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(c.ofType(EventFileRemoved)) == 1 })
}

func TestWatchDirectoryErrors(t *testing.T) {
	w, _ := newWatcher(t)
	if err := w.WatchDirectory(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "f.txt")
	os.WriteFile(file, nil, 0o644)
	if err := w.WatchDirectory(file); err == nil {
		t.Error("expected error for a file path")
	}
}

func TestMatches(t *testing.T) {
	w, _ := newWatcher(t)
	tests := map[string]bool{
		"/a/b.txt":       true,
		"/a/B.MD":        true,
		"/a/.hidden.txt": false,
		"/a/draft.txt~":  false,
		"/a/x.pdf":       false,
	}
	for path, want := range tests {
		if got := w.matches(path); got != want {
			t.Errorf("matches(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestStopIdempotent(t *testing.T) {
	w, _ := newWatcher(t)
	w.Start()
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
