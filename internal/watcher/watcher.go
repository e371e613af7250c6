// Package watcher reports files that appear in watched folders once they
// have stopped changing.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	EventFileReady   = "file_ready"
	EventFileRemoved = "file_removed"
)

// Event describes one file the watcher settled on.
type Event struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler processes watcher events
type EventHandler func(event Event) error

type fileState struct {
	size    int64
	modTime time.Time
}

// FolderWatcher emits a file_ready event for a file once no write has been
// seen for the debounce period. A file is reported again only when its size
// or modification time changes.
type FolderWatcher struct {
	watcher    *fsnotify.Watcher
	logger     *slog.Logger
	debounce   time.Duration
	extensions map[string]bool
	existing   bool

	mu           sync.RWMutex
	watchedPaths map[string]bool
	pending      map[string]time.Time
	reported     map[string]fileState
	handlers     []EventHandler

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type Option func(*FolderWatcher)

func WithLogger(l *slog.Logger) Option {
	return func(w *FolderWatcher) { w.logger = l }
}

func WithDebounce(d time.Duration) Option {
	return func(w *FolderWatcher) { w.debounce = d }
}

// WithExtensions limits events to these suffixes (".txt", "md", ...).
func WithExtensions(exts []string) Option {
	return func(w *FolderWatcher) {
		w.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			e = strings.ToLower(strings.TrimSpace(e))
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			w.extensions[e] = true
		}
	}
}

// WithExisting also reports files already present when a folder is added.
func WithExisting(on bool) Option {
	return func(w *FolderWatcher) { w.existing = on }
}

func NewFolderWatcher(opts ...Option) (*FolderWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	w := &FolderWatcher{
		watcher:      fsWatcher,
		logger:       slog.Default(),
		debounce:     500 * time.Millisecond,
		watchedPaths: make(map[string]bool),
		pending:      make(map[string]time.Time),
		reported:     make(map[string]fileState),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// AddHandler adds an event handler
func (w *FolderWatcher) AddHandler(handler EventHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// WatchDirectory adds dir (which may start with ~/) to the watch set.
func (w *FolderWatcher) WatchDirectory(dir string) error {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watchedPaths[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	w.watchedPaths[dir] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}
	now := time.Now()
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() || !w.matches(path) {
			continue
		}
		if w.existing {
			w.pending[path] = now
			continue
		}
		if fi, err := e.Info(); err == nil {
			w.reported[path] = fileState{size: fi.Size(), modTime: fi.ModTime()}
		}
	}
	return nil
}

// Directories lists the watched folders.
func (w *FolderWatcher) Directories() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	dirs := make([]string, 0, len(w.watchedPaths))
	for d := range w.watchedPaths {
		dirs = append(dirs, d)
	}
	return dirs
}

func (w *FolderWatcher) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// Start begins watching for file changes
func (w *FolderWatcher) Start() error {
	w.wg.Add(1)
	go w.watchLoop()

	w.wg.Add(1)
	go w.settleLoop()

	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *FolderWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		err = w.watcher.Close()
	})
	return err
}

// Pending counts files waiting to settle.
func (w *FolderWatcher) Pending() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.pending)
}

// watchLoop monitors file system events
func (w *FolderWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}

			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				w.mu.Lock()
				w.pending[event.Name] = time.Now()
				w.mu.Unlock()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.forget(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *FolderWatcher) forget(path string) {
	w.mu.Lock()
	_, wasPending := w.pending[path]
	_, wasReported := w.reported[path]
	delete(w.pending, path)
	delete(w.reported, path)
	w.mu.Unlock()

	if wasPending || wasReported {
		w.notifyHandlers(Event{Type: EventFileRemoved, Path: path, Timestamp: time.Now()})
	}
}

// settleLoop periodically promotes quiet pending files to file_ready
func (w *FolderWatcher) settleLoop() {
	defer w.wg.Done()

	interval := max(w.debounce/2, 10*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			for _, ev := range w.settle(time.Now()) {
				w.notifyHandlers(ev)
			}
		}
	}
}

func (w *FolderWatcher) settle(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []Event
	for path, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		st := fileState{size: info.Size(), modTime: info.ModTime()}
		if prev, ok := w.reported[path]; ok && prev == st {
			continue
		}
		w.reported[path] = st
		ready = append(ready, Event{Type: EventFileReady, Path: path, Size: st.size, Timestamp: now})
	}
	return ready
}

// notifyHandlers sends event to all registered handlers
func (w *FolderWatcher) notifyHandlers(event Event) {
	w.mu.RLock()
	handlers := make([]EventHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			w.logger.Warn("handler error", "path", event.Path, "error", err)
		}
	}
}
