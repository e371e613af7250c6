// Package history keeps the ordered list of completed analysis runs and
// mirrors every change to durable storage.
package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jasperwreed/unip/internal/models"
)

var ErrDuplicateID = errors.New("history: duplicate entry id")

// Persister is the durable side of the store.
type Persister interface {
	LoadHistory(ctx context.Context) ([]models.HistoryEntry, error)
	SaveHistory(ctx context.Context, entries []models.HistoryEntry) error
}

// PersistStatus describes the outcome of the most recent write.
type PersistStatus struct {
	OK       bool
	Err      error
	At       time.Time
	Failures int
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDiagnostic registers a callback that receives every persistence
// failure. It is called with the store lock held and must not call back
// into the store.
func WithDiagnostic(fn func(error)) Option {
	return func(s *Store) { s.diag = fn }
}

func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) { s.saveTimeout = d }
}

// Store is safe for concurrent use. Mutations are never rolled back when
// persistence fails.
type Store struct {
	mu          sync.Mutex
	entries     []models.HistoryEntry
	persister   Persister
	logger      *slog.Logger
	diag        func(error)
	saveTimeout time.Duration
	loadErr     error
	status      PersistStatus
}

// New loads the persisted list once. A failed load leaves the store empty
// and is reported through LoadError.
func New(ctx context.Context, p Persister, opts ...Option) *Store {
	s := &Store{
		persister:   p,
		logger:      slog.Default(),
		saveTimeout: 5 * time.Second,
		status:      PersistStatus{OK: true},
	}
	for _, opt := range opts {
		opt(s)
	}

	if p == nil {
		return s
	}

	entries, err := p.LoadHistory(ctx)
	if err != nil {
		s.loadErr = err
		s.logger.Warn("history load failed, starting empty", "error", err)
		if s.diag != nil {
			s.diag(err)
		}
		return s
	}
	s.entries = dedupe(entries)
	return s
}

func dedupe(entries []models.HistoryEntry) []models.HistoryEntry {
	seen := make(map[string]bool, len(entries))
	out := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

func (s *Store) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Add appends entry. The only error is ErrDuplicateID.
func (s *Store) Add(entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(entry.ID) >= 0 {
		return ErrDuplicateID
	}
	s.entries = append(s.entries, entry)
	s.persistLocked()
	return nil
}

// Remove deletes the entry with id and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	s.persistLocked()
	return true
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.persistLocked()
}

// Entries returns a copy in insertion order.
func (s *Store) Entries() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HistoryEntry(nil), s.entries...)
}

// Newest returns a copy with the most recent entry first.
func (s *Store) Newest() []models.HistoryEntry {
	entries := s.Entries()
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func (s *Store) Get(id string) (models.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.entries[i], true
	}
	return models.HistoryEntry{}, false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) PersistStatus() PersistStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Store) LastPersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Err
}

func (s *Store) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	snapshot := append([]models.HistoryEntry(nil), s.entries...)
	err := s.persister.SaveHistory(ctx, snapshot)

	s.status.At = time.Now()
	if err == nil {
		s.status.OK = true
		s.status.Err = nil
		return
	}

	s.status.OK = false
	s.status.Err = err
	s.status.Failures++
	s.logger.Warn("history persist failed", "error", err, "entries", len(snapshot))
	if s.diag != nil {
		s.diag(err)
	}
}
