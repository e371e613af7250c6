package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jasperwreed/unip/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("storage: not found")

type SQLiteStore struct {
	writeDB *sql.DB // Single connection for writes
	readDB  *sql.DB // Pool of connections for reads
	dbPath  string
	now     func() time.Time
}

// DefaultPath is ~/.unip/unip.db.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".unip", "unip.db"), nil
}

func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Path = dbPath

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(cfg.MaxReadConns)
	readDB.SetMaxIdleConns(cfg.MaxReadConns)

	store := &SQLiteStore{
		writeDB: writeDB,
		readDB:  readDB,
		dbPath:  dbPath,
		now:     time.Now,
	}

	for _, pragma := range cfg.pragmas() {
		if _, err := writeDB.ExecContext(ctx, pragma); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to set %s: %w", pragma, err)
		}
	}

	if err := RunMigrations(ctx, writeDB); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewSQLiteStoreFromDB wraps an already opened handle for both reads and
// writes. No pragmas or migrations are applied.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{writeDB: db, readDB: db, now: time.Now}
}

func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// SaveHistory replaces the stored list with entries, keeping their order.
func (s *SQLiteStore) SaveHistory(ctx context.Context, entries []models.HistoryEntry) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryDeleteAllHistory); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	for i, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode entry %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx, queryInsertHistory,
			i, e.ID, e.Timestamp, e.TextCount, e.FileCount, string(payload),
		); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// LoadHistory returns entries in insertion order. A payload that does not
// decode fails the whole load.
func (s *SQLiteStore) LoadHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	rows, err := s.readDB.QueryContext(ctx, querySelectHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e models.HistoryEntry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("corrupt history entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SaveCurrent stores the snapshot of the most recent result.
func (s *SQLiteStore) SaveCurrent(ctx context.Context, entry models.HistoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode current result: %w", err)
	}
	return s.put(ctx, keyCurrentResult, string(payload))
}

func (s *SQLiteStore) LoadCurrent(ctx context.Context) (*models.HistoryEntry, error) {
	raw, err := s.get(ctx, keyCurrentResult)
	if err != nil {
		return nil, err
	}
	var e models.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("corrupt current result: %w", err)
	}
	return &e, nil
}

func (s *SQLiteStore) ClearCurrent(ctx context.Context) error {
	_, err := s.writeDB.ExecContext(ctx, queryDeleteKV, keyCurrentResult)
	return err
}

func (s *SQLiteStore) SetTheme(ctx context.Context, theme string) error {
	return s.SetPreference(ctx, keyTheme, theme)
}

// Theme returns the stored theme, or "" if none was chosen.
func (s *SQLiteStore) Theme(ctx context.Context) (string, error) {
	v, err := s.GetPreference(ctx, keyTheme)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) error {
	return s.put(ctx, key, value)
}

func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (string, error) {
	return s.get(ctx, key)
}

func (s *SQLiteStore) put(ctx context.Context, key, value string) error {
	_, err := s.writeDB.ExecContext(ctx, queryUpsertKV, key, value, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.readDB.QueryRowContext(ctx, querySelectKV, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) GetStats(ctx context.Context) (*models.HistoryStats, error) {
	stats := &models.HistoryStats{
		SentimentBreakdown: make(map[string]int),
		ModeBreakdown:      make(map[string]int),
	}

	err := s.readDB.QueryRowContext(ctx, queryHistoryTotals).Scan(
		&stats.TotalEntries, &stats.TotalTexts, &stats.TotalFiles,
	)
	if err != nil {
		return nil, err
	}

	rows, err := s.readDB.QueryContext(ctx, queryGroupByMode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err == nil {
			stats.ModeBreakdown[mode] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries, err := s.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		for _, r := range e.Results {
			if r.Sentiment != nil {
				stats.SentimentBreakdown[r.Sentiment.Label]++
			}
		}
	}

	return stats, nil
}

func (s *SQLiteStore) Close() error {
	var errs []error

	if _, err := s.writeDB.Exec("PRAGMA optimize"); err != nil {
		errs = append(errs, fmt.Errorf("failed to optimize: %w", err))
	}

	if s.readDB != s.writeDB {
		if err := s.readDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close read db: %w", err))
		}
	}

	if err := s.writeDB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close write db: %w", err))
	}

	return errors.Join(errs...)
}

// Quarantine moves an unreadable database and its WAL sidecars out of the
// way so a fresh one can be created at path. It returns the new name of the
// main file.
func Quarantine(path string, now time.Time) (string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("nothing to quarantine: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	aside := fmt.Sprintf("%s.corrupt-%s", path, now.UTC().Format("20060102T150405"))
	if err := os.Rename(path, aside); err != nil {
		return "", fmt.Errorf("failed to move database aside: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(path + suffix); err == nil {
			_ = os.Rename(path+suffix, aside+suffix)
		}
	}
	return aside, nil
}
