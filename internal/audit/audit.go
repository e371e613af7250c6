// Package audit keeps a local, append-only record of every API exchange in
// rotating jsonl shards.
package audit

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one request/response exchange.
type Entry struct {
	Time          time.Time `json:"time"`
	CorrelationID string    `json:"correlation_id"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	Status        int       `json:"status"`
	DurationMs    int64     `json:"duration_ms"`
	ProcessTime   string    `json:"process_time,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty"`
	Shard         string    `json:"shard,omitempty"`
}

// Trail writes entries to size-rotated shards under one directory.
type Trail struct {
	baseDir       string
	current       *shardWriter
	maxShardSize  int64
	compress      bool
	flushInterval time.Duration
	seq           int

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

type shardWriter struct {
	file     *os.File
	writer   *bufio.Writer
	gzWriter *gzip.Writer
	size     int64
	path     string
}

// ShardInfo contains metadata about a shard
type ShardInfo struct {
	Path       string    `json:"path"`
	ModTime    time.Time `json:"mod_time"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
}

// DefaultDir is ~/.unip/audit.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".unip", "audit"), nil
}

// NewTrail opens a fresh shard in baseDir and starts the periodic flusher.
func NewTrail(baseDir string, maxShardSize int64, compress bool) (*Trail, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if maxShardSize <= 0 {
		maxShardSize = 4 * 1024 * 1024
	}

	t := &Trail{
		baseDir:       baseDir,
		maxShardSize:  maxShardSize,
		compress:      compress,
		flushInterval: 5 * time.Second,
		stopCh:        make(chan struct{}),
	}

	if err := t.rotate(); err != nil {
		return nil, fmt.Errorf("failed to create initial shard: %w", err)
	}

	t.wg.Add(1)
	go t.backgroundFlush()

	return t, nil
}

// Record appends one entry to the current shard.
func (t *Trail) Record(e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("audit trail closed")
	}

	if t.current.size >= t.maxShardSize {
		if err := t.rotate(); err != nil {
			return fmt.Errorf("failed to rotate shard: %w", err)
		}
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Shard = filepath.Base(t.current.path)

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	data = append(data, '\n')

	n, err := t.current.writer.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to shard: %w", err)
	}
	t.current.size += int64(n)
	return nil
}

func (t *Trail) rotate() error {
	if t.current != nil {
		if err := t.current.Close(); err != nil {
			return fmt.Errorf("failed to close current shard: %w", err)
		}
	}

	t.seq++
	ext := ".jsonl"
	if t.compress {
		ext = ".jsonl.gz"
	}
	name := fmt.Sprintf("shard_%s_%03d%s", time.Now().Format("20060102_150405"), t.seq, ext)
	path := filepath.Join(t.baseDir, name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create shard file: %w", err)
	}

	shard := &shardWriter{file: file, path: path}
	if t.compress {
		shard.gzWriter = gzip.NewWriter(file)
		shard.writer = bufio.NewWriterSize(shard.gzWriter, 64*1024)
	} else {
		shard.writer = bufio.NewWriterSize(file, 64*1024)
	}

	t.current = shard
	return nil
}

func (t *Trail) backgroundFlush() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.Flush()
		}
	}
}

// Flush pushes buffered entries to disk.
func (t *Trail) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || t.closed {
		return nil
	}
	return t.current.Flush()
}

// Shards lists the shard files in the trail directory.
func (t *Trail) Shards() ([]ShardInfo, error) {
	return ListShards(t.baseDir)
}

func (t *Trail) Dir() string {
	return t.baseDir
}

// Close stops the flusher and finalizes the current shard.
func (t *Trail) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.stopCh)
	t.mu.Unlock()

	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.Close()
}

func (s *shardWriter) Flush() error {
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.gzWriter != nil {
		return s.gzWriter.Flush()
	}
	return nil
}

func (s *shardWriter) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.gzWriter != nil {
		if err := s.gzWriter.Close(); err != nil {
			return err
		}
	}
	return s.file.Close()
}
