package audit

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const shardPattern = "shard_*.jsonl*"

// ListShards returns the shards in dir, oldest first.
func ListShards(dir string) ([]ShardInfo, error) {
	files, err := filepath.Glob(filepath.Join(dir, shardPattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var shards []ShardInfo
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		shards = append(shards, ShardInfo{
			Path:       file,
			ModTime:    info.ModTime(),
			Size:       info.Size(),
			Compressed: filepath.Ext(file) == ".gz",
		})
	}
	return shards, nil
}

type shardReader struct {
	file     *os.File
	reader   *bufio.Reader
	gzReader *gzip.Reader
}

func openShard(path string) (*shardReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shard: %w", err)
	}

	r := &shardReader{file: file}
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			// A shard that was created but never flushed has no gzip header yet.
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		r.gzReader = gz
		r.reader = bufio.NewReader(gz)
	} else {
		r.reader = bufio.NewReader(file)
	}
	return r, nil
}

func (r *shardReader) Close() error {
	if r.gzReader != nil {
		r.gzReader.Close()
	}
	return r.file.Close()
}

// ShardIterator provides sequential access to all lines of all shards.
type ShardIterator struct {
	shards  []string
	index   int
	current *shardReader
}

func NewShardIterator(dir string) (*ShardIterator, error) {
	shards, err := filepath.Glob(filepath.Join(dir, shardPattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(shards)
	return &ShardIterator{shards: shards, index: -1}, nil
}

// Next returns the next complete line, or io.EOF after the last shard. The
// open shard of a running writer may end mid-stream; that shard is treated
// as finished.
func (it *ShardIterator) Next() ([]byte, error) {
	for {
		if it.current != nil {
			line, err := it.current.reader.ReadBytes('\n')
			if err == nil {
				return line, nil
			}
			if err != io.EOF && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, err
			}
			it.current.Close()
			it.current = nil
		}

		it.index++
		if it.index >= len(it.shards) {
			return nil, io.EOF
		}

		shard, err := openShard(it.shards[it.index])
		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			return nil, err
		}
		it.current = shard
	}
}

func (it *ShardIterator) Close() error {
	if it.current != nil {
		return it.current.Close()
	}
	return nil
}

// ReadEntries decodes every entry in dir and returns the last limit of them
// (all when limit <= 0). Lines that do not decode are skipped.
func ReadEntries(dir string, limit int) ([]Entry, error) {
	it, err := NewShardIterator(dir)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var entries []Entry
	for {
		line, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line: %w", err)
		}
		var e Entry
		if json.Unmarshal(line, &e) != nil {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	return entries, nil
}
