// Package repository provides the data access layer: the file-backed
// segment index and document registry, plus the MySQL and Redis stores.
package repository

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wattson/internal/model"
	"wattson/pkg/log"
)

// indexFileName is the append-only JSONL segment index inside the data dir.
const indexFileName = "index.jsonl"

// Lines can carry a full embedding vector plus segment text, so the scan
// buffer must be far larger than bufio's default token size.
const maxLineBytes = 4 * 1024 * 1024

// SegmentRepository is the durable, append-only segment index. Appends are
// atomic per record; a crash mid-batch leaves a parseable prefix. The
// caller is responsible for serializing writers (one ingestion in flight at
// a time); reads may run concurrently.
type SegmentRepository interface {
	Append(segments []model.Segment) error
	Scan(fn func(model.Segment) bool) error
	Count() (int, error)
	SizeBytes() int64
}

type fileSegmentRepository struct {
	path string
}

// NewSegmentRepository creates the segment index under dataDir, creating
// the directory and an empty index file if they do not exist yet.
func NewSegmentRepository(dataDir string) (SegmentRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, indexFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("init segment index: %w", err)
	}
	_ = f.Close()
	return &fileSegmentRepository{path: path}, nil
}

// Append durably appends all records, one JSON object per line. Each line
// is written in a single call so that a partially written batch never
// leaves a torn record behind it.
func (r *fileSegmentRepository) Append(segments []model.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open segment index: %w", err)
	}
	defer f.Close()

	for _, seg := range segments {
		line, err := json.Marshal(seg)
		if err != nil {
			return fmt.Errorf("marshal segment %s: %w", seg.ID, err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append segment %s: %w", seg.ID, err)
		}
	}
	return f.Sync()
}

// Scan replays every record in append order, calling fn until it returns
// false. Blank and unparseable lines are skipped so that a single corrupt
// record degrades results instead of aborting the query.
func (r *fileSegmentRepository) Scan(fn func(model.Segment) bool) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open segment index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var seg model.Segment
		if err := json.Unmarshal([]byte(line), &seg); err != nil {
			log.Warnf("segment index: skipping unparseable line: %v", err)
			continue
		}
		if !fn(seg) {
			return nil
		}
	}
	return scanner.Err()
}

// Count returns the number of indexed records (non-blank lines).
func (r *fileSegmentRepository) Count() (int, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return 0, fmt.Errorf("open segment index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	n := 0
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	return n, scanner.Err()
}

// SizeBytes returns the on-disk size of the index file, 0 if unreadable.
func (r *fileSegmentRepository) SizeBytes() int64 {
	info, err := os.Stat(r.path)
	if err != nil {
		return 0
	}
	return info.Size()
}
