// Package audit records one JSON line per proxied request and reads the
// trail back for inspection.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const (
	DefaultMaxSize = 50 * 1024 * 1024 // 50 MiB
	KeepFiles      = 3                 // keep current + 3 rotated files
)

// Entry is a single audit record.
type Entry struct {
	ID           string        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Duration     time.Duration `json:"duration_ns"`
	Client       string        `json:"client"`
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	Rule         string        `json:"rule,omitempty"`
	Outcome      string        `json:"outcome"`
	StatusCode   int           `json:"status_code"`
	RequestSize  int64         `json:"request_size"`
	ResponseSize int64         `json:"response_size"`
	RemoteAddr   string        `json:"remote_addr"`
}

// Writer appends entries to a JSONL file with size-based rotation.
// It is safe for concurrent use.
type Writer struct {
	path    string
	maxSize int64 // max file size in bytes before rotation (0 = no limit)
	file    *os.File
	size    int64
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewWriter opens path for appending, creating it if needed.
func NewWriter(path string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return &Writer{
		path:    path,
		maxSize: DefaultMaxSize,
		file:    f,
		size:    size,
		logger:  logger,
	}, nil
}

// SetMaxSize changes the rotation threshold. Zero disables rotation.
func (w *Writer) SetMaxSize(n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maxSize = n
}

// Log appends entry. Write failures are logged, not returned: auditing
// never fails a request.
func (w *Writer) Log(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		w.logger.Warn("audit entry encode failed", "error", err)
		return
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return
	}
	n, err := w.file.Write(data)
	w.size += int64(n)
	if err != nil {
		w.logger.Warn("audit log write failed", "error", err)
		return
	}
	if w.maxSize > 0 && w.size >= w.maxSize {
		w.rotate()
	}
}

func (w *Writer) rotate() {
	w.file.Close()
	w.file = nil

	// Shift existing rotated files: .3 -> deleted, .2 -> .3, .1 -> .2, current -> .1
	for i := KeepFiles; i > 0; i-- {
		old := fmt.Sprintf("%s.%d", w.path, i)
		if i == KeepFiles {
			os.Remove(old)
		}
		if i > 1 {
			os.Rename(fmt.Sprintf("%s.%d", w.path, i-1), old)
		} else {
			os.Rename(w.path, old)
		}
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		w.logger.Warn("audit log rotation failed", "error", err)
		return
	}
	w.file = f
	w.size = 0
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Read returns the entries in path in file order. A missing file yields no
// entries and no error. Malformed lines are skipped.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error reading audit log: %w", err)
	}
	return entries, nil
}

// Filter selects entries. Empty fields match anything.
type Filter struct {
	Client  string
	Outcome string
	Rule    string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.Client != "" && e.Client != f.Client {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.Rule != "" && e.Rule != f.Rule {
		return false
	}
	return true
}

// Select returns the last n entries passing f, in file order. n <= 0 means
// all of them.
func Select(entries []Entry, f Filter, n int) []Entry {
	var out []Entry
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
