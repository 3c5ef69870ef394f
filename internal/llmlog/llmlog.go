// Package llmlog appends every model request/response pair to a
// JSON-lines file and reads those files back for session bootstrap.
package llmlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one logged model exchange. On serialization failure the
// request/response are dropped and Error carries the reason instead.
type Entry struct {
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	Source    string `json:"source"`
	Request   any    `json:"request,omitempty"`
	Response  any    `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Writer appends entries to a per-run log file, one JSON object per line.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	path string
	now  func() time.Time
}

// NewWriter creates dir if needed and opens a fresh timestamped log file.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("llm_log_%s.json", now.Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Writer{
		file: f,
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Path returns the log file this writer appends to.
func (w *Writer) Path() string { return w.path }

// Append writes one exchange. When the payload cannot be serialized the
// reduced error form is written instead, so the line count still
// matches the call count.
func (w *Writer) Append(source string, request, response any) error {
	entry := Entry{
		Timestamp: w.now().Format(time.RFC3339Nano),
		ID:        uuid.NewString(),
		Source:    source,
		Request:   request,
		Response:  response,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		entry = Entry{
			Timestamp: entry.Timestamp,
			ID:        entry.ID,
			Source:    source,
			Error:     fmt.Sprintf("serialize log entry: %v", err),
		}
		line, err = json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("serialize fallback entry: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Load reads every *.json file under dir and returns the valid entries
// sorted by timestamp, oldest first. Malformed lines and entries missing
// a request or response are skipped; unreadable files are skipped too.
// A missing directory yields zero entries, not an error.
func Load(dir string) ([]Entry, error) {
	names, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	var entries []Entry
	for _, de := range names {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, de.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, scanEntries(f)...)
		f.Close()
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries, nil
}

func scanEntries(f *os.File) []Entry {
	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		if e.Request == nil || e.Response == nil {
			continue
		}
		if e.Timestamp == "" {
			e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
		}
		if e.Source == "" {
			e.Source = "unknown"
		}
		entries = append(entries, e)
	}
	return entries
}
