package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileRecorder journals events as JSON lines. Writes go through one append
// handle held open for the recorder's lifetime.
type FileRecorder struct {
	path string

	mu sync.Mutex
	w  *os.File
}

func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure journal dir: %w", err)
	}
	w, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &FileRecorder{path: path, w: w}, nil
}

func (r *FileRecorder) AppendInteraction(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("journal %s is closed", r.path)
	}
	if _, err := r.w.Write(line); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// LoadInteractions returns the events with from <= Timestamp < to. The
// journal is chronological, so reading stops at the first event past the
// window. Lines that fail to decode are skipped.
func (r *FileRecorder) LoadInteractions(from, to time.Time) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var events []Event
	for sc.Scan() {
		var ev Event
		if len(sc.Bytes()) == 0 || json.Unmarshal(sc.Bytes(), &ev) != nil {
			continue
		}
		if !ev.Timestamp.Before(to) {
			break
		}
		if ev.Timestamp.Before(from) {
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return events, nil
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Close()
	r.w = nil
	return err
}
