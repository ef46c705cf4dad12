// Package history persists processing results so past captures survive
// restarts. Entries live in a single JSON file; exports go out as CSV.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
)

// DefaultMaxEntries caps the stored history before pruning kicks in.
const DefaultMaxEntries = 500

// Entry is one recorded processing pass.
type Entry struct {
	// ID uniquely identifies the history entry.
	ID string `json:"id" csv:"id"`

	// CaptureID ties the entry back to the capture that produced it.
	CaptureID string `json:"capture_id" csv:"capture_id"`

	// Mode is the counting variant used.
	Mode string `json:"mode" csv:"mode"`

	// Count is the analysis outcome.
	Count int `json:"count" csv:"count"`

	// Width and Height are the analyzed frame dimensions.
	Width  int `json:"width" csv:"width"`
	Height int `json:"height" csv:"height"`

	// Engine identifies which vision engine ran.
	Engine string `json:"engine" csv:"engine"`

	// ElapsedMS is the analysis duration in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms" csv:"elapsed_ms"`

	// CreatedAt is when the entry was recorded.
	CreatedAt time.Time `json:"created_at" csv:"created_at"`
}

// Store defines the interface for history storage operations.
type Store interface {
	// Append records a processing pass
	Append(entry *Entry) error

	// List returns entries newest first; limit <= 0 returns all
	List(limit int) ([]*Entry, error)

	// Count returns the number of stored entries
	Count() int

	// ExportCSV renders all entries, newest first, as CSV with a header
	ExportCSV() ([]byte, error)
}

// JSONStore implements Store using a JSON file for persistence.
type JSONStore struct {
	path       string
	maxEntries int
	entries    []*Entry
	mu         sync.RWMutex
}

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int      `json:"version"`
	UpdatedAt string   `json:"updated_at"`
	Entries   []*Entry `json:"entries"`
}

const currentVersion = 1

// StoreOption configures a JSONStore.
type StoreOption func(*JSONStore)

// WithMaxEntries overrides the pruning cap.
func WithMaxEntries(n int) StoreOption {
	return func(s *JSONStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// NewJSONStore creates a new JSON-based store at the given path.
// If the file doesn't exist, it will be created on first append.
func NewJSONStore(path string, opts ...StoreOption) (*JSONStore, error) {
	store := &JSONStore{
		path:       path,
		maxEntries: DefaultMaxEntries,
	}

	for _, opt := range opts {
		opt(store)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}

	return store, nil
}

// NewDefaultStore creates a store at the default location
// (~/.shutterbox/history.json).
func NewDefaultStore() (*JSONStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	path := filepath.Join(homeDir, ".shutterbox", "history.json")
	return NewJSONStore(path)
}

// load reads the store from disk.
func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	// Entries are stored oldest first.
	s.entries = stored.Entries
	s.prune()
	return nil
}

// save writes the store to disk. Callers must hold the write lock.
func (s *JSONStore) save() error {
	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Entries:   s.entries,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// prune drops the oldest entries past the cap. Callers must hold the
// write lock.
func (s *JSONStore) prune() {
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[len(s.entries)-s.maxEntries:]
	}
}

// Append records a processing pass.
func (s *JSONStore) Append(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Generate ID if not set
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.entries = append(s.entries, entry)
	s.prune()
	return s.save()
}

// List returns entries newest first; limit <= 0 returns all.
func (s *JSONStore) List(limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	// Reverse into newest-first order.
	out := make([]*Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Count returns the total number of entries.
func (s *JSONStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ExportCSV renders all entries, newest first, as CSV with a header.
func (s *JSONStore) ExportCSV() ([]byte, error) {
	entries, err := s.List(0)
	if err != nil {
		return nil, err
	}

	// Dereference so csvutil sees value rows.
	rows := make([]Entry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, *e)
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CSV: %w", err)
	}
	return data, nil
}

// Path returns the file path of the store.
func (s *JSONStore) Path() string {
	return s.path
}
