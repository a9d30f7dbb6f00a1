package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/walletrelay/walletrelay-go/pkg/session"
)

// StoreVersion is the current version of the record file format.
const StoreVersion = 1

// recordFile is the on-disk envelope around a session record.
type recordFile struct {
	// Version is the record file format version.
	Version int `json:"version"`

	// SavedAt is when the record was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Record is the session record.
	Record *session.Record `json:"record"`
}

// FileStore persists one session record to a JSON file.
// It is safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed record store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save persists the record to disk.
func (s *FileStore) Save(record *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file := recordFile{
		Version: StoreVersion,
		SavedAt: time.Now(),
		Record:  record,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the record from disk.
// Returns nil, nil if no record has been saved.
func (s *FileStore) Load() (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	file := recordFile{}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	return file.Record, nil
}

// Delete removes the record file. Deleting an absent record is not an
// error.
func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Compile-time interface satisfaction check.
var _ session.RecordStore = (*FileStore)(nil)
