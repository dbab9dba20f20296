package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/chatradio/radiobot/internal/song"
)

// persistentState represents the history that gets persisted to disk
type persistentState struct {
	Played []string `json:"played"` // archive keys, oldest first
}

// Store handles history persistence to disk
type Store struct {
	mu       sync.Mutex
	filePath string
}

// NewStore creates a store writing history.json inside dir.
func NewStore(dir string) *Store {
	return &Store{
		filePath: filepath.Join(dir, "history.json"),
	}
}

// Load restores the saved history into h. A missing file is not an error.
// Entries that no longer parse are skipped.
func (s *Store) Load(h *History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No saved state, that's fine
			return nil
		}
		return fmt.Errorf("failed to read history file: %w", err)
	}

	var state persistentState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse history file: %w", err)
	}

	for _, key := range state.Played {
		if id, ok := song.ParseArchiveKey(key); ok {
			h.Record(id)
		}
	}
	return nil
}

// Save writes the history atomically.
func (s *Store) Save(h *History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := persistentState{Played: make([]string, 0, h.Len())}
	for _, id := range h.Items() {
		state.Played = append(state.Played, id.ArchiveKey())
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := renameio.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// Path returns the path to the history file
func (s *Store) Path() string {
	return s.filePath
}
