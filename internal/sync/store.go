package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is what a Syncer remembers between runs, keyed by calendar URL.
type State struct {
	Calendars map[string]CalendarState `json:"calendars"`
}

// CalendarState is the remembered state of one calendar.
type CalendarState struct {
	CTag     string            `json:"ctag,omitempty"`
	ETags    map[string]string `json:"etags"`           // href -> etag
	Spans    map[string]Span   `json:"spans,omitempty"` // href -> time covered by its events
	SyncedAt time.Time         `json:"synced_at"`
}

// Span is the time covered by the events of one resource. A zero Start or
// End leaves that side open; a resource without any dated event has no
// Span at all.
type Span struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Overlaps reports whether the span intersects [from, to). Zero bounds
// leave the window open on that side.
func (sp Span) Overlaps(from, to time.Time) bool {
	if !to.IsZero() && !sp.Start.IsZero() && !sp.Start.Before(to) {
		return false
	}
	if !from.IsZero() && !sp.End.IsZero() {
		// An instant at from still counts.
		if sp.End.Before(from) || (sp.End.Equal(from) && !sp.Start.Equal(sp.End)) {
			return false
		}
	}
	return true
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Calendars: make(map[string]CalendarState)}
}

// StateStore is an interface for saving and loading sync state.
type StateStore interface {
	Load() (*State, error)
	Save(state *State) error
}

// FileStateStore is a file-based implementation of state storage.
type FileStateStore struct {
	Path string
}

// NewFileStateStore creates a new FileStateStore with the given path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{Path: path}
}

// Save writes the state to store.Path, replacing it atomically.
func (store *FileStateStore) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(store.Path), ".minicaldav-state-*")
	if err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), store.Path); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// Load reads the state from store.Path.
// Returns an empty state if the file does not exist (no error).
func (store *FileStateStore) Load() (*State, error) {
	data, err := os.ReadFile(store.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.Calendars == nil {
		state.Calendars = make(map[string]CalendarState)
	}

	return state, nil
}
