package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mittai17/piexi/pkg/types"
)

// SchemaVersion is the current on-disk tab-state schema.
//
// Version 1 predates the embedded browse view: tabs had no view or currentUrl
// fields. Version 2 added them. Loading upgrades old payloads in one explicit
// step rather than defaulting fields ad hoc.
const SchemaVersion = 2

// Store is the durable persistence port for the tab list and active-tab
// pointer. Semantics are key-value, last-write-wins: loaded once at startup,
// written after each settled state change in normal mode.
type Store interface {
	LoadTabs() ([]types.TabSession, string, error)
	SaveTabs(tabs []types.TabSession, activeID string) error
}

type tabFile struct {
	Version     int                `json:"version"`
	Tabs        []types.TabSession `json:"tabs"`
	ActiveTabID string             `json:"activeTabId"`
}

// FileStore implements Store using a single JSON file with atomic writes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed store at path. The parent directory is
// created on first save, not here, so constructing a store is side-effect free.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path of the store.
func (s *FileStore) Path() string { return s.path }

// LoadTabs reads the persisted tab list. A missing file yields an empty list
// and no error; the registry self-heals by creating a fresh tab.
func (s *FileStore) LoadTabs() ([]types.TabSession, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to read tab state: %w", err)
	}

	var file tabFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, "", fmt.Errorf("failed to decode tab state: %w", err)
	}

	tabs := migrate(file.Version, file.Tabs)
	return tabs, file.ActiveTabID, nil
}

// SaveTabs writes the tab list and active pointer atomically (temp file plus
// rename), so a crash mid-write never corrupts the previous state.
func (s *FileStore) SaveTabs(tabs []types.TabSession, activeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(tabFile{
		Version:     SchemaVersion,
		Tabs:        tabs,
		ActiveTabID: activeID,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tab state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write tab state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace tab state: %w", err)
	}
	return nil
}

// migrate upgrades a loaded payload to the current schema. It also clears
// stale in-flight flags: a request cannot outlive the process that issued it.
func migrate(version int, tabs []types.TabSession) []types.TabSession {
	for i := range tabs {
		tab := &tabs[i]
		tab.IsLoading = false

		if version < SchemaVersion {
			if tab.View == "" {
				tab.View = types.ViewSearch
			}
			if tab.View != types.ViewBrowse {
				tab.CurrentURL = ""
			}
		}
		if !types.ValidFocus(tab.SearchFocus) {
			tab.SearchFocus = types.FocusAll
		}
		if tab.Title == "" {
			tab.Title = types.DefaultTabTitle
		}
	}
	return tabs
}
