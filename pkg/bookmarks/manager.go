// Package bookmarks maintains the local mirror of the user's bookmark and
// folder collections and keeps it consistent with the backend store.
//
// Local state only changes after the corresponding remote call succeeds, so a
// failed request never leaves phantom entries behind. All operations are
// gated on an identity: without a signed-in user the bookmark features are
// disabled and every operation is an empty result or a no-op.
package bookmarks

import (
	"context"
	"fmt"
	"sync"

	"github.com/mittai17/piexi/pkg/types"
)

// Store is the backend bookmark service port. Each call is an independent
// network request with no transactional grouping.
type Store interface {
	List(ctx context.Context) ([]types.Bookmark, []types.Folder, error)
	CreateBookmark(ctx context.Context, item types.HistoryItem, folderID string) (types.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error
	MoveBookmark(ctx context.Context, id, folderID string) error
	CreateFolder(ctx context.Context, name string) (types.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
}

// Identity supplies the current user. An empty UserID means signed out.
type Identity interface {
	UserID() string
}

// StaticIdentity is an Identity with a fixed user id.
type StaticIdentity string

// UserID returns the fixed user id.
func (s StaticIdentity) UserID() string { return string(s) }

// Anonymous is the signed-out identity.
var Anonymous = StaticIdentity("")

// Manager owns the local bookmark state.
type Manager struct {
	mu        sync.Mutex
	store     Store
	identity  Identity
	bookmarks []types.Bookmark
	folders   []types.Folder
}

// NewManager creates a manager over the given store and identity.
func NewManager(store Store, identity Identity) *Manager {
	if identity == nil {
		identity = Anonymous
	}
	return &Manager{store: store, identity: identity}
}

func (m *Manager) signedIn() bool {
	return m.store != nil && m.identity.UserID() != ""
}

// Reload fetches the user's bookmarks and folders from the backend,
// replacing local state. Signed out, it clears local state and succeeds.
// Call it at startup and whenever the identity changes.
func (m *Manager) Reload(ctx context.Context) error {
	if !m.signedIn() {
		m.mu.Lock()
		m.bookmarks, m.folders = nil, nil
		m.mu.Unlock()
		return nil
	}

	bookmarks, folders, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("could not load your saved data: %w", err)
	}

	m.mu.Lock()
	m.bookmarks, m.folders = bookmarks, folders
	m.mu.Unlock()
	return nil
}

// SetIdentity swaps the current identity and reloads bookmark state for the
// new user.
func (m *Manager) SetIdentity(ctx context.Context, identity Identity) error {
	if identity == nil {
		identity = Anonymous
	}
	m.mu.Lock()
	m.identity = identity
	m.mu.Unlock()
	return m.Reload(ctx)
}

// Bookmarks returns a copy of the local bookmark list.
func (m *Manager) Bookmarks() []types.Bookmark {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Bookmark(nil), m.bookmarks...)
}

// Folders returns a copy of the local folder list.
func (m *Manager) Folders() []types.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Folder(nil), m.folders...)
}

// IsBookmarked reports whether a bookmark references this history item id.
func (m *Manager) IsBookmarked(historyItemID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByItemLocked(historyItemID) >= 0
}

// Toggle creates a bookmark for the history item, or deletes the existing
// one. Presence is keyed by the item's identity, not its content. Signed out,
// this is a no-op.
func (m *Manager) Toggle(ctx context.Context, item types.HistoryItem) error {
	if !m.signedIn() {
		return nil
	}

	m.mu.Lock()
	idx := m.findByItemLocked(item.ID)
	var existingID string
	if idx >= 0 {
		existingID = m.bookmarks[idx].ID
	}
	m.mu.Unlock()

	if existingID != "" {
		if err := m.store.DeleteBookmark(ctx, existingID); err != nil {
			return fmt.Errorf("failed to delete bookmark: %w", err)
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if i := m.findByItemLocked(item.ID); i >= 0 {
			m.bookmarks = append(m.bookmarks[:i], m.bookmarks[i+1:]...)
		}
		return nil
	}

	created, err := m.store.CreateBookmark(ctx, item, "")
	if err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookmarks = append([]types.Bookmark{created}, m.bookmarks...)
	return nil
}

// Delete removes a bookmark by its own id.
func (m *Manager) Delete(ctx context.Context, bookmarkID string) error {
	if !m.signedIn() {
		return nil
	}
	if err := m.store.DeleteBookmark(ctx, bookmarkID); err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.bookmarks {
		if b.ID == bookmarkID {
			m.bookmarks = append(m.bookmarks[:i], m.bookmarks[i+1:]...)
			break
		}
	}
	return nil
}

// Move reassigns a bookmark's folder. An empty folderID unfiles it. The
// folder's existence is not validated client-side.
func (m *Manager) Move(ctx context.Context, bookmarkID, folderID string) error {
	if !m.signedIn() {
		return nil
	}
	if err := m.store.MoveBookmark(ctx, bookmarkID, folderID); err != nil {
		return fmt.Errorf("failed to move bookmark: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bookmarks {
		if m.bookmarks[i].ID == bookmarkID {
			m.bookmarks[i].FolderID = folderID
			break
		}
	}
	return nil
}

// AddFolder creates a folder.
func (m *Manager) AddFolder(ctx context.Context, name string) error {
	if !m.signedIn() {
		return nil
	}
	created, err := m.store.CreateFolder(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to add folder: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders = append([]types.Folder{created}, m.folders...)
	return nil
}

// DeleteFolder removes a folder and unfiles its member bookmarks locally,
// mirroring the backend's cascading update.
func (m *Manager) DeleteFolder(ctx context.Context, folderID string) error {
	if !m.signedIn() {
		return nil
	}
	if err := m.store.DeleteFolder(ctx, folderID); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.folders {
		if f.ID == folderID {
			m.folders = append(m.folders[:i], m.folders[i+1:]...)
			break
		}
	}
	for i := range m.bookmarks {
		if m.bookmarks[i].FolderID == folderID {
			m.bookmarks[i].FolderID = ""
		}
	}
	return nil
}

func (m *Manager) findByItemLocked(historyItemID string) int {
	for i, b := range m.bookmarks {
		if b.HistoryItem.ID == historyItemID {
			return i
		}
	}
	return -1
}
