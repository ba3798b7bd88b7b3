package types

import "time"

// Bookmark freezes a copy of a HistoryItem at bookmark time. It is not a live
// reference: later edits to the tab's conversation never touch it.
type Bookmark struct {
	ID          string      `json:"id"`
	HistoryItem HistoryItem `json:"history_item"`
	FolderID    string      `json:"folder_id,omitempty"` // empty means unfiled
	CreatedAt   time.Time   `json:"created_at"`
}

// Folder is a flat, non-nested grouping of bookmarks. Deleting a folder
// unfiles its members rather than deleting them.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
