// Package remote implements the bookmark store against the hosted HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mittai17/piexi/pkg/types"
)

// Client talks to the hosted bookmark endpoints. All requests carry the
// bearer token of the signed-in user.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient creates a bookmark store client.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type bookmarkPayload struct {
	ID          string            `json:"id,omitempty"`
	HistoryItem types.HistoryItem `json:"history_item"`
	FolderID    string            `json:"folder_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
}

type folderPayload struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// List fetches the user's bookmarks and folders, newest first.
func (c *Client) List(ctx context.Context) ([]types.Bookmark, []types.Folder, error) {
	var out struct {
		Bookmarks []bookmarkPayload `json:"bookmarks"`
		Folders   []folderPayload   `json:"folders"`
	}
	if err := c.do(ctx, http.MethodGet, "/bookmarks", nil, &out); err != nil {
		return nil, nil, err
	}

	bookmarks := make([]types.Bookmark, 0, len(out.Bookmarks))
	for _, b := range out.Bookmarks {
		bookmarks = append(bookmarks, types.Bookmark{
			ID:          b.ID,
			HistoryItem: b.HistoryItem,
			FolderID:    b.FolderID,
			CreatedAt:   b.CreatedAt,
		})
	}
	folders := make([]types.Folder, 0, len(out.Folders))
	for _, f := range out.Folders {
		folders = append(folders, types.Folder{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt})
	}
	return bookmarks, folders, nil
}

// CreateBookmark stores a bookmark for the history item and returns the
// server-assigned record.
func (c *Client) CreateBookmark(ctx context.Context, item types.HistoryItem, folderID string) (types.Bookmark, error) {
	var out bookmarkPayload
	in := bookmarkPayload{HistoryItem: item, FolderID: folderID}
	if err := c.do(ctx, http.MethodPost, "/bookmarks", in, &out); err != nil {
		return types.Bookmark{}, err
	}
	return types.Bookmark{
		ID:          out.ID,
		HistoryItem: out.HistoryItem,
		FolderID:    out.FolderID,
		CreatedAt:   out.CreatedAt,
	}, nil
}

// DeleteBookmark removes a bookmark by id.
func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/bookmarks/"+id, nil, nil)
}

// MoveBookmark changes a bookmark's folder. An empty folderID unfiles it.
func (c *Client) MoveBookmark(ctx context.Context, id, folderID string) error {
	in := struct {
		FolderID *string `json:"folder_id"`
	}{}
	if folderID != "" {
		in.FolderID = &folderID
	}
	return c.do(ctx, http.MethodPatch, "/bookmarks/"+id, in, nil)
}

// CreateFolder creates a named folder and returns the server-assigned record.
func (c *Client) CreateFolder(ctx context.Context, name string) (types.Folder, error) {
	var out folderPayload
	if err := c.do(ctx, http.MethodPost, "/folders", folderPayload{Name: name}, &out); err != nil {
		return types.Folder{}, err
	}
	return types.Folder{ID: out.ID, Name: out.Name, CreatedAt: out.CreatedAt}, nil
}

// DeleteFolder removes a folder. The backend unfiles its member bookmarks.
func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/folders/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
