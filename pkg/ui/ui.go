// Package ui is the terminal interface: a tabbed, streaming search client
// built on Bubble Tea.
//
// The codebase is split across files by concern:
// - ui.go: App wiring and program lifecycle
// - model.go: model state and message types
// - update.go: Update function, key bindings, and commands
// - view.go: View function and chrome rendering
// - render.go: conversation and page body rendering
// - styles.go: color palette and styles
package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mittai17/piexi/pkg/bookmarks"
	"github.com/mittai17/piexi/pkg/logging"
	"github.com/mittai17/piexi/pkg/session"
)

// App owns the TUI program and its collaborators.
type App struct {
	registry     *session.Registry
	searcher     Searcher
	summarize    Summarizer
	bookmarks    *bookmarks.Manager
	fetcher      PageFetcher
	log          *logging.Logger
	initialQuery string
}

// AppOption configures an App.
type AppOption func(*App)

// WithSummarizer enables summary and title generation.
func WithSummarizer(s Summarizer) AppOption {
	return func(a *App) { a.summarize = s }
}

// WithBookmarks enables bookmark operations.
func WithBookmarks(m *bookmarks.Manager) AppOption {
	return func(a *App) { a.bookmarks = m }
}

// WithPageFetcher enables the browse view.
func WithPageFetcher(f PageFetcher) AppOption {
	return func(a *App) { a.fetcher = f }
}

// WithInitialQuery submits a query against the active tab on startup.
func WithInitialQuery(q string) AppOption {
	return func(a *App) { a.initialQuery = q }
}

// NewApp creates the TUI application.
func NewApp(registry *session.Registry, searcher Searcher, log *logging.Logger, opts ...AppOption) *App {
	a := &App{
		registry: registry,
		searcher: searcher,
		log:      log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the program and blocks until the user exits.
func (a *App) Run(ctx context.Context) error {
	m := newModel(a.registry, a.searcher, a.summarize, a.bookmarks, a.fetcher, a.log)
	m.initialQuery = a.initialQuery

	if a.log != nil {
		a.log.Infof("starting TUI")
	}

	program := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI program: %w", err)
	}
	return nil
}
