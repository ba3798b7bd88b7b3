package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/mittai17/piexi/pkg/bookmarks"
	"github.com/mittai17/piexi/pkg/browse"
	"github.com/mittai17/piexi/pkg/logging"
	"github.com/mittai17/piexi/pkg/session"
	"github.com/mittai17/piexi/pkg/types"
)

// Searcher runs search and edit requests. Satisfied by the engine.
type Searcher interface {
	RunSearch(ctx context.Context, tabID, query string) error
	EditAndRerun(ctx context.Context, tabID, historyItemID, newQuery string) error
}

// Summarizer produces summaries and titles. Satisfied by the summary
// generator.
type Summarizer interface {
	SessionSummary(ctx context.Context, history []types.HistoryItem) (string, error)
	TabTitle(ctx context.Context, history []types.HistoryItem) (string, error)
	SummarizePage(ctx context.Context, url string) (string, error)
}

// PageFetcher loads pages for the browse view.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*browse.Page, error)
}

// model holds all TUI state.
type model struct {
	// Bubble Tea components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Application wiring
	registry  *session.Registry
	searcher  Searcher
	summarize Summarizer
	bookmarks *bookmarks.Manager
	fetcher   PageFetcher
	log       *logging.Logger

	// Per-tab browse results, keyed by tab id.
	pages map[string]*browse.Page

	// Edit state: non-empty while the input holds a query being edited.
	editingItemID string

	// Query submitted automatically on startup.
	initialQuery string

	// showBookmarks swaps the viewport to the bookmark panel.
	showBookmarks bool

	// Window dimensions
	width  int
	height int
	ready  bool

	toast toast

	shouldQuit bool
}

// toast is a transient notification box.
type toast struct {
	active    bool
	message   string
	isError   bool
	showUntil time.Time
}

// searchDoneMsg reports a finished search or edit request.
type searchDoneMsg struct {
	tabID string
	err   error
}

// streamTickMsg drives re-renders while any tab is streaming.
type streamTickMsg struct{}

// summaryMsg carries a generated session or page summary.
type summaryMsg struct {
	text string
	err  error
}

// titleMsg carries a generated tab title.
type titleMsg struct {
	tabID string
	title string
	err   error
}

// pageMsg carries a fetched browse page. url is the URL that was requested,
// which after redirects can differ from the page's resolved URL.
type pageMsg struct {
	tabID string
	url   string
	page  *browse.Page
	err   error
}

// bookmarkMsg reports a finished bookmark operation.
type bookmarkMsg struct {
	err error
}

func newModel(registry *session.Registry, searcher Searcher, summarize Summarizer, bm *bookmarks.Manager, fetcher PageFetcher, log *logging.Logger) *model {
	input := textinput.New()
	input.Placeholder = "Search or enter a URL"
	input.Prompt = "> "
	input.Focus()
	input.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = headerStyle

	return &model{
		input:     input,
		spinner:   sp,
		registry:  registry,
		searcher:  searcher,
		summarize: summarize,
		bookmarks: bm,
		fetcher:   fetcher,
		log:       log,
		pages:     make(map[string]*browse.Page),
	}
}

func (m *model) showToast(message string, isError bool) {
	m.toast = toast{
		active:    true,
		message:   message,
		isError:   isError,
		showUntil: time.Now().Add(3 * time.Second),
	}
}

// anyLoading reports whether any tab has a request in flight.
func (m *model) anyLoading() bool {
	for _, tab := range m.registry.Tabs() {
		if tab.IsLoading {
			return true
		}
	}
	return false
}
