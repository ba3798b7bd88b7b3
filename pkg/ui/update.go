package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mittai17/piexi/pkg/browse"
	"github.com/mittai17/piexi/pkg/session"
	"github.com/mittai17/piexi/pkg/types"
)

var errNoFetcher = errors.New("page fetching is not configured")

// focusCycle is the order ctrl+f steps through.
var focusCycle = []types.SearchFocus{
	types.FocusAll,
	types.FocusAcademic,
	types.FocusWriting,
	types.FocusYouTube,
	types.FocusReddit,
}

// Init starts the cursor blink and, if configured, the bootstrap query.
func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if q := strings.TrimSpace(m.initialQuery); q != "" {
		m.initialQuery = ""
		cmds = append(cmds, m.submitQuery(q))
	}
	return tea.Batch(cmds...)
}

// Update handles all state transitions.
//
// Pointer receiver so registry-driven view state stays consistent across
// messages.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.shouldQuit {
		return m, tea.Quit
	}

	var spinnerCmd tea.Cmd
	m.spinner, spinnerCmd = m.spinner.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowResize(msg)

	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, tea.Batch(cmd, spinnerCmd)
		}

	case searchDoneMsg:
		return m.handleSearchDone(msg, spinnerCmd)

	case streamTickMsg:
		m.refreshViewport()
		if m.anyLoading() {
			return m, tea.Batch(streamTick(), spinnerCmd)
		}
		return m, spinnerCmd

	case summaryMsg:
		if msg.err != nil {
			m.showToast("Summary failed: "+msg.err.Error(), true)
		} else {
			m.showToast(msg.text, false)
		}
		return m, spinnerCmd

	case titleMsg:
		if msg.err != nil {
			m.showToast("Title generation failed: "+msg.err.Error(), true)
		} else {
			m.registry.Rename(msg.tabID, msg.title)
		}
		return m, spinnerCmd

	case pageMsg:
		if msg.err != nil {
			m.showToast("Could not load page: "+msg.err.Error(), true)
		} else {
			// Cache under the requested URL so the tab's current URL and the
			// cached page stay comparable even across redirects.
			msg.page.URL = msg.url
			m.pages[msg.tabID] = msg.page
		}
		m.refreshViewport()
		return m, spinnerCmd

	case bookmarkMsg:
		if msg.err != nil {
			m.showToast("Bookmark operation failed: "+msg.err.Error(), true)
		}
		m.refreshViewport()
		return m, spinnerCmd
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	return m, tea.Batch(inputCmd, spinnerCmd)
}

func (m *model) handleWindowResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	chromeHeight := 10
	vpHeight := msg.Height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width-2, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - 8
	m.refreshViewport()
	return m, nil
}

// handleKey maps global key bindings. Unhandled keys fall through to the
// text input.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.shouldQuit = true
		return m, tea.Quit, true

	case "ctrl+t":
		m.registry.CreateTab()
		m.cancelEdit()
		m.refreshViewport()
		return m, nil, true

	case "ctrl+w":
		m.registry.CloseTab(m.registry.ActiveID())
		m.cancelEdit()
		m.refreshViewport()
		return m, nil, true

	case "tab":
		m.registry.SwitchTab(session.Next)
		m.cancelEdit()
		m.refreshViewport()
		return m, nil, true

	case "shift+tab":
		m.registry.SwitchTab(session.Prev)
		m.cancelEdit()
		m.refreshViewport()
		return m, nil, true

	case "ctrl+right":
		m.moveTab(1)
		return m, nil, true

	case "ctrl+left":
		m.moveTab(-1)
		return m, nil, true

	case "ctrl+o":
		m.registry.ToggleIncognito()
		m.cancelEdit()
		m.pages = make(map[string]*browse.Page)
		m.refreshViewport()
		return m, nil, true

	case "ctrl+f":
		m.cycleFocus()
		return m, nil, true

	case "ctrl+x":
		m.registry.ClearHistory(m.registry.ActiveID())
		m.cancelEdit()
		m.refreshViewport()
		return m, nil, true

	case "ctrl+e":
		m.beginEditLast()
		return m, nil, true

	case "ctrl+y":
		m.copyLastAnswer()
		return m, nil, true

	case "ctrl+b":
		return m, m.toggleBookmarkLast(), true

	case "ctrl+l":
		m.showBookmarks = !m.showBookmarks
		m.refreshViewport()
		return m, nil, true

	case "ctrl+s":
		return m, m.generateSummary(), true

	case "ctrl+g":
		return m, m.generateTitle(), true

	case "ctrl+p":
		return m, m.summarizeCurrentPage(), true

	case "esc":
		if m.showBookmarks {
			m.showBookmarks = false
			m.refreshViewport()
			return m, nil, true
		}
		if m.editingItemID != "" {
			m.cancelEdit()
			return m, nil, true
		}
		if tab, ok := m.registry.ActiveTab(); ok && tab.View == types.ViewBrowse {
			m.registry.ShowSearch(tab.ID)
			m.refreshViewport()
			return m, nil, true
		}
		return m, nil, false

	case "enter":
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil, true
		}
		if tab, ok := m.registry.ActiveTab(); ok && tab.IsLoading {
			m.showToast("A search is already running in this tab", false)
			return m, nil, true
		}
		m.input.Reset()
		return m, m.submitQuery(query), true
	}

	return m, nil, false
}

// submitQuery dispatches the input as a search or, in edit mode, an edit
// rerun against the active tab.
func (m *model) submitQuery(query string) tea.Cmd {
	tabID := m.registry.ActiveID()

	if m.editingItemID != "" {
		itemID := m.editingItemID
		m.editingItemID = ""
		return tea.Batch(m.runEdit(tabID, itemID, query), streamTick())
	}
	return tea.Batch(m.runSearch(tabID, query), streamTick())
}

func (m *model) runSearch(tabID, query string) tea.Cmd {
	return func() tea.Msg {
		err := m.searcher.RunSearch(context.Background(), tabID, query)
		return searchDoneMsg{tabID: tabID, err: err}
	}
}

func (m *model) runEdit(tabID, itemID, query string) tea.Cmd {
	return func() tea.Msg {
		err := m.searcher.EditAndRerun(context.Background(), tabID, itemID, query)
		return searchDoneMsg{tabID: tabID, err: err}
	}
}

func (m *model) handleSearchDone(msg searchDoneMsg, spinnerCmd tea.Cmd) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.showToast("Search failed: "+msg.err.Error(), true)
	}
	m.refreshViewport()

	// A URL query flips the tab into the browse view; load the page. A cached
	// page for a different URL means the tab re-navigated, so it is refetched.
	if tab, ok := m.registry.Tab(msg.tabID); ok &&
		tab.View == types.ViewBrowse && tab.CurrentURL != "" {
		if page, loaded := m.pages[msg.tabID]; !loaded || page.URL != tab.CurrentURL {
			delete(m.pages, msg.tabID)
			return m, tea.Batch(m.fetchPage(msg.tabID, tab.CurrentURL), spinnerCmd)
		}
	}
	return m, spinnerCmd
}

func (m *model) fetchPage(tabID, url string) tea.Cmd {
	return func() tea.Msg {
		if m.fetcher == nil {
			return pageMsg{tabID: tabID, url: url, err: errNoFetcher}
		}
		page, err := m.fetcher.Fetch(context.Background(), url)
		return pageMsg{tabID: tabID, url: url, page: page, err: err}
	}
}

// moveTab swaps the active tab with its neighbor in the given direction.
func (m *model) moveTab(delta int) {
	tabs := m.registry.Tabs()
	activeID := m.registry.ActiveID()
	for i, tab := range tabs {
		if tab.ID == activeID {
			j := i + delta
			if j >= 0 && j < len(tabs) {
				m.registry.Reorder(activeID, tabs[j].ID)
				m.refreshViewport()
			}
			return
		}
	}
}

func (m *model) cycleFocus() {
	tab, ok := m.registry.ActiveTab()
	if !ok {
		return
	}
	next := focusCycle[0]
	for i, f := range focusCycle {
		if f == tab.SearchFocus {
			next = focusCycle[(i+1)%len(focusCycle)]
			break
		}
	}
	m.registry.SetSearchFocus(tab.ID, next)
	m.refreshViewport()
}

// beginEditLast loads the most recent query into the input for editing.
func (m *model) beginEditLast() {
	tab, ok := m.registry.ActiveTab()
	if !ok || len(tab.History) == 0 || tab.IsLoading {
		return
	}
	last := tab.History[len(tab.History)-1]
	m.editingItemID = last.ID
	m.input.SetValue(last.Query)
	m.input.CursorEnd()
}

func (m *model) cancelEdit() {
	if m.editingItemID != "" {
		m.editingItemID = ""
		m.input.Reset()
	}
}

func (m *model) copyLastAnswer() {
	tab, ok := m.registry.ActiveTab()
	if !ok || len(tab.History) == 0 {
		return
	}
	answer := tab.History[len(tab.History)-1].Answer
	if answer == "" {
		return
	}
	if err := clipboard.WriteAll(answer); err != nil {
		m.showToast("Copy failed: "+err.Error(), true)
		return
	}
	m.showToast("Answer copied to clipboard", false)
}

func (m *model) toggleBookmarkLast() tea.Cmd {
	tab, ok := m.registry.ActiveTab()
	if !ok || len(tab.History) == 0 || m.bookmarks == nil {
		return nil
	}
	item := tab.History[len(tab.History)-1]
	return func() tea.Msg {
		return bookmarkMsg{err: m.bookmarks.Toggle(context.Background(), item)}
	}
}

func (m *model) generateSummary() tea.Cmd {
	tab, ok := m.registry.ActiveTab()
	if !ok || m.summarize == nil {
		return nil
	}
	history := tab.History
	return func() tea.Msg {
		text, err := m.summarize.SessionSummary(context.Background(), history)
		return summaryMsg{text: text, err: err}
	}
}

func (m *model) generateTitle() tea.Cmd {
	tab, ok := m.registry.ActiveTab()
	if !ok || m.summarize == nil || len(tab.History) == 0 {
		return nil
	}
	tabID, history := tab.ID, tab.History
	return func() tea.Msg {
		title, err := m.summarize.TabTitle(context.Background(), history)
		return titleMsg{tabID: tabID, title: title, err: err}
	}
}

func (m *model) summarizeCurrentPage() tea.Cmd {
	tab, ok := m.registry.ActiveTab()
	if !ok || m.summarize == nil || tab.CurrentURL == "" {
		return nil
	}
	url := tab.CurrentURL
	return func() tea.Msg {
		text, err := m.summarize.SummarizePage(context.Background(), url)
		return summaryMsg{text: text, err: err}
	}
}

func streamTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return streamTickMsg{}
	})
}

// refreshViewport re-renders the active tab's content into the viewport.
func (m *model) refreshViewport() {
	if !m.ready {
		return
	}
	if m.showBookmarks {
		m.viewport.SetContent(m.renderBookmarkPanel())
		m.viewport.GotoTop()
		return
	}
	tab, ok := m.registry.ActiveTab()
	if !ok {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(m.renderTabContent(tab))
	m.viewport.GotoBottom()
}
