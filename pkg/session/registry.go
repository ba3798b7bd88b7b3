// Package session manages the in-memory collection of tab sessions and their
// durable persistence.
//
// The registry is the single owner of all TabSession state. Mutations happen
// through explicit operations; streaming requests mutate history through
// generation-tagged entry points so a superseded request can never clobber
// the state of a newer one.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/mittai17/piexi/pkg/logging"
	"github.com/mittai17/piexi/pkg/types"
)

// Mode is the registry's privacy mode.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeIncognito Mode = "incognito"
)

// Direction selects a neighbor when cycling through tabs.
type Direction string

const (
	Next Direction = "next"
	Prev Direction = "prev"
)

// EditBackup captures the pieces of tab state an edit can destroy, so a
// failed edit attempt is rolled back verbatim.
type EditBackup struct {
	History []types.HistoryItem
	Title   string
}

type incognitoSnapshot struct {
	tabs     []types.TabSession
	activeID string
}

// Registry holds the ordered tab list and the active-tab pointer.
//
// All methods are safe for concurrent use: multiple tabs may each have an
// independent in-flight request, and each only touches its own tab's slice
// of state.
type Registry struct {
	mu       sync.Mutex
	tabs     []types.TabSession
	activeID string
	mode     Mode
	normal   *incognitoSnapshot // buffered normal-mode state while incognito
	gens     map[string]uint64  // per-tab request generation
	store    Store              // nil disables persistence
	log      *logging.Logger
}

// NewRegistry creates an empty registry. Call Bootstrap to load persisted
// state and guarantee at least one tab exists.
func NewRegistry(store Store, log *logging.Logger) *Registry {
	return &Registry{
		mode:  ModeNormal,
		gens:  make(map[string]uint64),
		store: store,
		log:   log,
	}
}

// Bootstrap loads persisted tabs and self-heals to a single fresh tab when
// nothing usable was stored. Load failures are logged and treated as a first
// run; the registry never starts without a tab.
func (r *Registry) Bootstrap() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		tabs, activeID, err := r.store.LoadTabs()
		if err != nil {
			if r.log != nil {
				r.log.Warnf("failed to load persisted tabs, starting fresh: %v", err)
			}
		} else if len(tabs) > 0 {
			r.tabs = tabs
			r.activeID = tabs[0].ID
			for _, t := range tabs {
				if t.ID == activeID {
					r.activeID = activeID
					break
				}
			}
			return
		}
	}

	tab := types.NewTabSession()
	r.tabs = []types.TabSession{tab}
	r.activeID = tab.ID
	r.saveLocked()
}

// Mode returns the current privacy mode.
func (r *Registry) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Tabs returns a deep copy of the ordered tab list.
func (r *Registry) Tabs() []types.TabSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.CloneTabs(r.tabs)
}

// ActiveID returns the id of the active tab.
func (r *Registry) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// ActiveTab returns a deep copy of the active tab.
func (r *Registry) ActiveTab() (types.TabSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(r.activeID); i >= 0 {
		return r.tabs[i].Clone(), true
	}
	return types.TabSession{}, false
}

// Tab returns a deep copy of the tab with the given id.
func (r *Registry) Tab(id string) (types.TabSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.tabs[i].Clone(), true
	}
	return types.TabSession{}, false
}

// CreateTab appends a fresh tab to the list and makes it active.
func (r *Registry) CreateTab() types.TabSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	tab := types.NewTabSession()
	r.tabs = append(r.tabs, tab)
	r.activeID = tab.ID
	r.saveLocked()
	return tab
}

// CloseTab removes a tab. Closing the only remaining tab is a no-op. When the
// active tab closes, activation moves to its left neighbor, falling back to
// the first tab.
func (r *Registry) CloseTab(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tabs) <= 1 {
		return
	}
	idx := r.indexLocked(id)
	if idx < 0 {
		return
	}

	r.tabs = append(r.tabs[:idx], r.tabs[idx+1:]...)
	delete(r.gens, id)

	if r.activeID == id {
		newIdx := idx - 1
		if newIdx < 0 {
			newIdx = 0
		}
		r.activeID = r.tabs[newIdx].ID
	}
	r.saveLocked()
}

// SelectTab makes the tab with the given id active. Unknown ids are ignored.
func (r *Registry) SelectTab(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(id) < 0 {
		return
	}
	r.activeID = id
	r.saveLocked()
}

// SwitchTab moves activation cyclically by one position. A single tab makes
// this a no-op.
func (r *Registry) SwitchTab(dir Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tabs) <= 1 {
		return
	}
	idx := r.indexLocked(r.activeID)
	if idx < 0 {
		return
	}

	if dir == Next {
		idx = (idx + 1) % len(r.tabs)
	} else {
		idx = (idx - 1 + len(r.tabs)) % len(r.tabs)
	}
	r.activeID = r.tabs[idx].ID
	r.saveLocked()
}

// Reorder moves the dragged tab to occupy the target tab's position,
// preserving the relative order of all other tabs. Unknown ids make this a
// no-op.
func (r *Registry) Reorder(draggedID, targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.indexLocked(draggedID)
	to := r.indexLocked(targetID)
	if from < 0 || to < 0 || from == to {
		return
	}

	dragged := r.tabs[from]
	r.tabs = append(r.tabs[:from], r.tabs[from+1:]...)
	r.tabs = append(r.tabs[:to], append([]types.TabSession{dragged}, r.tabs[to:]...)...)
	r.saveLocked()
}

// Rename sets a tab's title. Empty, whitespace-only, and placeholder titles
// are silently rejected.
func (r *Registry) Rename(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" || title == types.DefaultTabTitle {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return
	}
	r.tabs[idx].Title = title
	r.saveLocked()
}

// SetSearchFocus changes how queries in this tab are framed. Unknown focus
// values are ignored.
func (r *Registry) SetSearchFocus(id string, focus types.SearchFocus) {
	if !types.ValidFocus(focus) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return
	}
	r.tabs[idx].SearchFocus = focus
	r.saveLocked()
}

// ClearHistory resets a tab to its just-created state: empty history, default
// title, all focus, search view.
func (r *Registry) ClearHistory(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return
	}
	tab := &r.tabs[idx]
	tab.History = nil
	tab.Title = types.DefaultTabTitle
	tab.SearchFocus = types.FocusAll
	tab.View = types.ViewSearch
	tab.CurrentURL = ""
	r.saveLocked()
}

// Navigate switches a tab to the embedded browse view showing the given URL.
func (r *Registry) Navigate(id, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return
	}
	r.tabs[idx].View = types.ViewBrowse
	r.tabs[idx].CurrentURL = url
	r.saveLocked()
}

// ShowSearch returns a tab to the conversational search view.
func (r *Registry) ShowSearch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return
	}
	r.tabs[idx].View = types.ViewSearch
	r.tabs[idx].CurrentURL = ""
	r.saveLocked()
}

// ToggleIncognito flips the privacy mode.
//
// Entering incognito buffers the entire normal-mode tab list and active
// pointer, then presents a single fresh tab. Exiting restores the buffered
// state verbatim; anything done while incognito is discarded and was never
// persisted.
func (r *Registry) ToggleIncognito() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == ModeNormal {
		r.normal = &incognitoSnapshot{
			tabs:     types.CloneTabs(r.tabs),
			activeID: r.activeID,
		}
		tab := types.NewTabSession()
		r.tabs = []types.TabSession{tab}
		r.activeID = tab.ID
		r.mode = ModeIncognito
		return
	}

	if r.normal != nil && len(r.normal.tabs) > 0 {
		r.tabs = r.normal.tabs
		r.activeID = r.normal.activeID
	}
	r.normal = nil
	r.mode = ModeNormal
	r.saveLocked()
}

// BeginSearch prepares a tab for a streaming search request: marks it
// loading, forces the search view, appends a placeholder history item, and
// on a tab's first query adopts the query text as the title.
//
// It returns the request generation, the placeholder item id, and a copy of
// the prior conversation to send as context. ok is false when the tab does
// not exist.
func (r *Registry) BeginSearch(id, query string) (gen uint64, itemID string, prior []types.HistoryItem, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return 0, "", nil, false
	}
	tab := &r.tabs[idx]

	gen = r.nextGenLocked(id)
	prior = types.CloneHistory(tab.History)

	if len(tab.History) == 0 {
		tab.Title = query
	}
	tab.IsLoading = true
	tab.View = types.ViewSearch
	tab.CurrentURL = ""

	itemID = types.NewHistoryItemID(time.Now())
	tab.History = append(tab.History, types.HistoryItem{ID: itemID, Query: query})
	r.saveLocked()
	return gen, itemID, prior, true
}

// BeginEdit prepares a tab for an edit-and-rerun request. The history is
// truncated to everything strictly before the edited item, a placeholder for
// the new query is appended, and a backup of the pre-edit state is returned
// so a failed rerun can be rolled back verbatim.
//
// ok is false when the tab or the history item does not exist.
func (r *Registry) BeginEdit(id, editItemID, newQuery string) (gen uint64, itemID string, prior []types.HistoryItem, backup EditBackup, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return 0, "", nil, EditBackup{}, false
	}
	tab := &r.tabs[idx]

	editIdx := -1
	for i, item := range tab.History {
		if item.ID == editItemID {
			editIdx = i
			break
		}
	}
	if editIdx < 0 {
		return 0, "", nil, EditBackup{}, false
	}

	backup = EditBackup{
		History: types.CloneHistory(tab.History),
		Title:   tab.Title,
	}

	gen = r.nextGenLocked(id)
	tab.History = tab.History[:editIdx:editIdx]
	prior = types.CloneHistory(tab.History)

	if editIdx == 0 {
		tab.Title = newQuery
	}
	tab.IsLoading = true
	tab.View = types.ViewSearch
	tab.CurrentURL = ""

	itemID = types.NewHistoryItemID(time.Now())
	tab.History = append(tab.History, types.HistoryItem{ID: itemID, Query: newQuery})
	r.saveLocked()
	return gen, itemID, prior, backup, true
}

// AppendAnswer appends a streamed chunk to the placeholder item's answer.
// Events from a superseded generation are discarded; the return value reports
// whether the chunk was applied.
func (r *Registry) AppendAnswer(id string, gen uint64, itemID, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.requestTargetLocked(id, gen, itemID)
	if item == nil {
		return false
	}
	item.Answer += text
	return true
}

// FinalizeAnswer atomically replaces the accumulated answer with the
// authoritative final text and populates sources (deduplicated by URI,
// first occurrence wins), follow-up questions, and popularity counters.
func (r *Registry) FinalizeAnswer(id string, gen uint64, itemID, finalAnswer string, sources []types.Source, followups []string, pop types.Popularity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.requestTargetLocked(id, gen, itemID)
	if item == nil {
		return false
	}
	item.Answer = finalAnswer
	item.Sources = types.DedupeSources(sources)
	item.FollowupQuestions = append([]string(nil), followups...)
	item.Popularity = pop
	r.saveLocked()
	return true
}

// RollbackSearch removes the placeholder item entirely, returning the history
// to its pre-request shape. Used when the stream fails.
func (r *Registry) RollbackSearch(id string, gen uint64, itemID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 || r.gens[id] != gen {
		return false
	}
	tab := &r.tabs[idx]
	for i, item := range tab.History {
		if item.ID == itemID {
			tab.History = append(tab.History[:i], tab.History[i+1:]...)
			r.saveLocked()
			return true
		}
	}
	return false
}

// RestoreHistory puts back the exact pre-edit history and title after a
// failed edit-and-rerun.
func (r *Registry) RestoreHistory(id string, gen uint64, backup EditBackup) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 || r.gens[id] != gen {
		return false
	}
	r.tabs[idx].History = backup.History
	r.tabs[idx].Title = backup.Title
	r.saveLocked()
	return true
}

// EndRequest clears the loading flag for the request's generation. Called
// exactly once per request regardless of how the stream ended. A newer
// request owns the flag, so a stale generation leaves it untouched.
func (r *Registry) EndRequest(id string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 || r.gens[id] != gen {
		return
	}
	r.tabs[idx].IsLoading = false
	r.saveLocked()
}

func (r *Registry) indexLocked(id string) int {
	for i, tab := range r.tabs {
		if tab.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) nextGenLocked(id string) uint64 {
	r.gens[id]++
	return r.gens[id]
}

// requestTargetLocked resolves a generation-tagged mutation to its
// placeholder item, or nil when the tab is gone, the generation is stale, or
// the item was already removed.
func (r *Registry) requestTargetLocked(id string, gen uint64, itemID string) *types.HistoryItem {
	idx := r.indexLocked(id)
	if idx < 0 || r.gens[id] != gen {
		return nil
	}
	tab := &r.tabs[idx]
	for i := range tab.History {
		if tab.History[i].ID == itemID {
			return &tab.History[i]
		}
	}
	return nil
}

// saveLocked persists current state at a settle point. Incognito state is
// never written; persistence failures are logged, not surfaced, so a flaky
// disk cannot break the in-memory session.
func (r *Registry) saveLocked() {
	if r.store == nil || r.mode == ModeIncognito {
		return
	}
	if err := r.store.SaveTabs(types.CloneTabs(r.tabs), r.activeID); err != nil && r.log != nil {
		r.log.Errorf("failed to persist tabs: %v", err)
	}
}
