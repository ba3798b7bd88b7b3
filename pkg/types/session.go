// Package types defines the core domain model shared across Piexi components:
// tab sessions, conversation history, and the bookmark store records.
package types

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// SearchFocus narrows how a query is framed before it is sent to the
// conversational search backend.
type SearchFocus string

const (
	FocusAll      SearchFocus = "all"
	FocusAcademic SearchFocus = "academic"
	FocusWriting  SearchFocus = "writing"
	FocusYouTube  SearchFocus = "youtube"
	FocusReddit   SearchFocus = "reddit"
)

// ValidFocus reports whether f is one of the known focus modes.
func ValidFocus(f SearchFocus) bool {
	switch f {
	case FocusAll, FocusAcademic, FocusWriting, FocusYouTube, FocusReddit:
		return true
	}
	return false
}

// ViewMode selects which of the two mutually exclusive rendering modes a tab
// is in: conversational search results or an embedded page view.
type ViewMode string

const (
	ViewSearch ViewMode = "search"
	ViewBrowse ViewMode = "browse"
)

// DefaultTabTitle is the title given to a tab before its first query.
const DefaultTabTitle = "New Tab"

// Source is one grounding reference attached to an answer.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Popularity holds the cosmetic share/bookmark counters assigned to an answer
// when its terminal metadata arrives. They are generated, not measured.
type Popularity struct {
	Shares    int `json:"shares"`
	Bookmarks int `json:"bookmarks"`
}

// NewPopularity generates counters in the same ranges the hosted backend uses:
// shares in [50, 9999], bookmarks in [10, 1999].
func NewPopularity(rng *rand.Rand) Popularity {
	return Popularity{
		Shares:    rng.Intn(9950) + 50,
		Bookmarks: rng.Intn(1990) + 10,
	}
}

// HistoryItem is one query/answer turn within a tab's conversation.
//
// While a request is streaming, the item exists as a placeholder with an empty
// Answer occupying its final position in the history, so index-based lookups
// stay stable. The terminal metadata event replaces Answer atomically and
// populates Sources and FollowupQuestions.
type HistoryItem struct {
	ID                string     `json:"id"`
	Query             string     `json:"query"`
	Answer            string     `json:"answer"`
	Sources           []Source   `json:"sources"`
	Popularity        Popularity `json:"popularity"`
	FollowupQuestions []string   `json:"followupQuestions,omitempty"`
}

// NewHistoryItemID returns a time-derived identifier for a history item.
// The timestamp prefix keeps ids sortable in conversation order; the uuid
// suffix disambiguates items created within the same nanosecond.
func NewHistoryItemID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format(time.RFC3339Nano), uuid.NewString())
}

// DedupeSources removes duplicate sources by URI, keeping the first
// occurrence of each and preserving order.
func DedupeSources(sources []Source) []Source {
	if len(sources) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(sources))
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if seen[s.URI] {
			continue
		}
		seen[s.URI] = true
		out = append(out, s)
	}
	return out
}

// TabSession is one independent browsing/search context.
type TabSession struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	History     []HistoryItem `json:"history"`
	IsLoading   bool          `json:"isLoading"`
	SearchFocus SearchFocus   `json:"searchFocus"`
	View        ViewMode      `json:"view"`
	CurrentURL  string        `json:"currentUrl,omitempty"`
}

// NewTabSession builds a fresh tab with empty history, the default title,
// search view, and the all focus.
func NewTabSession() TabSession {
	return TabSession{
		ID:          "tab-" + uuid.NewString(),
		Title:       DefaultTabTitle,
		SearchFocus: FocusAll,
		View:        ViewSearch,
	}
}

// Clone returns a deep copy of the tab. History items are copied so mutations
// of the clone never alias the original's conversation.
func (t TabSession) Clone() TabSession {
	out := t
	out.History = CloneHistory(t.History)
	return out
}

// CloneHistory deep-copies a conversation history.
func CloneHistory(history []HistoryItem) []HistoryItem {
	if history == nil {
		return nil
	}
	out := make([]HistoryItem, len(history))
	copy(out, history)
	for i := range out {
		out[i].Sources = append([]Source(nil), history[i].Sources...)
		out[i].FollowupQuestions = append([]string(nil), history[i].FollowupQuestions...)
	}
	return out
}

// CloneTabs deep-copies a tab list.
func CloneTabs(tabs []TabSession) []TabSession {
	if tabs == nil {
		return nil
	}
	out := make([]TabSession, len(tabs))
	for i, t := range tabs {
		out[i] = t.Clone()
	}
	return out
}
