package types

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTabSession(t *testing.T) {
	tab := NewTabSession()

	assert.NotEmpty(t, tab.ID)
	assert.Equal(t, DefaultTabTitle, tab.Title)
	assert.Empty(t, tab.History)
	assert.False(t, tab.IsLoading)
	assert.Equal(t, FocusAll, tab.SearchFocus)
	assert.Equal(t, ViewSearch, tab.View)
	assert.Empty(t, tab.CurrentURL)

	other := NewTabSession()
	assert.NotEqual(t, tab.ID, other.ID)
}

func TestValidFocus(t *testing.T) {
	for _, f := range []SearchFocus{FocusAll, FocusAcademic, FocusWriting, FocusYouTube, FocusReddit} {
		assert.True(t, ValidFocus(f), "focus %q should be valid", f)
	}
	assert.False(t, ValidFocus("news"))
	assert.False(t, ValidFocus(""))
}

func TestDedupeSources(t *testing.T) {
	t.Run("keeps first occurrence per uri", func(t *testing.T) {
		sources := []Source{
			{URI: "https://a.com", Title: "A"},
			{URI: "https://b.com", Title: "B"},
			{URI: "https://a.com", Title: "A duplicate"},
		}

		got := DedupeSources(sources)

		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Title)
		assert.Equal(t, "https://b.com", got[1].URI)
	})

	t.Run("nil for empty input", func(t *testing.T) {
		assert.Nil(t, DedupeSources(nil))
		assert.Nil(t, DedupeSources([]Source{}))
	})
}

func TestNewPopularity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		p := NewPopularity(rng)
		assert.GreaterOrEqual(t, p.Shares, 50)
		assert.LessOrEqual(t, p.Shares, 9999)
		assert.GreaterOrEqual(t, p.Bookmarks, 10)
		assert.LessOrEqual(t, p.Bookmarks, 1999)
	}
}

func TestNewHistoryItemID(t *testing.T) {
	now := time.Now()
	a := NewHistoryItemID(now)
	b := NewHistoryItemID(now)
	assert.NotEqual(t, a, b, "ids created at the same instant must differ")
}

func TestTabSessionClone(t *testing.T) {
	tab := NewTabSession()
	tab.History = []HistoryItem{
		{ID: "h1", Query: "q", Answer: "a", Sources: []Source{{URI: "https://a.com", Title: "A"}}},
	}

	clone := tab.Clone()
	clone.History[0].Answer = "changed"
	clone.History[0].Sources[0].Title = "changed"

	assert.Equal(t, "a", tab.History[0].Answer)
	assert.Equal(t, "A", tab.History[0].Sources[0].Title)
}

func TestCloneTabs(t *testing.T) {
	tabs := []TabSession{NewTabSession(), NewTabSession()}
	tabs[0].History = []HistoryItem{{ID: "h1", Query: "q"}}

	clone := CloneTabs(tabs)
	require.Len(t, clone, 2)
	clone[0].History[0].Query = "mutated"
	assert.Equal(t, "q", tabs[0].History[0].Query)
}
