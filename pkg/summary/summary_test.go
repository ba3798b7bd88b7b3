package summary

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mittai17/piexi/pkg/browse"
	"github.com/mittai17/piexi/pkg/search"
	"github.com/mittai17/piexi/pkg/types"
)

// fakeCompleter scripts Complete and records prompts. StreamAnswer is never
// used here.
type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) StreamAnswer(ctx context.Context, prompt string, focus types.SearchFocus, prior []types.HistoryItem) (<-chan *search.Event, error) {
	panic("not used")
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

type fakeFetcher struct {
	page *browse.Page
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*browse.Page, error) {
	return f.page, f.err
}

func TestSessionSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("empty history returns canned text without a request", func(t *testing.T) {
		svc := &fakeCompleter{}
		g := NewGenerator(svc, nil)

		got, err := g.SessionSummary(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, EmptySessionSummary, got)
		assert.Empty(t, svc.prompts)
	})

	t.Run("builds context from queries and answer excerpts", func(t *testing.T) {
		svc := &fakeCompleter{response: "  A summary.  "}
		g := NewGenerator(svc, nil)

		history := []types.HistoryItem{
			{Query: "go generics", Answer: "Generics were added in 1.18."},
			{Query: "go iterators", Answer: "Range-over-func arrived in 1.23."},
		}
		got, err := g.SessionSummary(ctx, history)
		require.NoError(t, err)
		assert.Equal(t, "A summary.", got)

		require.Len(t, svc.prompts, 1)
		assert.Contains(t, svc.prompts[0], `User Query: "go generics"`)
		assert.Contains(t, svc.prompts[0], "Range-over-func")
	})

	t.Run("completion failure propagates", func(t *testing.T) {
		svc := &fakeCompleter{err: fmt.Errorf("boom")}
		g := NewGenerator(svc, nil)

		_, err := g.SessionSummary(ctx, []types.HistoryItem{{Query: "q", Answer: "a"}})
		assert.Error(t, err)
	})

	t.Run("long answers are trimmed on a rune boundary", func(t *testing.T) {
		svc := &fakeCompleter{response: "A summary."}
		g := NewGenerator(svc, nil)

		// Three-byte runes that do not divide the excerpt limit evenly, so a
		// byte-indexed cut would land mid-rune.
		history := []types.HistoryItem{
			{Query: "unicode", Answer: strings.Repeat("…", answerExcerptLen)},
		}
		_, err := g.SessionSummary(ctx, history)
		require.NoError(t, err)

		require.Len(t, svc.prompts, 1)
		assert.True(t, utf8.ValidString(svc.prompts[0]))
	})
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "abc", excerpt("abc", 10))
	assert.Equal(t, "abc", excerpt("abcdef", 3))
	assert.Equal(t, "a", excerpt("a……", 3), "backs up rather than splitting a rune")
	assert.Equal(t, "", excerpt("…", 2))
}

func TestTabTitle(t *testing.T) {
	ctx := context.Background()

	t.Run("empty history returns the default title", func(t *testing.T) {
		svc := &fakeCompleter{}
		g := NewGenerator(svc, nil)

		got, err := g.TabTitle(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, types.DefaultTabTitle, got)
		assert.Empty(t, svc.prompts)
	})

	t.Run("strips quotes and keeps only the first line", func(t *testing.T) {
		svc := &fakeCompleter{response: "\"Go Research\"\nExtra commentary."}
		g := NewGenerator(svc, nil)

		got, err := g.TabTitle(ctx, []types.HistoryItem{{Query: "go generics"}})
		require.NoError(t, err)
		assert.Equal(t, "Go Research", got)
	})

	t.Run("blank model output is an error", func(t *testing.T) {
		svc := &fakeCompleter{response: "\"\"\n"}
		g := NewGenerator(svc, nil)

		_, err := g.TabTitle(ctx, []types.HistoryItem{{Query: "q"}})
		assert.Error(t, err)
	})
}

func TestSummarizePage(t *testing.T) {
	ctx := context.Background()

	t.Run("summarizes fetched text", func(t *testing.T) {
		svc := &fakeCompleter{response: "Page summary."}
		g := NewGenerator(svc, &fakeFetcher{page: &browse.Page{Text: "article body"}})

		got, err := g.SummarizePage(ctx, "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, "Page summary.", got)

		require.Len(t, svc.prompts, 1)
		assert.Contains(t, svc.prompts[0], "article body")
	})

	t.Run("fetch failure propagates", func(t *testing.T) {
		svc := &fakeCompleter{}
		g := NewGenerator(svc, &fakeFetcher{err: fmt.Errorf("blocked")})

		_, err := g.SummarizePage(ctx, "https://example.com")
		assert.Error(t, err)
		assert.Empty(t, svc.prompts)
	})

	t.Run("no fetcher configured", func(t *testing.T) {
		g := NewGenerator(&fakeCompleter{}, nil)
		_, err := g.SummarizePage(ctx, "https://example.com")
		assert.Error(t, err)
	})
}
