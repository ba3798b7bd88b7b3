// Package summary generates session summaries, tab titles, and page
// summaries through non-streaming completions.
package summary

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mittai17/piexi/pkg/browse"
	"github.com/mittai17/piexi/pkg/search"
	"github.com/mittai17/piexi/pkg/types"
)

// EmptySessionSummary is returned for a session with no history, without
// calling the backend.
const EmptySessionSummary = "This session is empty. Start a search to generate a summary."

// answerExcerptLen bounds how much of each answer goes into the summary
// context.
const answerExcerptLen = 200

// pageExcerptLen bounds how much page text goes into the summarize prompt.
const pageExcerptLen = 10_000

// PageFetcher retrieves readable page content for summarization.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*browse.Page, error)
}

// Generator produces summaries and titles over a completion service.
type Generator struct {
	svc     search.Service
	fetcher PageFetcher
}

// NewGenerator creates a generator. fetcher may be nil if page
// summarization is not needed.
func NewGenerator(svc search.Service, fetcher PageFetcher) *Generator {
	return &Generator{svc: svc, fetcher: fetcher}
}

// SessionSummary produces a one-paragraph summary of a tab's conversation.
// An empty history returns a canned message and makes no request.
func (g *Generator) SessionSummary(ctx context.Context, history []types.HistoryItem) (string, error) {
	if len(history) == 0 {
		return EmptySessionSummary, nil
	}

	var b strings.Builder
	for i, item := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		answer := excerpt(item.Answer, answerExcerptLen)
		fmt.Fprintf(&b, "User Query: %q\nAI Answer: %q...", item.Query, answer)
	}

	prompt := "Based on the following conversation history, please provide a concise, one-paragraph summary of the key topics and findings. The user is conducting a research session, so focus on the main themes discovered.\n\nConversation:\n" + b.String()

	summary, err := g.svc.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// TabTitle produces a 2-4 word title from the session's queries. An empty
// history returns the default tab title and makes no request. Quotes are
// stripped and only the first line is kept, since models pad short answers.
func (g *Generator) TabTitle(ctx context.Context, history []types.HistoryItem) (string, error) {
	if len(history) == 0 {
		return types.DefaultTabTitle, nil
	}

	var b strings.Builder
	for i, item := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Q: ")
		b.WriteString(item.Query)
	}

	prompt := "Based on the following list of search queries from a research session, create a very short, concise title (2-4 words maximum). The title should capture the main theme of the research.\n\nQueries:\n" + b.String() + "\n\nTitle:"

	raw, err := g.svc.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate title: %w", err)
	}

	title := raw
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	title = strings.TrimSpace(strings.NewReplacer(`"`, "", `'`, "").Replace(title))
	if title == "" {
		return "", fmt.Errorf("the model returned an empty title")
	}
	return title, nil
}

// excerpt trims s to at most max bytes, backing up so a multibyte rune is
// never split.
func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// SummarizePage fetches a URL and produces a one-paragraph summary of its
// content.
func (g *Generator) SummarizePage(ctx context.Context, url string) (string, error) {
	if g.fetcher == nil {
		return "", fmt.Errorf("page summarization is not configured")
	}

	page, err := g.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page content: %w", err)
	}

	text := excerpt(page.Text, pageExcerptLen)

	prompt := "Please provide a concise, one-paragraph summary of the following webpage content:\n\n---\n" + text + "\n---\n\nSummary:"

	summary, err := g.svc.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	return strings.TrimSpace(summary), nil
}
