// Package search defines the conversational search service port and the
// prompt construction shared by its implementations.
//
// A service executes one query and streams the response back as an ordered
// sequence of events: zero or more text chunks, then exactly one terminal
// event (metadata on success, error on failure), after which the channel is
// closed. Implementations live in the subpackages remote (hosted SSE
// endpoint) and openai (direct OpenAI-compatible API).
package search

import (
	"context"

	"github.com/mittai17/piexi/pkg/types"
)

// Metadata is the terminal payload of a successful stream.
type Metadata struct {
	// FinalAnswer is the authoritative answer text. It replaces whatever was
	// accumulated from chunks.
	FinalAnswer string `json:"finalAnswer"`

	// Sources are grounding references, possibly with duplicates; the
	// consumer deduplicates by URI.
	Sources []types.Source `json:"sources"`

	// FollowupQuestions are suggested next queries.
	FollowupQuestions []string `json:"followupQuestions"`
}

// Event is one element of an answer stream.
//
// Exactly one of the three payload fields is set: Text for an incremental
// chunk, Metadata for the successful terminal event, Err for the failing one.
type Event struct {
	Text     string
	Metadata *Metadata
	Err      error
}

// IsTerminal reports whether no further events follow this one.
func (e *Event) IsTerminal() bool {
	return e.Metadata != nil || e.Err != nil
}

// Service is the conversational search backend consumed by the engine.
type Service interface {
	// StreamAnswer opens a streaming request. prompt is the fully qualified
	// prompt (focus prefix already applied); prior is the conversation
	// context, oldest first. The returned channel is closed after the
	// terminal event. An error return means the request could not be
	// initiated at all.
	StreamAnswer(ctx context.Context, prompt string, focus types.SearchFocus, prior []types.HistoryItem) (<-chan *Event, error)

	// Complete executes a one-shot, non-conversational generation. Used for
	// session summaries, tab titles, and page summaries.
	Complete(ctx context.Context, prompt string) (string, error)
}
