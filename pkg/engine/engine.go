// Package engine drives search and edit requests end-to-end: it builds the
// prompt, opens the streaming channel, and folds incoming events into the
// owning tab's history through the registry's generation-tagged entry points.
//
// One call handles one request. Calls are synchronous; callers that want
// concurrency (the TUI does) run them on their own goroutines, which is safe
// because each request only mutates its own tab's slice of state.
package engine

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/mittai17/piexi/pkg/logging"
	"github.com/mittai17/piexi/pkg/search"
	"github.com/mittai17/piexi/pkg/session"
	"github.com/mittai17/piexi/pkg/types"
)

// Engine executes queries against the conversational search backend.
type Engine struct {
	registry *session.Registry
	svc      search.Service
	log      *logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates an engine. log may be nil.
func New(registry *session.Registry, svc search.Service, log *logging.Logger) *Engine {
	return &Engine{
		registry: registry,
		svc:      svc,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RunSearch executes one query against the tab's conversation.
//
// Blank queries and unknown tabs are silent no-ops. A query that is a URL is
// routed to a navigation intent instead: the tab switches to the browse view
// and no request is issued. Otherwise the query streams into a placeholder
// history item which is finalized on success or removed on failure.
//
// The returned error is the single failure channel: non-nil means the request
// failed and history was rolled back.
func (e *Engine) RunSearch(ctx context.Context, tabID, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	tab, ok := e.registry.Tab(tabID)
	if !ok {
		return nil
	}

	if search.IsURL(query) {
		e.registry.Navigate(tabID, query)
		return nil
	}

	gen, itemID, prior, ok := e.registry.BeginSearch(tabID, query)
	if !ok {
		return nil
	}
	defer e.registry.EndRequest(tabID, gen)

	err := e.stream(ctx, tab.SearchFocus, query, prior, target{
		tabID:  tabID,
		gen:    gen,
		itemID: itemID,
	})
	if err != nil {
		e.registry.RollbackSearch(tabID, gen, itemID)
		if e.log != nil {
			e.log.Warnf("search failed for tab %s: %v", tabID, err)
		}
		return err
	}
	return nil
}

// EditAndRerun replaces the conversation from the edited item forward: the
// edited item and everything after it are discarded, and the new query runs
// against the truncated context. On failure the exact pre-edit history is
// restored, not merely the placeholder removed.
func (e *Engine) EditAndRerun(ctx context.Context, tabID, historyItemID, newQuery string) error {
	newQuery = strings.TrimSpace(newQuery)
	if newQuery == "" {
		return nil
	}

	tab, ok := e.registry.Tab(tabID)
	if !ok {
		return nil
	}

	gen, itemID, prior, backup, ok := e.registry.BeginEdit(tabID, historyItemID, newQuery)
	if !ok {
		return nil
	}
	defer e.registry.EndRequest(tabID, gen)

	err := e.stream(ctx, tab.SearchFocus, newQuery, prior, target{
		tabID:  tabID,
		gen:    gen,
		itemID: itemID,
	})
	if err != nil {
		e.registry.RestoreHistory(tabID, gen, backup)
		if e.log != nil {
			e.log.Warnf("edit rerun failed for tab %s: %v", tabID, err)
		}
		return err
	}
	return nil
}

// target identifies the placeholder a stream folds into.
type target struct {
	tabID  string
	gen    uint64
	itemID string
}

// stream opens the answer channel and applies its events in arrival order.
// Chunk events append to the placeholder; the metadata event finalizes it; an
// error event (or a failure to open the stream) is returned to the caller.
// End-of-stream without a terminal event counts as normal completion.
func (e *Engine) stream(ctx context.Context, focus types.SearchFocus, query string, prior []types.HistoryItem, tgt target) error {
	prompt := search.BuildPrompt(focus, query)

	events, err := e.svc.StreamAnswer(ctx, prompt, focus, prior)
	if err != nil {
		return err
	}

	for ev := range events {
		switch {
		case ev.Err != nil:
			return ev.Err
		case ev.Metadata != nil:
			e.registry.FinalizeAnswer(
				tgt.tabID, tgt.gen, tgt.itemID,
				ev.Metadata.FinalAnswer,
				ev.Metadata.Sources,
				ev.Metadata.FollowupQuestions,
				e.popularity(),
			)
			return nil
		default:
			e.registry.AppendAnswer(tgt.tabID, tgt.gen, tgt.itemID, ev.Text)
		}
	}
	return nil
}

func (e *Engine) popularity() types.Popularity {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return types.NewPopularity(e.rng)
}
