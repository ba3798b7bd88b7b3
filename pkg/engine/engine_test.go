package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mittai17/piexi/pkg/search"
	"github.com/mittai17/piexi/pkg/session"
	"github.com/mittai17/piexi/pkg/types"
)

// fakeService replays a scripted event sequence and records what it was asked.
type fakeService struct {
	mu      sync.Mutex
	events  []search.Event
	openErr error

	prompts []string
	priors  [][]types.HistoryItem
	focuses []types.SearchFocus
}

func (f *fakeService) StreamAnswer(ctx context.Context, prompt string, focus types.SearchFocus, prior []types.HistoryItem) (<-chan *search.Event, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.priors = append(f.priors, prior)
	f.focuses = append(f.focuses, focus)
	events := make([]search.Event, len(f.events))
	copy(events, f.events)
	openErr := f.openErr
	f.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}

	ch := make(chan *search.Event, len(events))
	for i := range events {
		ch <- &events[i]
	}
	close(ch)
	return ch, nil
}

func (f *fakeService) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func newTestEngine(t *testing.T, svc search.Service) (*Engine, *session.Registry, string) {
	t.Helper()
	registry := session.NewRegistry(nil, nil)
	registry.Bootstrap()
	return New(registry, svc, nil), registry, registry.Tabs()[0].ID
}

func metadataEvent(final string, sources []types.Source, followups []string) search.Event {
	return search.Event{Metadata: &search.Metadata{
		FinalAnswer:       final,
		Sources:           sources,
		FollowupQuestions: followups,
	}}
}

func TestRunSearchValidationNoOps(t *testing.T) {
	svc := &fakeService{}
	e, registry, tabID := newTestEngine(t, svc)

	require.NoError(t, e.RunSearch(context.Background(), tabID, "   "))
	require.NoError(t, e.RunSearch(context.Background(), "no-such-tab", "query"))

	assert.Zero(t, svc.calls(), "no request may be issued")
	assert.Empty(t, registry.Tabs()[0].History)
	assert.False(t, registry.Tabs()[0].IsLoading)
}

func TestRunSearchRoutesURLToNavigation(t *testing.T) {
	svc := &fakeService{}
	e, registry, tabID := newTestEngine(t, svc)

	require.NoError(t, e.RunSearch(context.Background(), tabID, "https://example.com/docs"))

	tab := registry.Tabs()[0]
	assert.Equal(t, types.ViewBrowse, tab.View)
	assert.Equal(t, "https://example.com/docs", tab.CurrentURL)
	assert.False(t, tab.IsLoading, "navigation never touches the loading flag")
	assert.Empty(t, tab.History)
	assert.Zero(t, svc.calls())
}

func TestRunSearchSuccess(t *testing.T) {
	svc := &fakeService{events: []search.Event{
		{Text: "Hel"},
		{Text: "lo"},
		metadataEvent("Hello world",
			[]types.Source{
				{URI: "https://a.com", Title: "A"},
				{URI: "https://a.com", Title: "A dup"},
			},
			[]string{"and then?"}),
	}}
	e, registry, tabID := newTestEngine(t, svc)

	require.NoError(t, e.RunSearch(context.Background(), tabID, "greeting"))

	tab := registry.Tabs()[0]
	assert.False(t, tab.IsLoading)
	assert.Equal(t, "greeting", tab.Title, "first query becomes the title")
	require.Len(t, tab.History, 1)

	item := tab.History[0]
	assert.Equal(t, "greeting", item.Query)
	assert.Equal(t, "Hello world", item.Answer)
	require.Len(t, item.Sources, 1)
	assert.Equal(t, "A", item.Sources[0].Title)
	assert.Equal(t, []string{"and then?"}, item.FollowupQuestions)
	assert.GreaterOrEqual(t, item.Popularity.Shares, 50)
	assert.GreaterOrEqual(t, item.Popularity.Bookmarks, 10)
}

func TestRunSearchAppliesFocusPrefix(t *testing.T) {
	svc := &fakeService{events: []search.Event{metadataEvent("ok", nil, nil)}}
	e, registry, tabID := newTestEngine(t, svc)
	registry.SetSearchFocus(tabID, types.FocusReddit)

	require.NoError(t, e.RunSearch(context.Background(), tabID, "mechanical keyboards"))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.prompts, 1)
	assert.Equal(t, search.BuildPrompt(types.FocusReddit, "mechanical keyboards"), svc.prompts[0])
	assert.Equal(t, types.FocusReddit, svc.focuses[0])
}

func TestRunSearchPassesPriorTurns(t *testing.T) {
	svc := &fakeService{events: []search.Event{metadataEvent("first answer", nil, nil)}}
	e, _, tabID := newTestEngine(t, svc)

	require.NoError(t, e.RunSearch(context.Background(), tabID, "first"))
	require.NoError(t, e.RunSearch(context.Background(), tabID, "second"))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.priors, 2)
	assert.Empty(t, svc.priors[0])
	require.Len(t, svc.priors[1], 1)
	assert.Equal(t, "first", svc.priors[1][0].Query)
	assert.Equal(t, "first answer", svc.priors[1][0].Answer)
}

func TestRunSearchErrorRollsBack(t *testing.T) {
	svc := &fakeService{events: []search.Event{
		{Text: "partial"},
		{Err: errors.New("model overloaded")},
	}}
	e, registry, tabID := newTestEngine(t, svc)

	err := e.RunSearch(context.Background(), tabID, "doomed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")

	tab := registry.Tabs()[0]
	assert.Empty(t, tab.History, "placeholder is removed entirely")
	assert.False(t, tab.IsLoading, "loading clears even on failure")
}

func TestRunSearchOpenFailureRollsBack(t *testing.T) {
	svc := &fakeService{openErr: errors.New("connection refused")}
	e, registry, tabID := newTestEngine(t, svc)

	err := e.RunSearch(context.Background(), tabID, "unreachable")
	require.Error(t, err)

	tab := registry.Tabs()[0]
	assert.Empty(t, tab.History)
	assert.False(t, tab.IsLoading)
}

func TestRunSearchEndWithoutTerminalKeepsAccumulation(t *testing.T) {
	svc := &fakeService{events: []search.Event{{Text: "partial answer"}}}
	e, registry, tabID := newTestEngine(t, svc)

	require.NoError(t, e.RunSearch(context.Background(), tabID, "q"))

	tab := registry.Tabs()[0]
	require.Len(t, tab.History, 1)
	assert.Equal(t, "partial answer", tab.History[0].Answer)
	assert.False(t, tab.IsLoading)
}

func TestRunSearchMidStreamState(t *testing.T) {
	// A gated service lets the test observe the tab between chunk arrival and
	// stream completion.
	gate := make(chan struct{})
	release := make(chan struct{})
	svc := &gatedService{gate: gate, release: release}
	e, registry, tabID := newTestEngine(t, svc)

	done := make(chan error, 1)
	go func() { done <- e.RunSearch(context.Background(), tabID, "greeting") }()

	<-gate // both chunks have been emitted
	require.Eventually(t, func() bool {
		tab := registry.Tabs()[0]
		return len(tab.History) == 1 && tab.History[0].Answer == "Hello"
	}, time.Second, 5*time.Millisecond, "chunks accumulate in arrival order")
	assert.True(t, registry.Tabs()[0].IsLoading)

	close(release)
	require.NoError(t, <-done)

	tab := registry.Tabs()[0]
	assert.Equal(t, "Hello world", tab.History[0].Answer, "final text replaces the accumulation")
	require.Len(t, tab.History[0].Sources, 1)
}

type gatedService struct {
	gate    chan struct{}
	release chan struct{}
}

func (g *gatedService) StreamAnswer(ctx context.Context, prompt string, focus types.SearchFocus, prior []types.HistoryItem) (<-chan *search.Event, error) {
	ch := make(chan *search.Event)
	go func() {
		defer close(ch)
		ch <- &search.Event{Text: "Hel"}
		ch <- &search.Event{Text: "lo"}
		close(g.gate)
		<-g.release
		ch <- &search.Event{Metadata: &search.Metadata{
			FinalAnswer: "Hello world",
			Sources:     []types.Source{{URI: "https://a.com", Title: "A"}},
		}}
	}()
	return ch, nil
}

func (g *gatedService) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not used")
}

func seedConversation(t *testing.T, e *Engine, svc *fakeService, tabID string, queries ...string) {
	t.Helper()
	for _, q := range queries {
		svc.mu.Lock()
		svc.events = []search.Event{metadataEvent("answer to "+q, nil, nil)}
		svc.mu.Unlock()
		require.NoError(t, e.RunSearch(context.Background(), tabID, q))
	}
}

func TestEditAndRerun(t *testing.T) {
	t.Run("truncates and reruns from the edited point", func(t *testing.T) {
		svc := &fakeService{}
		e, registry, tabID := newTestEngine(t, svc)
		seedConversation(t, e, svc, tabID, "one", "two", "three")
		editTarget := registry.Tabs()[0].History[1]

		svc.mu.Lock()
		svc.events = []search.Event{metadataEvent("revised answer", nil, nil)}
		svc.mu.Unlock()

		require.NoError(t, e.EditAndRerun(context.Background(), tabID, editTarget.ID, "two revised"))

		tab := registry.Tabs()[0]
		require.Len(t, tab.History, 2, "history truncated to the edit point plus the new turn")
		assert.Equal(t, "one", tab.History[0].Query)
		assert.Equal(t, "two revised", tab.History[1].Query)
		assert.Equal(t, "revised answer", tab.History[1].Answer)

		svc.mu.Lock()
		defer svc.mu.Unlock()
		prior := svc.priors[len(svc.priors)-1]
		require.Len(t, prior, 1, "only turns strictly before the edit are context")
		assert.Equal(t, "one", prior[0].Query)
	})

	t.Run("editing the first item renames the tab", func(t *testing.T) {
		svc := &fakeService{}
		e, registry, tabID := newTestEngine(t, svc)
		seedConversation(t, e, svc, tabID, "one", "two")
		first := registry.Tabs()[0].History[0]

		svc.mu.Lock()
		svc.events = []search.Event{metadataEvent("fresh", nil, nil)}
		svc.mu.Unlock()

		require.NoError(t, e.EditAndRerun(context.Background(), tabID, first.ID, "fresh start"))
		assert.Equal(t, "fresh start", registry.Tabs()[0].Title)
	})

	t.Run("failure restores the pre-edit history verbatim", func(t *testing.T) {
		svc := &fakeService{}
		e, registry, tabID := newTestEngine(t, svc)
		seedConversation(t, e, svc, tabID, "one", "two", "three")
		before := registry.Tabs()[0]

		svc.mu.Lock()
		svc.events = []search.Event{{Text: "doomed"}, {Err: errors.New("backend down")}}
		svc.mu.Unlock()

		err := e.EditAndRerun(context.Background(), tabID, before.History[0].ID, "bad edit")
		require.Error(t, err)

		tab := registry.Tabs()[0]
		require.Len(t, tab.History, len(before.History))
		for i := range before.History {
			assert.Equal(t, before.History[i].ID, tab.History[i].ID)
			assert.Equal(t, before.History[i].Answer, tab.History[i].Answer)
		}
		assert.Equal(t, before.Title, tab.Title)
		assert.False(t, tab.IsLoading)
	})

	t.Run("unknown item and blank query are no-ops", func(t *testing.T) {
		svc := &fakeService{}
		e, registry, tabID := newTestEngine(t, svc)
		seedConversation(t, e, svc, tabID, "one")
		calls := svc.calls()

		require.NoError(t, e.EditAndRerun(context.Background(), tabID, "missing", "x"))
		require.NoError(t, e.EditAndRerun(context.Background(), tabID, registry.Tabs()[0].History[0].ID, "  "))

		assert.Equal(t, calls, svc.calls())
		assert.Len(t, registry.Tabs()[0].History, 1)
	})
}
