package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mittai17/piexi/pkg/search"
	"github.com/mittai17/piexi/pkg/types"
)

func collect(t *testing.T, events <-chan *search.Event) []*search.Event {
	t.Helper()
	var out []*search.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func streamServer(t *testing.T, frames string, capture *answerRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/answer", r.URL.Path)
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, frames)
	}))
}

func TestStreamAnswer(t *testing.T) {
	t.Run("chunks then metadata in order", func(t *testing.T) {
		frames := "event: chunk\ndata: {\"text\":\"Hel\"}\n\n" +
			"event: chunk\ndata: {\"text\":\"lo\"}\n\n" +
			"event: metadata\ndata: {\"finalAnswer\":\"Hello world\",\"sources\":[{\"uri\":\"https://a.com\",\"title\":\"A\"}],\"followupQuestions\":[\"next?\"]}\n\n"

		var req answerRequest
		srv := streamServer(t, frames, &req)
		defer srv.Close()

		p, err := NewProvider(srv.URL, "key", WithTokenCounter(search.HeuristicCounter{}))
		require.NoError(t, err)

		prior := []types.HistoryItem{{Query: "earlier", Answer: "context"}}
		events, err := p.StreamAnswer(context.Background(), "greeting", types.FocusAll, prior)
		require.NoError(t, err)

		got := collect(t, events)
		require.Len(t, got, 3)
		assert.Equal(t, "Hel", got[0].Text)
		assert.Equal(t, "lo", got[1].Text)
		require.NotNil(t, got[2].Metadata)
		assert.Equal(t, "Hello world", got[2].Metadata.FinalAnswer)
		require.Len(t, got[2].Metadata.Sources, 1)
		assert.Equal(t, []string{"next?"}, got[2].Metadata.FollowupQuestions)

		require.Len(t, req.History, 1, "prior turns travel with the request")
		assert.Equal(t, "earlier", req.History[0].Query)
		assert.Equal(t, "greeting", req.Query)
	})

	t.Run("error frame terminates the stream", func(t *testing.T) {
		frames := "event: chunk\ndata: {\"text\":\"partial\"}\n\n" +
			"event: error\ndata: {\"message\":\"model overloaded\"}\n\n" +
			"event: chunk\ndata: {\"text\":\"never delivered\"}\n\n"

		srv := streamServer(t, frames, nil)
		defer srv.Close()

		p, err := NewProvider(srv.URL, "", WithTokenCounter(search.HeuristicCounter{}))
		require.NoError(t, err)

		events, err := p.StreamAnswer(context.Background(), "q", types.FocusAll, nil)
		require.NoError(t, err)

		got := collect(t, events)
		require.Len(t, got, 2, "nothing is processed after a terminal frame")
		assert.Equal(t, "partial", got[0].Text)
		require.Error(t, got[1].Err)
		assert.Contains(t, got[1].Err.Error(), "model overloaded")
	})

	t.Run("malformed frames are skipped", func(t *testing.T) {
		frames := "event: chunk\ndata: {broken json\n\n" +
			"event: chunk\ndata: {\"text\":\"ok\"}\n\n" +
			"event: metadata\ndata: {\"finalAnswer\":\"ok\"}\n\n"

		srv := streamServer(t, frames, nil)
		defer srv.Close()

		p, err := NewProvider(srv.URL, "", WithTokenCounter(search.HeuristicCounter{}))
		require.NoError(t, err)

		events, err := p.StreamAnswer(context.Background(), "q", types.FocusAll, nil)
		require.NoError(t, err)

		got := collect(t, events)
		require.Len(t, got, 2)
		assert.Equal(t, "ok", got[0].Text)
	})

	t.Run("non-success status fails to initiate", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		p, err := NewProvider(srv.URL, "", WithTokenCounter(search.HeuristicCounter{}))
		require.NoError(t, err)

		_, err = p.StreamAnswer(context.Background(), "q", types.FocusAll, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("token budget trims oldest prior turns", func(t *testing.T) {
		frames := "event: metadata\ndata: {\"finalAnswer\":\"done\"}\n\n"
		var req answerRequest
		srv := streamServer(t, frames, &req)
		defer srv.Close()

		p, err := NewProvider(srv.URL, "",
			WithTokenBudget(10),
			WithTokenCounter(search.HeuristicCounter{}))
		require.NoError(t, err)

		prior := []types.HistoryItem{
			{Query: "old old old old old old old old", Answer: "long long long long long long"},
			{Query: "new", Answer: "short"},
		}
		events, err := p.StreamAnswer(context.Background(), "q", types.FocusAll, prior)
		require.NoError(t, err)
		collect(t, events)

		require.Len(t, req.History, 1)
		assert.Equal(t, "new", req.History[0].Query)
	})
}

func TestComplete(t *testing.T) {
	t.Run("returns generated text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/generate", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"text": "a summary"})
		}))
		defer srv.Close()

		p, err := NewProvider(srv.URL, "", WithTokenCounter(search.HeuristicCounter{}))
		require.NoError(t, err)

		got, err := p.Complete(context.Background(), "summarize")
		require.NoError(t, err)
		assert.Equal(t, "a summary", got)
	})

	t.Run("empty result is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"text": ""})
		}))
		defer srv.Close()

		p, err := NewProvider(srv.URL, "", WithTokenCounter(search.HeuristicCounter{}))
		require.NoError(t, err)

		_, err = p.Complete(context.Background(), "summarize")
		assert.Error(t, err)
	})
}

func TestNewProviderRequiresBaseURL(t *testing.T) {
	_, err := NewProvider("", "key")
	assert.Error(t, err)
}
