// Package remote implements the search service against the hosted Piexi
// answer endpoint.
//
// The wire format is a text event-stream of named frames:
//
//	event: chunk|metadata|error
//	data: <JSON>
//
// delimited by a blank line and read incrementally. The stream ends when the
// server closes the connection; chunk events carry answer deltas, and exactly
// one metadata or error frame terminates the logical response.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mittai17/piexi/pkg/search"
	"github.com/mittai17/piexi/pkg/types"
)

// Provider talks to a hosted Piexi backend.
type Provider struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	tokenBudget int
	counter     search.TokenCounter
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.httpClient = c }
}

// WithTokenBudget caps how many tokens of prior conversation are sent as
// context. Zero disables trimming.
func WithTokenBudget(budget int) ProviderOption {
	return func(p *Provider) { p.tokenBudget = budget }
}

// WithTokenCounter overrides the token counter used for context trimming.
func WithTokenCounter(c search.TokenCounter) ProviderOption {
	return func(p *Provider) { p.counter = c }
}

// NewProvider creates a provider for the backend at baseURL. apiKey may be
// empty for anonymous access.
func NewProvider(baseURL, apiKey string, opts ...ProviderOption) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote provider requires a base URL")
	}

	p := &Provider{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.counter == nil {
		if tc, err := search.NewTiktokenCounter(); err == nil {
			p.counter = tc
		} else {
			p.counter = search.HeuristicCounter{}
		}
	}
	return p, nil
}

type turn struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

type answerRequest struct {
	Query   string            `json:"query"`
	Focus   types.SearchFocus `json:"focus"`
	History []turn            `json:"history"`
}

// StreamAnswer opens the streaming answer request. The returned channel is
// closed after the terminal event.
func (p *Provider) StreamAnswer(ctx context.Context, prompt string, focus types.SearchFocus, prior []types.HistoryItem) (<-chan *search.Event, error) {
	if p.tokenBudget > 0 {
		prior = search.TrimToBudget(prior, p.tokenBudget, p.counter)
	}

	history := make([]turn, 0, len(prior))
	for _, item := range prior {
		history = append(history, turn{Query: item.Query, Answer: item.Answer})
	}

	body, err := json.Marshal(answerRequest{Query: prompt, Focus: focus, History: history})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/answer", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("answer request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	events := make(chan *search.Event, 10)
	go p.processStream(ctx, resp, events)
	return events, nil
}

// processStream reads frames off the response body and forwards them as
// events. It guarantees at most one terminal event and closes the channel.
func (p *Provider) processStream(ctx context.Context, resp *http.Response, events chan<- *search.Event) {
	defer close(events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder

	dispatch := func() bool {
		if eventName == "" {
			return true
		}
		ev, terminal := parseFrame(eventName, data.String())
		eventName = ""
		data.Reset()
		if ev == nil {
			return true // malformed frames are skipped
		}
		if !send(ctx, events, ev) {
			return false
		}
		return !terminal
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if !dispatch() {
				return
			}
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(line, "data: "))
		case strings.HasPrefix(line, ":"):
			// SSE comment, ignore.
		}
	}

	if !dispatch() {
		return
	}

	if err := scanner.Err(); err != nil {
		send(ctx, events, &search.Event{Err: fmt.Errorf("stream read error: %w", err)})
	}
}

// parseFrame decodes one named frame. The second return reports whether the
// frame terminates the stream.
func parseFrame(name, data string) (*search.Event, bool) {
	switch name {
	case "chunk":
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, false
		}
		return &search.Event{Text: payload.Text}, false

	case "metadata":
		var payload search.Metadata
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, false
		}
		return &search.Event{Metadata: &payload}, true

	case "error":
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, false
		}
		return &search.Event{Err: fmt.Errorf("%s", payload.Message)}, true
	}
	return nil, false
}

func send(ctx context.Context, events chan<- *search.Event, ev *search.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Complete executes a one-shot generation against the backend.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generate request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.Text == "" {
		return "", fmt.Errorf("backend returned an empty result")
	}
	return payload.Text, nil
}
