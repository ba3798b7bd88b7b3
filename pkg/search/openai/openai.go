// Package openai implements the search service directly against an
// OpenAI-compatible chat completions API.
//
// The hosted backend synthesizes answer metadata server-side; this provider
// reproduces that client-side: it streams content deltas as chunk events,
// then extracts the <followup_questions> block from the accumulated answer
// to build the terminal metadata event. OpenAI-compatible APIs expose no
// grounding metadata, so sources are empty.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/openai/openai-go"

	"github.com/mittai17/piexi/pkg/search"
	"github.com/mittai17/piexi/pkg/types"
)

// DefaultBaseURL is the standard OpenAI API base URL.
const DefaultBaseURL = "https://api.openai.com/v1"

var followupPattern = regexp.MustCompile(`(?s)<followup_questions>(.*?)</followup_questions>`)

// Provider implements the search service over an OpenAI-compatible API.
type Provider struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	tokenBudget int
	counter     search.TokenCounter
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model used for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL points the provider at a non-default OpenAI-compatible API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) { p.baseURL = strings.TrimRight(baseURL, "/") }
}

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

// NewProvider creates a provider with the given API key.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	p := &Provider{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      "gpt-4o",
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

// buildMessages converts the system instruction, prior turns, and prompt into
// chat messages. Each prior turn contributes one user and one assistant
// message, in original order.
func (p *Provider) buildMessages(prompt string, prior []types.HistoryItem) []openai.ChatCompletionMessageParamUnion {
	if p.tokenBudget > 0 {
		prior = search.TrimToBudget(prior, p.tokenBudget, p.counter)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2*len(prior)+2)
	messages = append(messages, openai.SystemMessage(search.SystemInstruction))
	for _, item := range prior {
		messages = append(messages, openai.UserMessage(item.Query))
		messages = append(messages, openai.AssistantMessage(item.Answer))
	}
	messages = append(messages, openai.UserMessage(prompt))
	return messages
}

// StreamAnswer opens a streaming chat completion and adapts it to the answer
// event contract.
func (p *Provider) StreamAnswer(ctx context.Context, prompt string, focus types.SearchFocus, prior []types.HistoryItem) (<-chan *search.Event, error) {
	resp, err := p.sendRequest(ctx, p.buildMessages(prompt, prior), true)
	if err != nil {
		return nil, err
	}

	events := make(chan *search.Event, 10)
	go p.processStream(ctx, resp, events)
	return events, nil
}

func (p *Provider) sendRequest(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, stream bool) (*http.Response, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model":    p.model,
		"messages": messages,
		"stream":   stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// processStream forwards content deltas as chunk events while accumulating
// the full answer, then emits the terminal metadata event.
func (p *Provider) processStream(ctx context.Context, resp *http.Response, events chan<- *search.Event) {
	defer close(events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var answer strings.Builder

	finish := func() {
		final, followups := ExtractFollowups(answer.String())
		send(ctx, events, &search.Event{Metadata: &search.Metadata{
			FinalAnswer:       final,
			FollowupQuestions: followups,
		}})
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			finish()
			return
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip malformed chunks silently
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		if content := chunk.Choices[0].Delta.Content; content != "" {
			answer.WriteString(content)
			if !send(ctx, events, &search.Event{Text: content}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, events, &search.Event{Err: fmt.Errorf("stream read error: %w", err)})
		return
	}

	// Stream ended without the [DONE] marker; treat what we have as final.
	finish()
}

func send(ctx context.Context, events chan<- *search.Event, ev *search.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ExtractFollowups splits a raw answer into the final answer text and the
// questions listed in its <followup_questions> block, if any.
func ExtractFollowups(raw string) (string, []string) {
	match := followupPattern.FindStringSubmatch(raw)
	if match == nil {
		return strings.TrimSpace(raw), nil
	}

	var followups []string
	for _, line := range strings.Split(match[1], "\n") {
		if q := strings.TrimSpace(line); q != "" {
			followups = append(followups, q)
		}
	}

	cleaned := strings.TrimSpace(followupPattern.ReplaceAllString(raw, ""))
	return cleaned, followups
}

// Complete executes a non-streaming chat completion with the system
// instruction applied.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(search.SystemInstruction),
		openai.UserMessage(prompt),
	}

	resp, err := p.sendRequest(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("API returned an empty completion")
	}
	return payload.Choices[0].Message.Content, nil
}
