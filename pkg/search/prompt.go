package search

import (
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/mittai17/piexi/pkg/types"
)

// SystemInstruction frames every conversational search request.
const SystemInstruction = "You are Piexi, an AI search engine. Your primary function is to find the most relevant and up-to-date information to answer user queries. Provide comprehensive, clear, and well-structured answers and always cite your sources. Use markdown for formatting. After the main answer, include a <followup_questions> section containing 3-4 relevant follow-up questions a user might ask. Each question should be on a new line."

// urlPattern matches absolute http(s) URLs entered as a whole query.
var urlPattern = regexp.MustCompile(`(?i)^(https|http)://[^\s/$.?#].[^\s]*$`)

// IsURL reports whether the query should be routed to a navigation intent
// instead of a search request.
func IsURL(query string) bool {
	return urlPattern.MatchString(strings.TrimSpace(query))
}

// FocusPrefix returns the prompt prefix that scopes a query to its focus mode.
func FocusPrefix(focus types.SearchFocus) string {
	switch focus {
	case types.FocusAcademic:
		return "Search for academic papers and scholarly articles to answer the following: "
	case types.FocusWriting:
		return "Act as an expert writing assistant. Rephrase, summarize, or expand on the following text: "
	case types.FocusYouTube:
		return "Search YouTube and summarize the most relevant video(s) for the query: "
	case types.FocusReddit:
		return "Search Reddit for discussions and opinions on the following topic: "
	default:
		return ""
	}
}

// BuildPrompt produces the fully qualified prompt for a query.
func BuildPrompt(focus types.SearchFocus, query string) string {
	return FocusPrefix(focus) + query
}

// TokenCounter estimates how many tokens a string costs in the request.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts with the cl100k_base encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding. The encoding data may be
// fetched and cached on first use; an error here means counting falls back to
// the heuristic counter.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the token count of text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter approximates four characters per token. Used when the
// tiktoken encoding is unavailable.
type HeuristicCounter struct{}

// Count returns the approximate token count of text.
func (HeuristicCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// TrimToBudget drops the oldest turns of a conversation until the remainder
// fits within budget tokens. Each turn costs its query plus its answer. The
// most recent turn is always kept, even if it alone exceeds the budget, so a
// follow-up never loses its immediate context.
func TrimToBudget(history []types.HistoryItem, budget int, counter TokenCounter) []types.HistoryItem {
	if len(history) == 0 || budget <= 0 {
		return history
	}
	if counter == nil {
		counter = HeuristicCounter{}
	}

	costs := make([]int, len(history))
	total := 0
	for i, item := range history {
		costs[i] = counter.Count(item.Query) + counter.Count(item.Answer)
		total += costs[i]
	}

	start := 0
	for total > budget && start < len(history)-1 {
		total -= costs[start]
		start++
	}
	return history[start:]
}
