package browse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultMaxContentLength caps extracted page text. Beyond this the text is
// cut and Truncated is set.
const DefaultMaxContentLength = 100_000

const userAgent = "piexi/1.0 (+https://github.com/mittai17/piexi)"

// Page is the readable rendition of a fetched URL.
type Page struct {
	URL         string
	Title       string
	Description string
	Text        string
	Truncated   bool
}

// Fetcher retrieves pages over plain HTTP and reduces them to readable text.
type Fetcher struct {
	httpClient *http.Client
	policy     *Policy
	maxLength  int
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithMaxContentLength caps the extracted text length.
func WithMaxContentLength(n int) FetcherOption {
	return func(f *Fetcher) { f.maxLength = n }
}

// NewFetcher creates a fetcher governed by the given policy. A nil policy
// allows every host.
func NewFetcher(policy *Policy, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     policy,
		maxLength:  DefaultMaxContentLength,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the URL and extracts its readable content.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if f.policy != nil {
		if err := f.policy.Check(rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	page, err := ExtractReadable(string(body), f.maxLength)
	if err != nil {
		return nil, err
	}
	page.URL = resp.Request.URL.String()
	return page, nil
}

// ExtractReadable parses HTML and reduces it to title, meta description, and
// visible text. Script, style, and similar noise elements are dropped; block
// elements become line breaks so the output reads like the page.
func ExtractReadable(rawHTML string, maxLength int) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		Title:       findTitle(doc),
		Description: findMetaDescription(doc),
	}

	var b strings.Builder
	var length int
	page.Truncated = collectText(doc, &b, &length, maxLength)
	page.Text = strings.TrimSpace(b.String())
	return page, nil
}

// collectText walks the tree appending visible text. Returns true once the
// length cap is hit.
func collectText(n *html.Node, b *strings.Builder, length *int, maxLength int) bool {
	if *length >= maxLength {
		return true
	}

	switch n.Type {
	case html.CommentNode:
		return false
	case html.ElementNode:
		if isNoiseElement(strings.ToLower(n.Data)) {
			return false
		}
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text == "" {
			return false
		}
		if *length+len(text) > maxLength {
			b.WriteString(text[:maxLength-*length])
			b.WriteString("...")
			*length = maxLength
			return true
		}
		b.WriteString(text)
		b.WriteString(" ")
		*length += len(text) + 1
		return false
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if collectText(c, b, length, maxLength) {
			return true
		}
	}

	if n.Type == html.ElementNode && isBlockElement(strings.ToLower(n.Data)) {
		b.WriteString("\n")
	}
	return false
}

func isNoiseElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg", "head", "template":
		return true
	}
	return false
}

func isBlockElement(tag string) bool {
	switch tag {
	case "div", "p", "section", "article", "header", "footer", "nav", "main",
		"aside", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"table", "tr", "blockquote", "pre", "br":
		return true
	}
	return false
}

func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil && title == ""; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

func findMetaDescription(doc *html.Node) string {
	var description string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var isDescription bool
			var content string
			for _, attr := range n.Attr {
				if attr.Key == "name" && attr.Val == "description" {
					isDescription = true
				}
				if attr.Key == "content" {
					content = attr.Val
				}
			}
			if isDescription && content != "" {
				description = strings.TrimSpace(content)
				return
			}
		}
		for c := n.FirstChild; c != nil && description == ""; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return description
}
