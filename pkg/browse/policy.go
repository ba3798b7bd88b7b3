// Package browse fetches and renders web pages for tabs in the browse view.
//
// Two backends are available: a plain HTTP fetcher that extracts readable
// text from the response HTML, and a live browser session pool driven by
// Playwright for pages that need script execution. Both sit behind the same
// Page result type so callers don't care which one produced the content.
package browse

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Policy decides which hosts may be fetched. Patterns are host globs, so
// "*.tracker.com" blocks every subdomain while "ads.example.com" blocks one
// host exactly.
type Policy struct {
	blocked []glob.Glob
}

// NewPolicy compiles the blocked-domain patterns. Invalid patterns fail
// loudly rather than silently allowing traffic.
func NewPolicy(blockedDomains []string) (*Policy, error) {
	p := &Policy{}
	for _, pattern := range blockedDomains {
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid blocked domain pattern %q: %w", pattern, err)
		}
		p.blocked = append(p.blocked, g)
	}
	return p, nil
}

// Check returns an error if the URL is malformed, non-HTTP, or its host
// matches a blocked pattern.
func (p *Policy) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("URL has no host")
	}

	host := strings.ToLower(u.Hostname())
	for _, g := range p.blocked {
		if g.Match(host) {
			return fmt.Errorf("domain %s is blocked", host)
		}
	}
	return nil
}
