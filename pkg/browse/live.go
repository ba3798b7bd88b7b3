package browse

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

const (
	defaultNavigateTimeout = 30_000.0
	defaultViewportWidth   = 1280
	defaultViewportHeight  = 800
)

// LiveBrowser renders pages in a real headless browser, one page per tab.
// It exists for sites that serve nothing useful without script execution;
// the plain Fetcher is the default path.
type LiveBrowser struct {
	mu          sync.Mutex
	policy      *Policy
	maxLength   int
	playwright  *playwright.Playwright
	browser     playwright.Browser
	pages       map[string]playwright.Page
	initialized bool
}

// NewLiveBrowser creates an uninitialized live browser pool. A nil policy
// allows every host.
func NewLiveBrowser(policy *Policy) *LiveBrowser {
	return &LiveBrowser{
		policy:    policy,
		maxLength: DefaultMaxContentLength,
		pages:     make(map[string]playwright.Page),
	}
}

// Initialize installs and starts the Playwright driver and launches one
// shared headless Chromium. Driver output is discarded so it cannot corrupt
// the terminal UI.
func (l *LiveBrowser) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	headless := true
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &headless,
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	l.playwright = pw
	l.browser = browser
	l.initialized = true
	return nil
}

// Open navigates the tab's page to the URL, creating the page on first use,
// and returns the readable rendition after the load event.
func (l *LiveBrowser) Open(tabID, rawURL string) (*Page, error) {
	if l.policy != nil {
		if err := l.policy.Check(rawURL); err != nil {
			return nil, err
		}
	}

	page, err := l.pageFor(tabID)
	if err != nil {
		return nil, err
	}

	waitUntil := playwright.WaitUntilStateLoad
	timeout := defaultNavigateTimeout
	if _, err := page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   &timeout,
	}); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	rendered, err := ExtractReadable(content, l.maxLength)
	if err != nil {
		return nil, err
	}
	rendered.URL = page.URL()
	if rendered.Title == "" {
		if title, err := page.Title(); err == nil {
			rendered.Title = title
		}
	}
	return rendered, nil
}

func (l *LiveBrowser) pageFor(tabID string) (playwright.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil, fmt.Errorf("live browser not initialized")
	}
	if page, ok := l.pages[tabID]; ok {
		return page, nil
	}

	context, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  defaultViewportWidth,
			Height: defaultViewportHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(defaultNavigateTimeout)

	l.pages[tabID] = page
	return page, nil
}

// Fetch renders the URL in a shared page, satisfying the same contract as
// the plain Fetcher so the two are interchangeable.
func (l *LiveBrowser) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	return l.Open("shared", rawURL)
}

// ClosePage releases the browser page held for a tab. Closing an unknown tab
// is a no-op.
func (l *LiveBrowser) ClosePage(tabID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if page, ok := l.pages[tabID]; ok {
		page.Context().Close()
		delete(l.pages, tabID)
	}
}

// Shutdown closes every page and stops the Playwright driver.
func (l *LiveBrowser) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for tabID, page := range l.pages {
		page.Context().Close()
		delete(l.pages, tabID)
	}
	if l.browser != nil {
		l.browser.Close()
		l.browser = nil
	}
	if l.playwright != nil {
		if err := l.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		l.playwright = nil
	}
	l.initialized = false
	return nil
}
