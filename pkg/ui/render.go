package ui

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/mittai17/piexi/pkg/types"
)

// renderTabContent renders the active tab's body: the conversation in the
// search view, the loaded page in the browse view.
func (m *model) renderTabContent(tab types.TabSession) string {
	if tab.View == types.ViewBrowse {
		return m.renderBrowseView(tab)
	}
	return m.renderConversation(tab)
}

func (m *model) renderConversation(tab types.TabSession) string {
	if len(tab.History) == 0 {
		return tipsStyle.Render("Ask anything to get started.")
	}

	var b strings.Builder
	for i, item := range tab.History {
		if i > 0 {
			b.WriteString("\n\n")
		}
		streaming := tab.IsLoading && i == len(tab.History)-1
		m.renderHistoryItem(&b, item, streaming)
	}
	return b.String()
}

func (m *model) renderHistoryItem(b *strings.Builder, item types.HistoryItem, streaming bool) {
	marker := "❯"
	if m.bookmarks != nil && m.bookmarks.IsBookmarked(item.ID) {
		marker = bookmarkStyle.Render("★")
	}
	fmt.Fprintf(b, "%s %s\n", marker, queryStyle.Render(item.Query))

	if streaming && item.Answer == "" {
		b.WriteString(tipsStyle.Render("  …"))
		return
	}
	b.WriteString(renderAnswer(item.Answer))

	if len(item.Sources) > 0 {
		b.WriteString("\n")
		for _, src := range item.Sources {
			label := src.Title
			if label == "" {
				label = src.URI
			}
			b.WriteString(sourceStyle.Render("  ↗ " + label))
			b.WriteString("\n")
		}
		b.WriteString(tipsStyle.Render(fmt.Sprintf("  %d shares · %d bookmarks",
			item.Popularity.Shares, item.Popularity.Bookmarks)))
		b.WriteString("\n")
	}

	if len(item.FollowupQuestions) > 0 {
		b.WriteString("\n")
		for _, q := range item.FollowupQuestions {
			b.WriteString(followupStyle.Render("  ? " + q))
			b.WriteString("\n")
		}
	}
}

func (m *model) renderBrowseView(tab types.TabSession) string {
	page, ok := m.pages[tab.ID]
	if !ok || page.URL != tab.CurrentURL {
		return tipsStyle.Render("Loading " + tab.CurrentURL + " …")
	}

	var b strings.Builder
	if page.Title != "" {
		b.WriteString(headerStyle.Render(page.Title))
		b.WriteString("\n")
	}
	b.WriteString(sourceStyle.Render(page.URL))
	b.WriteString("\n\n")
	if page.Description != "" {
		b.WriteString(followupStyle.Render(page.Description))
		b.WriteString("\n\n")
	}
	b.WriteString(answerStyle.Render(page.Text))
	if page.Truncated {
		b.WriteString("\n")
		b.WriteString(tipsStyle.Render("[content truncated]"))
	}
	return b.String()
}

// renderBookmarkPanel lists bookmarks grouped by folder, unfiled first.
func (m *model) renderBookmarkPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Bookmarks"))
	b.WriteString("\n\n")

	if m.bookmarks == nil {
		b.WriteString(tipsStyle.Render("Bookmarks are disabled. Sign in with -user to sync."))
		return b.String()
	}

	marks := m.bookmarks.Bookmarks()
	folders := m.bookmarks.Folders()
	if len(marks) == 0 {
		b.WriteString(tipsStyle.Render("No bookmarks yet. Press Ctrl+B on an answer to save it."))
		return b.String()
	}

	writeGroup := func(name, folderID string) {
		wrote := false
		for _, bm := range marks {
			if bm.FolderID != folderID {
				continue
			}
			if !wrote {
				b.WriteString(queryStyle.Render(name))
				b.WriteString("\n")
				wrote = true
			}
			b.WriteString(bookmarkStyle.Render("  ★ "))
			b.WriteString(answerStyle.Render(bm.HistoryItem.Query))
			b.WriteString("\n")
		}
		if wrote {
			b.WriteString("\n")
		}
	}

	writeGroup("Unfiled", "")
	for _, f := range folders {
		writeGroup(f.Name, f.ID)
	}
	return b.String()
}

// renderAnswer renders answer text, syntax-highlighting fenced code blocks.
func renderAnswer(answer string) string {
	if answer == "" {
		return ""
	}

	var b strings.Builder
	for _, seg := range splitCodeFences(answer) {
		if !seg.code {
			b.WriteString(answerStyle.Render(seg.text))
			continue
		}
		b.WriteString(highlightCode(seg.text, seg.lang))
	}
	return b.String()
}

// segment is a run of answer text, either prose or a fenced code block.
type segment struct {
	text string
	lang string
	code bool
}

// splitCodeFences splits text on ``` fences. An unclosed fence runs to the
// end of the text, which happens constantly mid-stream.
func splitCodeFences(text string) []segment {
	var segs []segment
	lines := strings.Split(text, "\n")

	var buf []string
	var lang string
	inCode := false

	flush := func(code bool) {
		if len(buf) == 0 && !code {
			return
		}
		segs = append(segs, segment{
			text: strings.Join(buf, "\n"),
			lang: lang,
			code: code,
		})
		buf = buf[:0]
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inCode {
				flush(true)
				inCode = false
				lang = ""
			} else {
				flush(false)
				inCode = true
				lang = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
			}
			continue
		}
		buf = append(buf, line)
	}
	flush(inCode)
	return segs
}

// highlightCode renders a code block with terminal colors. On any highlight
// failure the raw code is shown instead.
func highlightCode(code, lang string) string {
	if lang == "" {
		lang = "text"
	}
	var b strings.Builder
	b.WriteString("\n")
	var hl strings.Builder
	if err := quick.Highlight(&hl, code, lang, "terminal256", "monokai"); err != nil {
		hl.Reset()
		hl.WriteString(code)
	}
	for _, line := range strings.Split(strings.TrimRight(hl.String(), "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}
