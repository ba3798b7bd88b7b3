package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mittai17/piexi/pkg/session"
	"github.com/mittai17/piexi/pkg/types"
)

// View renders the full interface.
func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{
		m.buildHeader(),
		m.buildTips(),
		m.buildTabBar(),
		"",
		m.viewport.View(),
	}
	if indicator := m.buildLoadingIndicator(); indicator != "" {
		sections = append(sections, indicator)
	}
	sections = append(sections, m.buildInputBox(), m.buildBottomBar())

	base := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return m.applyToast(base)
}

func (m *model) buildHeader() string {
	return headerStyle.Render(`
	██████╗ ██╗███████╗██╗  ██╗██╗
	██╔══██╗██║██╔════╝╚██╗██╔╝██║
	██████╔╝██║█████╗   ╚███╔╝ ██║
	██╔═══╝ ██║██╔══╝   ██╔██╗ ██║
	██║     ██║███████╗██╔╝ ██╗██║
	╚═╝     ╚═╝╚══════╝╚═╝  ╚═╝╚═╝`)
}

func (m *model) buildTips() string {
	if m.editingItemID != "" {
		return tipsStyle.Render(`  Editing: Enter to rerun from here • Esc to cancel`)
	}
	return tipsStyle.Render(`  Tips: Enter to search • URLs open in browse view • Ctrl+T/W tabs • Tab to switch • Ctrl+F focus • Ctrl+O incognito • Ctrl+E edit last • Ctrl+B bookmark • Ctrl+L bookmarks • Ctrl+C to exit`)
}

// buildTabBar renders one cell per tab with the active tab highlighted.
func (m *model) buildTabBar() string {
	tabs := m.registry.Tabs()
	activeID := m.registry.ActiveID()

	cells := make([]string, 0, len(tabs)+1)
	if m.registry.Mode() == session.ModeIncognito {
		cells = append(cells, incognitoBadgeStyle.Render(" INCOGNITO "))
	}
	for _, tab := range tabs {
		label := tab.Title
		if tab.IsLoading {
			label = m.spinner.View() + " " + label
		}
		if tab.ID == activeID {
			cells = append(cells, activeTabStyle.Render("["+label+"]"))
		} else {
			cells = append(cells, inactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) buildLoadingIndicator() string {
	tab, ok := m.registry.ActiveTab()
	if !ok || !tab.IsLoading {
		return ""
	}
	style := lipgloss.NewStyle().
		Foreground(lilac).
		Width(m.width - 4).
		Padding(0, 2)
	return style.Render(m.spinner.View() + " Searching...")
}

func (m *model) buildInputBox() string {
	return inputBoxStyle.Width(m.width - 4).Render(m.input.View())
}

func (m *model) buildBottomBar() string {
	tab, ok := m.registry.ActiveTab()
	focus := ""
	if ok {
		focus = fmt.Sprintf("Focus: %s", focusLabel(tab.SearchFocus))
	}

	left := "piexi"
	right := fmt.Sprintf("%d tabs", len(m.registry.Tabs()))

	used := len(left) + len(focus) + len(right)
	pad := m.width - used
	leftPad := pad / 2
	rightPad := pad - leftPad
	if leftPad < 2 {
		leftPad = 2
	}
	if rightPad < 2 {
		rightPad = 2
	}

	return statusBarStyle.Width(m.width).Render(
		left + strings.Repeat(" ", leftPad) + focus + strings.Repeat(" ", rightPad) + right,
	)
}

func focusLabel(focus types.SearchFocus) string {
	switch focus {
	case types.FocusAcademic:
		return "Academic"
	case types.FocusWriting:
		return "Writing"
	case types.FocusYouTube:
		return "YouTube"
	case types.FocusReddit:
		return "Reddit"
	default:
		return "All"
	}
}

func (m *model) applyToast(base string) string {
	if !m.toast.active || time.Now().After(m.toast.showUntil) {
		return base
	}

	boxWidth := m.width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	style := toastBoxStyle
	if m.toast.isError {
		style = style.BorderForeground(errorRed)
	}
	box := style.Width(boxWidth).Render(m.toast.message)
	return base + "\n" + box
}
