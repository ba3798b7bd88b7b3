package ui

import "github.com/charmbracelet/lipgloss"

// Color Palette
// Single source of truth for all TUI colors.
var (
	lilac       = lipgloss.Color("#C4B5FD") // soft lilac - primary accent
	skyBlue     = lipgloss.Color("#A5D8FF") // pale sky blue - links and sources
	mintGreen   = lipgloss.Color("#A8E6CF") // soft mint green - success states
	amber       = lipgloss.Color("#FCD34D") // muted amber - incognito badge
	mutedGray   = lipgloss.Color("#6B7280") // muted gray - secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // bright white - primary text
	errorRed    = lipgloss.Color("203")
)

// Common Styles
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lilac).
			Bold(true)

	tipsStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	queryStyle = lipgloss.NewStyle().
			Foreground(lilac).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			Foreground(brightWhite)

	sourceStyle = lipgloss.NewStyle().
			Foreground(skyBlue)

	followupStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(errorRed)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(lilac).
			Bold(true).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(mutedGray).
				Padding(0, 1)

	incognitoBadgeStyle = lipgloss.NewStyle().
				Foreground(amber).
				Bold(true)

	bookmarkStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lilac).
			Padding(0, 1)

	toastBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lilac).
			Padding(0, 1)
)
