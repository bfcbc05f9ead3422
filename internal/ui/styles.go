package ui

import "github.com/charmbracelet/lipgloss"

// Semantic palette. AdaptiveColor picks the light or dark variant from the
// terminal background.
var (
	cPrimary   = lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#7D56F4"}
	cAccent    = lipgloss.AdaptiveColor{Light: "#B7791F", Dark: "#F1C40F"}
	cSuccess   = lipgloss.AdaptiveColor{Light: "#1E8449", Dark: "#50FA7B"}
	cError     = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF5555"}
	cText      = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	cTextMuted = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#6272A4"}
	cOnPrimary = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
)

var (
	styleHeader = lipgloss.NewStyle().
			Foreground(cOnPrimary).
			Background(cPrimary).
			Bold(true).
			Padding(0, 1)

	styleMeta = lipgloss.NewStyle().
			Foreground(cTextMuted)

	styleVersion = lipgloss.NewStyle().
			Foreground(cAccent).
			Bold(true)

	styleSuccess = lipgloss.NewStyle().
			Foreground(cSuccess).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(cError).
			Bold(true)

	styleText = lipgloss.NewStyle().
			Foreground(cText)

	styleField = lipgloss.NewStyle().
			Foreground(cTextMuted).
			Width(10)

	styleSpinner = lipgloss.NewStyle().
			Foreground(cPrimary)

	styleFooter = lipgloss.NewStyle().
			Foreground(cTextMuted)

	styleToast = lipgloss.NewStyle().
			Foreground(cText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cSuccess).
			Padding(0, 1)

	styleToastError = styleToast.
			BorderForeground(cError)
)
