package cli

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("4")  // Blue
	colorMuted   = lipgloss.Color("245")
	colorSuccess = lipgloss.Color("2")  // Green
	colorWarning = lipgloss.Color("3")  // Yellow
	colorError   = lipgloss.Color("1")  // Red

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)
)
