package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Pane chrome for the run monitor
var (
	stylePaneActive = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212"))

	stylePaneIdle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))

	stylePaneTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)
)

// Task and context state colors
var (
	styleStateRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Bold(true)

	styleStateDone = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	styleStateFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)

	styleStateIdle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

var styleHelpBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("244"))
