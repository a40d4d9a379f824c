package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Terminal styles shared by the list and search renderers.
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
)
