package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#dc0a2d")).Padding(0, 1)
	faintStyle    = lipgloss.NewStyle().Faint(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#dc0a2d"))
	maskedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8a8a"))
	labelStyle    = lipgloss.NewStyle().Faint(true).Width(10)
	valueStyle    = lipgloss.NewStyle().Bold(true)
	caughtStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fff87")).Bold(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
	barFull       = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc0a2d"))
	barEmpty      = lipgloss.NewStyle().Foreground(lipgloss.Color("#3a3a3a"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7aa2f7")).
			Padding(0, 1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#dc0a2d")).
			Padding(0, 1)
)
