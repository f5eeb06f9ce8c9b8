package tui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette. The prompt guards a TRUNCATE, so the frame is red.
var (
	colorAccent  = lipgloss.Color("39")
	colorLabel   = lipgloss.Color("245")
	colorHint    = lipgloss.Color("240")
	colorOK      = lipgloss.Color("34")
	colorDanger  = lipgloss.Color("196")
	colorCaution = lipgloss.Color("214")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCaution).MarginBottom(1)

	// WarningBoxStyle frames the whole destructive-load prompt.
	WarningBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorDanger).
			Padding(1, 2)

	InputLabelStyle   = lipgloss.NewStyle().Foreground(colorLabel).MarginRight(1)
	FocusedInputStyle = lipgloss.NewStyle().Foreground(colorAccent)

	// HighlightStyle marks the qualified table name the operator must type.
	HighlightStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Underline(true)

	HelpStyle    = lipgloss.NewStyle().Foreground(colorHint).MarginTop(1)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorOK)
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
)

const (
	SymbolCheck   = "✓"
	SymbolCross   = "✗"
	SymbolWarning = "⚠"
	SymbolBullet  = "•"
)
