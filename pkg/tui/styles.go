// Package tui implements the terminal interface for live execution watching.
// It polls the execution store and renders the per-action log as a Bubble Tea
// app.
package tui

import "github.com/charmbracelet/lipgloss"

// Action status glyphs — convey meaning without relying on color alone.
const (
	GlyphPending   = "○"
	GlyphRunning   = "▶"
	GlyphCompleted = "✓"
	GlyphFailed    = "✗"
	GlyphSkipped   = "⊘"
	GlyphPaused    = "‖"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var modeBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

var (
	actionNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	actionCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	actionCompleted = lipgloss.NewStyle().
			Foreground(colorGreen)

	actionFailed = lipgloss.NewStyle().
			Foreground(colorRed)

	actionSkipped = lipgloss.NewStyle().
			Faint(true)
)

var (
	statusCompletedStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	statusFailedStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	statusRunningStyle = lipgloss.NewStyle().
				Foreground(colorYellow)
)

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)

var spinnerStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

var dimStyle = lipgloss.NewStyle().
	Foreground(colorDim)
