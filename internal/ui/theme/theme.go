// Package theme holds the trainer's colors and shared text styles.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Palette: blue-green flashcards on a charcoal background.
var (
	Primary   = lipgloss.Color("#38BDF8") // sky
	Secondary = lipgloss.Color("#34D399") // emerald
	Accent    = lipgloss.Color("#FBBF24") // amber, used for points
	Success   = lipgloss.Color("#4ADE80")
	Error     = lipgloss.Color("#F87171")
	Text      = lipgloss.Color("#E5E7EB")
	TextDim   = lipgloss.Color("#9CA3AF")
	BgCard    = lipgloss.Color("#1F2937")
	Border    = lipgloss.Color("#374151")
)

var (
	Title    = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	Subtitle = lipgloss.NewStyle().Foreground(TextDim).Align(lipgloss.Center)
	Body     = lipgloss.NewStyle().Foreground(Text)
	Hint     = lipgloss.NewStyle().Foreground(TextDim).Italic(true)

	// Question is the task text on the play screen.
	Question = lipgloss.NewStyle().Foreground(Text).Bold(true).Align(lipgloss.Center).Padding(1, 0)
)

// Menu and answer states.
var (
	Selected   = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	Unselected = lipgloss.NewStyle().Foreground(Text)
	Correct    = lipgloss.NewStyle().Foreground(Success).Bold(true)
	Incorrect  = lipgloss.NewStyle().Foreground(Error).Bold(true)
)

// Points bar.
var (
	ProgressFilled = lipgloss.NewStyle().Background(Accent)
	ProgressEmpty  = lipgloss.NewStyle().Background(Border)
)
