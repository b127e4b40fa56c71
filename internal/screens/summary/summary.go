package summary

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/trainer/internal/router"
	"github.com/abhisek/trainer/internal/screen"
	"github.com/abhisek/trainer/internal/session"
	"github.com/abhisek/trainer/internal/ui/layout"
	"github.com/abhisek/trainer/internal/ui/theme"
)

// SummaryScreen displays a finished session's results.
type SummaryScreen struct {
	summary *session.Summary
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)
var _ screen.ScoreProvider = (*SummaryScreen)(nil)

// New creates a new SummaryScreen.
func New(summary *session.Summary) *SummaryScreen {
	return &SummaryScreen{summary: summary}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Session Summary"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Sessions"},
		{Key: "Esc", Description: "Sessions"},
	}
}

func (s *SummaryScreen) Score() (int, int) {
	if s.summary == nil {
		return 0, 0
	}
	return s.summary.Points, s.summary.Target
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc":
			return s, func() tea.Msg { return router.PopToRootMsg{} }
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	sum := s.summary
	if sum == nil {
		return ""
	}

	center := func(style lipgloss.Style, text string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(text))
	}

	var b strings.Builder

	heading := "Session complete!"
	if !sum.Finished {
		heading = sum.Name
	}
	b.WriteString(center(theme.Title, heading))
	b.WriteString("\n\n")

	b.WriteString(center(theme.Body, fmt.Sprintf("Tasks: %d        Attempts: %d        Correct: %d        Accuracy: %.0f%%",
		sum.Tasks, sum.Attempts, sum.Correct, sum.Accuracy*100)))
	b.WriteString("\n\n")

	if len(sum.Modules) == 0 {
		return b.String()
	}

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", min(width-8, 60)))
	b.WriteString(center(theme.Subtitle, "Modules"))
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
	b.WriteString("\n\n")

	for _, m := range sum.Modules {
		line := fmt.Sprintf("  %s    %d/%d correct    %.0f%%", m.Name, m.Correct, m.Attempts, m.Accuracy*100)
		style := theme.Body
		if m.Attempts > 0 && m.Correct == m.Attempts {
			style = theme.Correct
		}
		b.WriteString(center(style, line))
		b.WriteString("\n")
	}

	return b.String()
}
