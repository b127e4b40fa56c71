package play

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/ui/components"
	"github.com/abhisek/trainer/internal/ui/theme"
)

func (s *PlayScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return renderCentered(width, theme.Incorrect, "\n\n"+s.errMsg+"\n\nPress any key to go back.")
	case s.loading:
		return renderCentered(width, theme.Hint, "\n\n  Loading session...")
	}

	tasks := s.mgr.Tasks()
	if len(tasks) == 0 {
		return renderCentered(width, theme.Hint, "\n\n  No tasks available.")
	}

	var b strings.Builder
	p := s.mgr.Progress()

	idx := len(tasks) - 1
	if s.browse >= 0 {
		idx = s.browse
	}
	t := tasks[idx]
	if s.judged != nil {
		// Feedback stays on the judged task while the next one waits.
		t = s.judged.Task
		for i, other := range tasks {
			if other == t {
				idx = i
			}
		}
	}

	info := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).
		Render(fmt.Sprintf("  %s", t.Module.Descriptor().DisplayName))
	counter := lipgloss.NewStyle().Foreground(theme.TextDim).
		Render(fmt.Sprintf("Task %d/%d  answered %d", idx+1, len(tasks), p.Answered))
	line := info
	if pad := width - lipgloss.Width(info) - lipgloss.Width(counter) - 4; pad > 0 {
		line += strings.Repeat(" ", pad) + counter
	}
	b.WriteString(line)
	b.WriteString("\n  ")
	b.WriteString(components.NewPointsBar(p.Points, p.Target, min(width-4, 60)).View())
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
	b.WriteString("\n\n")

	b.WriteString(theme.Question.Width(width).Render(t.Question))
	b.WriteString("\n\n")

	switch {
	case s.judged != nil:
		b.WriteString(renderCentered(width, theme.Body, "Answer: "+s.input.View()))
		b.WriteString("\n\n")
		b.WriteString(s.renderFeedback(width))
	case t.Locked() || s.browse >= 0:
		b.WriteString(renderPrevious(width, t))
	case s.finished:
		b.WriteString(renderCentered(width, theme.Correct, "Target reached! Press Enter for the summary."))
	default:
		b.WriteString(renderCentered(width, theme.Body, "Answer: "+s.input.View()))
		if s.notice != "" {
			b.WriteString("\n\n")
			b.WriteString(renderCentered(width, theme.Incorrect, s.notice))
		}
	}

	return b.String()
}

func (s *PlayScreen) renderFeedback(width int) string {
	out := s.judged.Outcome
	if out.Judgment.Correct {
		msg := "Correct!"
		if out.Finished {
			msg += "  Target reached."
		}
		return renderCentered(width, theme.Correct, msg)
	}
	msg := "Wrong."
	if want := s.judged.Task.FirstAnswer(); want != "" {
		msg += "  The answer is " + want
	}
	if out.Judgment.Grade > 0 {
		msg += fmt.Sprintf("  (partial credit %.0f%%)", out.Judgment.Grade*100)
	}
	return renderCentered(width, theme.Incorrect, msg)
}

// renderPrevious shows a task's earlier answer. Locked tasks also reveal the
// expected answer.
func renderPrevious(width int, t *module.Task) string {
	if !t.Answered() {
		return renderCentered(width, theme.Hint, "Not answered yet.")
	}
	style := theme.Incorrect
	mark := "✗"
	if t.Attempt.Judgment.Correct {
		style = theme.Correct
		mark = "✓"
	}
	text := fmt.Sprintf("Your answer: %s %s", t.Attempt.UserAnswer, mark)
	if t.Locked() && !t.Attempt.Judgment.Correct {
		text += "    Answer: " + t.FirstAnswer()
	}
	return renderCentered(width, style, text)
}

func renderCentered(width int, style lipgloss.Style, text string) string {
	return style.Width(width).Align(lipgloss.Center).Render(text)
}
