// Package play is the screen that asks a session's questions.
package play

import (
	"context"
	"errors"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/router"
	"github.com/abhisek/trainer/internal/screen"
	"github.com/abhisek/trainer/internal/screens/summary"
	"github.com/abhisek/trainer/internal/session"
	"github.com/abhisek/trainer/internal/store"
	"github.com/abhisek/trainer/internal/ui/components"
	"github.com/abhisek/trainer/internal/ui/layout"
)

// Deps are the services the screen works with.
type Deps struct {
	Store   *store.Store
	Modules *module.Loaded
	Log     *zap.Logger
}

// openedMsg is sent once the session has been loaded.
type openedMsg struct {
	Err error
}

// judgedMsg carries the result of submitting an answer.
type judgedMsg struct {
	Task    *module.Task
	Outcome *session.Outcome
	Err     error
}

// summaryMsg carries the summary shown after the target is reached.
type summaryMsg struct {
	Summary *session.Summary
	Err     error
}

// PlayScreen shows the current task, takes an answer and reports the
// judgment. PgUp and PgDn browse earlier tasks.
type PlayScreen struct {
	deps      Deps
	sessionID int
	mgr       *session.Manager

	input components.TextInput
	// browse is an index into the task list, or -1 for the current task.
	browse   int
	judged   *judgedMsg
	loading  bool
	notice   string
	errMsg   string
	finished bool
}

var _ screen.Screen = (*PlayScreen)(nil)
var _ screen.KeyHintProvider = (*PlayScreen)(nil)
var _ screen.ScoreProvider = (*PlayScreen)(nil)

// New creates a play screen for the session with the given ID.
func New(deps Deps, sessionID int, opts ...session.Option) *PlayScreen {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &PlayScreen{
		deps:      deps,
		sessionID: sessionID,
		mgr:       session.NewManager(deps.Store, deps.Modules, deps.Log, opts...),
		input:     components.NewTextInput("Type your answer...", 32),
		browse:    -1,
		loading:   true,
	}
}

func (s *PlayScreen) Init() tea.Cmd {
	return tea.Batch(s.open(), s.input.Init())
}

func (s *PlayScreen) Title() string {
	if sess := s.mgr.Session(); sess != nil {
		return sess.Name
	}
	return "Play"
}

func (s *PlayScreen) Score() (int, int) {
	p := s.mgr.Progress()
	return p.Points, p.Target
}

func (s *PlayScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.errMsg != "":
		return []layout.KeyHint{{Key: "any key", Description: "Back"}}
	case s.judged != nil:
		return []layout.KeyHint{{Key: "any key", Description: "Continue"}}
	case s.browse >= 0:
		return []layout.KeyHint{
			{Key: "PgUp/PgDn", Description: "Browse"},
			{Key: "Enter", Description: "Current task"},
			{Key: "Esc", Description: "Back"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Submit"},
		{Key: "PgUp", Description: "Earlier tasks"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *PlayScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case openedMsg:
		s.loading = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.finished = s.mgr.Progress().Finished
		s.prefill()
		return s, nil

	case judgedMsg:
		return s.handleJudged(msg)

	case summaryMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, func() tea.Msg { return router.ReplaceScreenMsg{Screen: summary.New(msg.Summary)} }

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *PlayScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.errMsg != "" {
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	if s.loading {
		return s, nil
	}

	// Feedback: any key moves on.
	if s.judged != nil {
		if s.judged.Outcome.Finished {
			return s, s.loadSummary()
		}
		s.judged = nil
		s.input.Reset()
		s.prefill()
		return s, nil
	}

	switch key {
	case "pgup":
		s.browseBy(-1)
		return s, nil
	case "pgdown":
		s.browseBy(1)
		return s, nil
	}

	if s.browse >= 0 {
		if key == "enter" {
			s.browse = -1
		}
		return s, nil
	}

	if key == "enter" {
		if s.finished {
			return s, s.loadSummary()
		}
		return s.submit()
	}

	s.notice = ""
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

// browseBy moves through earlier tasks. Moving past the newest returns to
// the current task.
func (s *PlayScreen) browseBy(delta int) {
	n := len(s.mgr.Tasks())
	if n == 0 {
		return
	}
	i := s.browse
	if i < 0 {
		i = n - 1
	}
	i += delta
	switch {
	case i < 0:
		i = 0
	case i >= n-1:
		i = -1
	}
	s.browse = i
}

func (s *PlayScreen) submit() (screen.Screen, tea.Cmd) {
	t := s.mgr.Current()
	if t == nil || t.Locked() {
		return s, nil
	}
	answer := s.input.Value()
	if answer == "" && module.DefaultAnswerOf(t.Module) == "" {
		return s, nil
	}
	mgr := s.mgr
	return s, func() tea.Msg {
		out, err := mgr.Submit(context.Background(), t.ID, answer)
		return judgedMsg{Task: t, Outcome: out, Err: err}
	}
}

// prefill starts the input at the current task's default answer.
func (s *PlayScreen) prefill() {
	t := s.mgr.Current()
	if t == nil || t.Locked() {
		return
	}
	if def := module.DefaultAnswerOf(t.Module); def != "" {
		s.input.Model.SetValue(def)
	}
}

func (s *PlayScreen) handleJudged(msg judgedMsg) (screen.Screen, tea.Cmd) {
	if msg.Err != nil {
		switch {
		case errors.Is(msg.Err, module.ErrBadAnswer),
			errors.Is(msg.Err, session.ErrNoAnswer),
			errors.Is(msg.Err, session.ErrTaskLocked):
			s.notice = msg.Err.Error()
		default:
			s.errMsg = msg.Err.Error()
		}
		return s, nil
	}
	s.judged = &msg
	s.finished = msg.Outcome.Finished
	s.input.Submit(msg.Outcome.Judgment.Correct)
	return s, nil
}

func (s *PlayScreen) open() tea.Cmd {
	mgr, id := s.mgr, s.sessionID
	return func() tea.Msg {
		_, err := mgr.Open(context.Background(), id)
		return openedMsg{Err: err}
	}
}

func (s *PlayScreen) loadSummary() tea.Cmd {
	st, id := s.deps.Store, s.sessionID
	return func() tea.Msg {
		sum, err := session.BuildSummary(context.Background(), st, id)
		return summaryMsg{Summary: sum, Err: err}
	}
}
