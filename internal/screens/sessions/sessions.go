// Package sessions lists the stored sessions and opens one for play.
package sessions

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/trainer/internal/router"
	"github.com/abhisek/trainer/internal/screen"
	"github.com/abhisek/trainer/internal/screens/play"
	"github.com/abhisek/trainer/internal/store"
	"github.com/abhisek/trainer/internal/ui/components"
	"github.com/abhisek/trainer/internal/ui/layout"
	"github.com/abhisek/trainer/internal/ui/theme"
)

type loadedMsg struct {
	Sessions []store.Session
	Err      error
}

// SessionsScreen is the start screen.
type SessionsScreen struct {
	deps     play.Deps
	sessions []store.Session
	menu     components.Menu
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*SessionsScreen)(nil)
var _ screen.KeyHintProvider = (*SessionsScreen)(nil)

// New creates the session list.
func New(deps play.Deps) *SessionsScreen {
	return &SessionsScreen{deps: deps}
}

func (s *SessionsScreen) Init() tea.Cmd {
	return s.load()
}

func (s *SessionsScreen) Title() string {
	return "Sessions"
}

func (s *SessionsScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Play"},
		{Key: "r", Description: "Reload"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *SessionsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loaded = true
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.errMsg = ""
		s.setSessions(msg.Sessions)
		return s, nil

	case router.ReloadMsg:
		return s, s.load()

	case tea.KeyMsg:
		if msg.String() == "r" {
			return s, s.load()
		}
		var cmd tea.Cmd
		s.menu, cmd = s.menu.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *SessionsScreen) setSessions(list []store.Session) {
	s.sessions = list
	items := make([]components.MenuItem, 0, len(list))
	for _, sess := range list {
		id := sess.ID
		hint := fmt.Sprintf("%d/%d", sess.Points, sess.Target)
		if sess.Points >= sess.Target {
			hint += " done"
		}
		items = append(items, components.MenuItem{
			Label: fmt.Sprintf("#%d %s", sess.ID, sess.Name),
			Hint:  hint,
			Action: func() tea.Cmd {
				return func() tea.Msg { return router.PushScreenMsg{Screen: play.New(s.deps, id)} }
			},
		})
	}
	selected := s.menu.Selected
	s.menu = components.NewMenu(items)
	if selected < len(items) {
		s.menu.Selected = selected
	}
}

func (s *SessionsScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return theme.Incorrect.Width(width).Render("\n  " + s.errMsg)
	case !s.loaded:
		return theme.Hint.Render("\n  Loading sessions...")
	case len(s.sessions) == 0:
		return theme.Hint.Render("\n  No sessions yet. Create one with `trainer session create`.")
	}
	return "\n" + s.menu.View()
}

func (s *SessionsScreen) load() tea.Cmd {
	st := s.deps.Store
	return func() tea.Msg {
		list, err := st.Sessions().List(context.Background())
		return loadedMsg{Sessions: list, Err: err}
	}
}
