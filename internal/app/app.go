package app

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/router"
	"github.com/abhisek/trainer/internal/screen"
	"github.com/abhisek/trainer/internal/screens/play"
	"github.com/abhisek/trainer/internal/screens/sessions"
	"github.com/abhisek/trainer/internal/store"
	"github.com/abhisek/trainer/internal/ui/layout"
)

// Options configures the terminal UI.
type Options struct {
	Store   *store.Store
	Modules *module.Loaded
	Log     *zap.Logger
	// SessionID opens that session directly. Zero starts at the session list.
	SessionID int
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	width  int
	height int
}

// newAppModel creates the root model with the session list at the bottom of
// the stack, and the play screen on top when a session was requested.
func newAppModel(opts Options) AppModel {
	deps := play.Deps{Store: opts.Store, Modules: opts.Modules, Log: opts.Log}
	r := router.New(sessions.New(deps))
	if opts.SessionID > 0 {
		r.Push(play.New(deps, opts.SessionID)) // started by Init
	}
	return AppModel{router: r}
}

func (m AppModel) Init() tea.Cmd {
	// Only the top screen starts. The list below it loads on the ReloadMsg
	// the router sends when the play screen is popped.
	return m.router.Active().Init()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if frame := m.render(); frame != "" {
		v.SetContent(frame)
	}
	return v
}

// render draws the frame, or "" before the window size is known.
func (m AppModel) render() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	title := ""
	points, target := 0, 0
	if active != nil {
		title = active.Title()
		if sp, ok := active.(screen.ScoreProvider); ok {
			points, target = sp.Score()
		}
	}

	header := layout.RenderHeader(title, points, target, m.width)

	var footerHints []layout.KeyHint
	if kp, ok := active.(screen.KeyHintProvider); ok {
		footerHints = kp.KeyHints()
	}
	if len(footerHints) == 0 {
		footerHints = []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}

	footer := layout.RenderFooter(footerHints, m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	content := m.router.View(m.width, contentHeight)
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
