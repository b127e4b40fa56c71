package sessions

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/trainer/internal/router"
	"github.com/abhisek/trainer/internal/screens/play"
	"github.com/abhisek/trainer/internal/store"
)

func testScreen(t *testing.T, names ...string) *SessionsScreen {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	for _, name := range names {
		if err := st.Sessions().Save(ctx, &store.Session{Name: name, ConfigIDs: []int{1}, Target: 10, Penalty: 2}); err != nil {
			t.Fatal(err)
		}
	}
	return New(play.Deps{Store: st})
}

func TestSessionsScreen_Empty(t *testing.T) {
	s := testScreen(t)
	s.Update(s.Init()())
	if !strings.Contains(s.View(80, 24), "No sessions yet") {
		t.Error("expected the empty hint")
	}
}

func TestSessionsScreen_List(t *testing.T) {
	s := testScreen(t, "Warmup", "Drill")
	if !strings.Contains(s.View(80, 24), "Loading") {
		t.Error("expected loading view before the list arrives")
	}

	s.Update(s.Init()())
	view := s.View(80, 24)
	for _, want := range []string{"Warmup", "Drill", "0/10"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if s.menu.Selected != 1 {
		t.Errorf("selected = %d, want 1", s.menu.Selected)
	}

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command on Enter")
	}
	push, ok := cmd().(router.PushScreenMsg)
	if !ok {
		t.Fatal("expected PushScreenMsg")
	}
	if _, ok := push.Screen.(*play.PlayScreen); !ok {
		t.Errorf("pushed %T, want *play.PlayScreen", push.Screen)
	}
}

func TestSessionsScreen_ReloadKeepsSelection(t *testing.T) {
	s := testScreen(t, "Warmup", "Drill")
	s.Update(s.Init()())
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})

	_, cmd := s.Update(router.ReloadMsg{})
	if cmd == nil {
		t.Fatal("expected a reload command")
	}
	s.Update(cmd())
	if s.menu.Selected != 1 {
		t.Errorf("selected = %d, want 1", s.menu.Selected)
	}
}
