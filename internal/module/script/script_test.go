package script

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/trainer/internal/module"
)

const doubler = `package main

import "strconv"

func MakeTask(settings map[string]string) (string, string, error) {
	n, err := strconv.Atoi(settings["Max value"])
	if err != nil {
		return "", "", err
	}
	return strconv.Itoa(n) + "*2=", strconv.Itoa(n * 2), nil
}

func CheckAnswer(question, answer, user string) bool { return answer == user }
`

func TestCompileBuiltin(t *testing.T) {
	p, err := Compile("builtin", defaultScript, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"subtract", "twodigit"}, module.SkillNames(p.Skills()))

	q, a, err := p.MakeTask(context.Background(), map[string]string{"Min value": "3", "Max value": "3"})
	require.NoError(t, err)
	assert.Contains(t, []string{"3+3=", "3-3="}, q)
	assert.Contains(t, []string{"6", "0"}, a)

	ok, err := p.CheckAnswer(context.Background(), q, a, " "+a+" ")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"forbidden import", "package main\nimport \"os\"\nfunc MakeTask(map[string]string) (string, string, error) { os.Exit(1); return \"\", \"\", nil }\n", "forbidden imports: [os]"},
		{"wrong package", "package foo\n", "must be package main"},
		{"missing check", "package main\nfunc MakeTask(map[string]string) (string, string, error) { return \"\", \"\", nil }\n", "CheckAnswer not defined"},
		{"bad signature", "package main\nfunc MakeTask() string { return \"\" }\nfunc CheckAnswer(q, a, u string) bool { return true }\n", "MakeTask must be"},
		{"syntax", "package main\nfunc (", "evaluate test"},
		{"bad task skills", "package main\nfunc MakeTask(map[string]string) (string, string, error) { return \"\", \"\", nil }\nfunc CheckAnswer(q, a, u string) bool { return true }\nfunc TaskSkills(q string) string { return q }\n", "TaskSkills must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("test", tt.src, time.Second)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuiltinTaskSkills(t *testing.T) {
	p, err := Compile("builtin", defaultScript, time.Second)
	require.NoError(t, err)

	tests := []struct {
		question string
		want     []string
	}{
		{"3+4=", nil},
		{"3-4=", []string{"subtract"}},
		{"12+4=", []string{"twodigit"}},
		{"3+10=", []string{"twodigit"}},
		{"-12-4=", []string{"subtract", "twodigit"}},
		{"3--14=", []string{"subtract", "twodigit"}},
		{"nonsense", nil},
	}
	for _, tt := range tests {
		got, err := p.TaskSkills(context.Background(), tt.question, "")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.question)
	}
}

func TestTaskSkillsDeclaredOnly(t *testing.T) {
	withSkills := doubler + `
func Skills() map[string]string { return map[string]string{"double": "Doubling"} }
`
	p, err := Compile("test", withSkills, time.Second)
	require.NoError(t, err)
	got, err := p.TaskSkills(context.Background(), "4*2=", "8")
	require.NoError(t, err)
	assert.Equal(t, []string{"double"}, got, "without TaskSkills every skill is tagged")

	p, err = Compile("test", withSkills+`
func TaskSkills(question, answer string) []string { return []string{"double", "unknown", "double"} }
`, time.Second)
	require.NoError(t, err)
	got, err = p.TaskSkills(context.Background(), "4*2=", "8")
	require.NoError(t, err)
	assert.Equal(t, []string{"double"}, got)
}

func TestScriptErrorIsReturned(t *testing.T) {
	p, err := Compile("builtin", defaultScript, time.Second)
	require.NoError(t, err)
	_, _, err = p.MakeTask(context.Background(), map[string]string{"Min value": "5", "Max value": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below Min value")
}

func TestRunTimeout(t *testing.T) {
	p := &Program{Name: "slow", timeout: 20 * time.Millisecond, sem: make(chan struct{}, 1)}
	release := make(chan struct{})
	defer close(release)

	err := p.call(context.Background(), func() { <-release })
	assert.ErrorIs(t, err, ErrTimeout)

	// The stuck call still holds the token.
	err = p.call(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRunRecoversPanic(t *testing.T) {
	p := &Program{Name: "boom", timeout: time.Second, sem: make(chan struct{}, 1)}
	err := p.call(context.Background(), func() { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: bad")

	require.NoError(t, p.call(context.Background(), func() {}))
}

func TestModuleTaskAndJudge(t *testing.T) {
	m, err := New(3, Options{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3, m.ID())
	assert.Equal(t, Name, m.Descriptor().Name)

	cfg := module.DefaultConfig(m)
	cfg.Get(SettingMin).Value = 12
	cfg.Get(SettingMax).Value = 12
	g, err := m.MakeTask(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, g.Answers, 1)
	want := []string{"twodigit"}
	if g.Question == "12-12=" {
		want = []string{"subtract", "twodigit"}
	}
	assert.Equal(t, want, g.Skills)

	task := module.NewTask(m, 1, 1, cfg, g)
	j, err := m.Judge(context.Background(), task, g.Answers[0].Text)
	require.NoError(t, err)
	assert.True(t, j.Correct)
	assert.Equal(t, 1.0, j.Grade)
	assert.Equal(t, 1.0, j.SpecificGrade("twodigit"))
	assert.Len(t, j.Scores, len(want))

	n, _ := strconv.Atoi(g.Answers[0].Text)
	j, err = m.Judge(context.Background(), task, strconv.Itoa(n+1))
	require.NoError(t, err)
	assert.False(t, j.Correct)
	assert.Equal(t, 0.0, j.Grade)

	_, err = m.ParseAnswer("   ")
	assert.ErrorIs(t, err, module.ErrBadAnswer)
}

func TestModuleOverrideAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(doubler), 0o644))

	m, err := New(1, Options{Dir: dir, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, FileName, m.Program().Name)
	assert.Empty(t, m.Skills())

	cfg := module.DefaultConfig(m)
	g, err := m.MakeTask(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "20*2=", g.Question)
	assert.Equal(t, "40", g.Answers[0].Text)

	// A broken script keeps the working one.
	require.NoError(t, os.WriteFile(path, []byte("package main\nfunc ("), 0o644))
	require.Error(t, m.Reload())
	assert.Equal(t, FileName, m.Program().Name)

	// Removing the override restores the built-in script.
	require.NoError(t, os.Remove(path))
	require.NoError(t, m.Reload())
	assert.Equal(t, "builtin", m.Program().Name)
}

func TestWatcherReloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	m, err := New(1, Options{Dir: dir, Timeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "builtin", m.Program().Name)

	w, err := NewWatcher(m, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(doubler), 0o644))
	assert.Eventually(t, func() bool {
		return m.Program().Name == FileName
	}, 5*time.Second, 20*time.Millisecond)

	// Other files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, FileName, m.Program().Name)
}

func TestWatcherNeedsDir(t *testing.T) {
	m, err := New(1, Options{Timeout: time.Second})
	require.NoError(t, err)
	_, err = NewWatcher(m, nil)
	assert.Error(t, err)
}
