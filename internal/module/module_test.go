package module

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/trainer/internal/store"
)

// echoModule accepts the answer text verbatim.
type echoModule struct {
	Base
	judged int
}

func newEcho(id int) *echoModule {
	return &echoModule{Base: NewBase(id, Descriptor{
		Name:    "Echo",
		Version: "v0.1.0",
		Settings: []Setting{
			{Name: "Word", Type: store.ConfigTypeString, Default: "hi"},
			{Name: "Count", Type: store.ConfigTypeInt, Default: 2},
		},
	})}
}

func (m *echoModule) MakeTask(_ context.Context, cfg *Config) (Generated, error) {
	w, err := cfg.String("Word")
	if err != nil {
		return Generated{}, err
	}
	return Generated{Question: "say " + w, Answers: []Answer{{ID: 1, Text: w}}, Skills: []string{"echo"}}, nil
}

func (m *echoModule) Judge(_ context.Context, t *Task, user string) (Judgment, error) {
	m.judged++
	return Binary(user == t.FirstAnswer(), t.Skills), nil
}

func (m *echoModule) Skills() map[string]string { return map[string]string{"echo": "Repeat a word"} }

func (m *echoModule) ParseAnswer(raw string) (string, error) {
	if raw == "" {
		return "", ErrBadAnswer
	}
	return raw, nil
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(newEcho(7))
	assert.Equal(t, DefaultConfigName, cfg.Name)
	assert.Equal(t, 7, cfg.ModuleID)

	w, err := cfg.String("Word")
	require.NoError(t, err)
	assert.Equal(t, "hi", w)
	n, err := cfg.Int("Count")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = cfg.Int("Word")
	assert.ErrorIs(t, err, ErrWrongType)
	_, err = cfg.Bool("Missing")
	assert.ErrorIs(t, err, ErrMissingSetting)

	assert.Equal(t, map[string]string{"Word": "hi", "Count": "2"}, cfg.Strings())
}

func TestParseAndFormatValue(t *testing.T) {
	tests := []struct {
		typ  string
		text string
		want any
	}{
		{store.ConfigTypeInt, "-4", -4},
		{store.ConfigTypeFloat, "2.5", 2.5},
		{store.ConfigTypeBool, "true", true},
		{store.ConfigTypeString, "a b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			v, err := ParseValue(tt.typ, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.text, FormatValue(v))
		})
	}

	_, err := ParseValue(store.ConfigTypeInt, "x")
	assert.Error(t, err)
	_, err = ParseValue("complex", "1")
	assert.Error(t, err)
}

func TestConfigFromStore(t *testing.T) {
	cfg, err := ConfigFromStore(store.Config{ID: 3, ModuleID: 1, Name: "Hard"}, []store.ConfigData{
		{ID: 10, ConfigID: 3, Name: "Max value", Type: store.ConfigTypeInt, Value: "99"},
	})
	require.NoError(t, err)
	n, err := cfg.Int("Max value")
	require.NoError(t, err)
	assert.Equal(t, 99, n)
	assert.Equal(t, store.ConfigData{ID: 10, ConfigID: 3, Name: "Max value", Type: store.ConfigTypeInt, Value: "99"}, cfg.Data[0].ToStore())

	_, err = ConfigFromStore(store.Config{ID: 3}, []store.ConfigData{{Name: "x", Type: store.ConfigTypeBool, Value: "maybe"}})
	assert.Error(t, err)
}

func TestConfigContains(t *testing.T) {
	def := DefaultConfig(newEcho(1))
	bigger := DefaultConfig(newEcho(1))
	bigger.Data = append(bigger.Data, ConfigData{Name: "Extra", Type: store.ConfigTypeBool, Value: false})

	assert.True(t, bigger.Contains(def))
	assert.False(t, def.Contains(bigger))

	changed := DefaultConfig(newEcho(1))
	changed.Get("Count").Value = 3
	assert.False(t, changed.Contains(def))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Echo", func(id int) (Module, error) { return newEcho(id), nil }))
	require.NoError(t, r.Register("Broken", func(int) (Module, error) { return nil, errors.New("no") }))
	assert.Error(t, r.Register("Echo", nil))

	assert.True(t, r.Has("Echo"))
	assert.False(t, r.Has("Nope"))
	assert.Equal(t, []string{"Echo", "Broken"}, r.Names())

	m, err := r.Create("Echo", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, m.ID())

	_, err = r.Create("Broken", 5)
	assert.ErrorContains(t, err, "create module \"Broken\"")
	_, err = r.Create("Nope", 5)
	assert.ErrorContains(t, err, "not registered")
}

func TestLoaded(t *testing.T) {
	l := NewLoaded()
	l.Add(newEcho(2))
	l.Add(newEcho(1))
	assert.Nil(t, l.Get(3))
	assert.Equal(t, 2, l.Get(2).ID())
	assert.NotNil(t, l.ByName("Echo"))
	assert.Nil(t, l.ByName("Math"))

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].ID())
}

func TestTaskAttempt(t *testing.T) {
	m := newEcho(1)
	cfg := DefaultConfig(m)
	g, err := m.MakeTask(context.Background(), cfg)
	require.NoError(t, err)

	task := NewTask(m, 5, 9, cfg, g)
	assert.Equal(t, Awaiting, task.State)
	assert.False(t, task.Answered())
	assert.Equal(t, "hi", task.FirstAnswer())

	j, err := task.Attempt.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.Equal(t, 0, m.judged)

	task.Attempt.UserAnswer = "hi"
	j, err = task.Attempt.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.True(t, j.Correct)
	assert.Equal(t, 1.0, j.SpecificGrade("echo"))
	assert.Equal(t, 0.0, j.SpecificGrade("other"))
	assert.True(t, task.Answered())

	task.Lock()
	assert.True(t, task.Locked())
	assert.Equal(t, "locked", task.State.String())

	a := task.NewAttempt()
	assert.Same(t, a, task.Attempt)
	assert.False(t, task.Answered())
}

func TestDeserialize(t *testing.T) {
	m := newEcho(1)
	cfg := DefaultConfig(m)
	now := time.Now().UTC()
	row := store.Task{ID: 4, ModuleID: 1, SessionID: 2, Question: "say hi", Skills: []string{"greet"}, CreatedAt: now}
	answers := []store.Answer{{ID: 11, TaskID: 4, Answer: "hi"}}

	fresh := Deserialize(m, row, cfg, answers, nil)
	assert.False(t, fresh.Locked())
	assert.Equal(t, []Answer{{ID: 11, Text: "hi"}}, fresh.Answers)
	assert.False(t, fresh.Answered())

	attempts := []store.Attempt{
		{ID: 1, TaskID: 4, RunID: "a", UserAnswer: "ho", Judgement: false, Grade: 0},
		{ID: 2, TaskID: 4, RunID: "b", UserAnswer: "hi", Judgement: true, Grade: 1},
	}
	done := Deserialize(m, row, cfg, answers, attempts)
	assert.True(t, done.Locked())
	require.True(t, done.Answered())
	assert.Equal(t, "b", done.Attempt.RunID)
	assert.True(t, done.Attempt.Judgment.Correct)
	assert.Equal(t, now, done.CreatedAt)
	assert.Equal(t, []string{"greet"}, done.Skills)
	assert.Equal(t, []string{"greet"}, fresh.Skills)
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name   string
		j      Judgment
		skills []string
		want   float64
	}{
		{"all parts right", Judgment{Parts: map[string]float64{PartUnits: 1, PartTens: 1, PartOperand: 1}}, []string{SkillTwoDigit}, 1},
		{"tens wrong on two digits", Judgment{Parts: map[string]float64{PartUnits: 1, PartTens: 0, PartOperand: 1}}, []string{SkillTwoDigit}, 6.0 / 10},
		{"operand wrong on carry", Judgment{Parts: map[string]float64{PartUnits: 1, PartTens: 1, PartOperand: 0}}, []string{SkillTwoDigit, SkillOverflow10}, 12.0 / 15},
		{"single digit units wrong", Judgment{Parts: map[string]float64{PartUnits: 0, PartOperand: 1}}, nil, 1.0 / 3},
		{"no parts correct", Judgment{Correct: true}, nil, 1},
		{"no parts wrong", Judgment{}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Grade(tt.j, tt.skills), 1e-9)
		})
	}
}

func TestSkillSet(t *testing.T) {
	ss := &SkillSet{Skills: []store.Skill{
		{Name: "a", Description: "A"},
		{Name: "b", Description: "B"},
	}}
	assert.True(t, ss.Contains(store.Skill{Name: "a", Description: "A"}))
	assert.False(t, ss.Contains(store.Skill{Name: "a", Description: "other"}))
	assert.Nil(t, ss.Skill("c"))

	sub := &SkillSet{Skills: []store.Skill{{Name: "b", Description: "B"}}}
	assert.True(t, ss.ContainsAll(sub))
	assert.False(t, sub.ContainsAll(ss))

	assert.Equal(t, []string{"a", "b", "c"}, SkillNames(map[string]string{"c": "", "a": "", "b": ""}))
}

func TestUniform(t *testing.T) {
	j := Uniform(false, 0.25, []string{"x", "y"})
	assert.Equal(t, map[string]float64{"x": 0.25, "y": 0.25}, j.Scores)
	assert.Equal(t, 0.0, Binary(false, nil).Grade)
}

func TestSetValue(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mod := &store.Module{Name: "Echo"}
	require.NoError(t, st.Modules().Save(ctx, mod))
	c := &store.Config{ModuleID: mod.ID, Name: DefaultConfigName}
	require.NoError(t, st.Configs().Save(ctx, c))
	require.NoError(t, st.Configs().SaveData(ctx, &store.ConfigData{ConfigID: c.ID, Name: "Count", Type: store.ConfigTypeInt, Value: "1"}))

	require.NoError(t, SetValue(ctx, st.Configs(), c.ID, "Count", "7"))
	cfg, err := LoadConfig(ctx, st.Configs(), c.ID)
	require.NoError(t, err)
	n, err := cfg.Int("Count")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	assert.ErrorIs(t, SetValue(ctx, st.Configs(), c.ID, "Count", "seven"), ErrWrongType)
	assert.ErrorIs(t, SetValue(ctx, st.Configs(), c.ID, "Missing", "1"), ErrMissingSetting)

	_, err = LoadConfig(ctx, st.Configs(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetValuesAllOrNothing(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mod := &store.Module{Name: "Echo"}
	require.NoError(t, st.Modules().Save(ctx, mod))
	c := &store.Config{ModuleID: mod.ID, Name: DefaultConfigName}
	require.NoError(t, st.Configs().Save(ctx, c))
	require.NoError(t, st.Configs().SaveData(ctx, &store.ConfigData{ConfigID: c.ID, Name: "Count", Type: store.ConfigTypeInt, Value: "1"}))
	require.NoError(t, st.Configs().SaveData(ctx, &store.ConfigData{ConfigID: c.ID, Name: "Label", Type: store.ConfigTypeString, Value: "a"}))

	values := func() (int, string) {
		t.Helper()
		cfg, err := LoadConfig(ctx, st.Configs(), c.ID)
		require.NoError(t, err)
		n, err := cfg.Int("Count")
		require.NoError(t, err)
		label, err := cfg.String("Label")
		require.NoError(t, err)
		return n, label
	}

	// Count is valid on its own but must not be saved.
	err = SetValues(ctx, st.Configs(), c.ID, map[string]string{"Count": "5", "Label": "b", "Zzz": "1"})
	assert.ErrorIs(t, err, ErrMissingSetting)
	err = SetValues(ctx, st.Configs(), c.ID, map[string]string{"Count": "lots", "Label": "b"})
	assert.ErrorIs(t, err, ErrWrongType)
	n, label := values()
	assert.Equal(t, 1, n)
	assert.Equal(t, "a", label)

	require.NoError(t, SetValues(ctx, st.Configs(), c.ID, map[string]string{"Count": "5", "Label": "b"}))
	n, label = values()
	assert.Equal(t, 5, n)
	assert.Equal(t, "b", label)

	require.NoError(t, SetValues(ctx, st.Configs(), c.ID, nil))
}
