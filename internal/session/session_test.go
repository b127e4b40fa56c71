package session

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/module/arith"
	"github.com/abhisek/trainer/internal/module/percent"
	"github.com/abhisek/trainer/internal/store"
)

type fixture struct {
	st    *store.Store
	mods  *module.Loaded
	math  *arith.Module
	cfgID int
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	row := &store.Module{Name: arith.Name, Version: "v1.1.0"}
	require.NoError(t, st.Modules().Save(ctx, row))
	m := arith.NewWithRand(row.ID, rand.New(rand.NewPCG(7, 11)))
	mods := module.NewLoaded()
	mods.Add(m)

	cfg := module.DefaultConfig(m)
	c := &store.Config{ModuleID: row.ID, Name: cfg.Name}
	require.NoError(t, st.Configs().Save(ctx, c))
	for _, d := range cfg.Data {
		sd := d.ToStore()
		sd.ConfigID = c.ID
		require.NoError(t, st.Configs().SaveData(ctx, &sd))
	}

	ss := &store.SkillSet{ModuleID: row.ID, SessionID: store.DefaultSessionID}
	require.NoError(t, st.Skills().SaveSkillSet(ctx, ss))
	for _, name := range module.SkillNames(m.Skills()) {
		require.NoError(t, st.Skills().SaveSkill(ctx, &store.Skill{
			SkillSetID: ss.ID, Name: name, Description: m.Skills()[name], Visible: true,
		}))
	}

	return &fixture{st: st, mods: mods, math: m, cfgID: c.ID}
}

func (f *fixture) create(t *testing.T, mutate func(*Draft)) *store.Session {
	t.Helper()
	d := NewDraft()
	d.ConfigIDs = []int{f.cfgID}
	if mutate != nil {
		mutate(&d)
	}
	sess, err := NewEditor(f.st, nil).Create(context.Background(), d)
	require.NoError(t, err)
	return sess
}

func (f *fixture) open(t *testing.T, id int) *Manager {
	t.Helper()
	m := NewManager(f.st, f.mods, nil, WithRand(rand.New(rand.NewPCG(1, 1))))
	_, err := m.Open(context.Background(), id)
	require.NoError(t, err)
	return m
}

func wrongAnswer(task *module.Task) string {
	n, _ := strconv.Atoi(task.FirstAnswer())
	return strconv.Itoa(n + 1)
}

func TestValidate(t *testing.T) {
	good := Draft{Name: "s", ConfigIDs: []int{1}, Penalty: 2, Target: 10}
	tests := []struct {
		name   string
		mutate func(*Draft)
		points int
		want   error
	}{
		{"valid", func(*Draft) {}, 0, nil},
		{"empty name", func(d *Draft) { d.Name = "  " }, 0, ErrEmptyName},
		{"no configs", func(d *Draft) { d.ConfigIDs = nil }, 0, ErrNoConfigs},
		{"zero target", func(d *Draft) { d.Target = 0 }, 0, ErrTargetTooLow},
		{"negative penalty", func(d *Draft) { d.Penalty = -1 }, 0, ErrNegativePenalty},
		{"penalty equals target", func(d *Draft) { d.Penalty = 10 }, 0, ErrPenaltyOverTarget},
		{"points reached target", func(*Draft) {}, 10, ErrTargetReached},
		{"name checked first", func(d *Draft) { d.Name = ""; d.Target = 0 }, 0, ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := good
			d.ConfigIDs = append([]int(nil), good.ConfigIDs...)
			tt.mutate(&d)
			err := Validate(d, tt.points)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCreateDefaults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sess := f.create(t, nil)
	assert.Equal(t, 1, sess.ID)
	assert.Equal(t, "Session 1", sess.Name)
	assert.Equal(t, DefaultPenalty, sess.Penalty)
	assert.Equal(t, DefaultTarget, sess.Target)

	ss, err := f.st.Skills().GetSkillSet(ctx, f.math.ID(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, ss)
	skills, err := f.st.Skills().ListSkills(ctx, ss.ID)
	require.NoError(t, err)
	assert.Len(t, skills, len(module.ArithmeticSkills))

	second := f.create(t, func(d *Draft) { d.Name = "Drill" })
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, "Drill", second.Name)
}

func TestCreateUnknownConfig(t *testing.T) {
	f := setup(t)
	d := NewDraft()
	d.ConfigIDs = []int{f.cfgID, 99}
	_, err := NewEditor(f.st, nil).Create(context.Background(), d)
	assert.ErrorIs(t, err, ErrUnknownConfig)
}

func TestOpenMakesFirstTask(t *testing.T) {
	f := setup(t)
	sess := f.create(t, nil)
	m := f.open(t, sess.ID)

	require.Len(t, m.Tasks(), 1)
	task := m.Current()
	require.NotNil(t, task)
	assert.Same(t, task, m.Task(0))
	assert.Nil(t, m.Task(1))
	assert.False(t, task.Locked())
	assert.Equal(t, Progress{Target: DefaultTarget, Tasks: 1}, m.Progress())

	_, err := NewManager(f.st, f.mods, nil).Open(context.Background(), 42)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitCorrect(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sess := f.create(t, nil)
	m := f.open(t, sess.ID)
	task := m.Current()

	out, err := m.Submit(ctx, task.ID, " "+task.FirstAnswer()+" ")
	require.NoError(t, err)
	assert.True(t, out.Judgment.Correct)
	assert.Equal(t, 1, out.Points)
	assert.False(t, out.Finished)
	require.NotNil(t, out.NextTask)
	assert.NotEqual(t, task.ID, out.NextTask.ID)
	assert.True(t, task.Locked())
	assert.NotEmpty(t, task.Attempt.RunID)

	stored, err := f.st.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Points)

	attempts, err := f.st.Tasks().ListAttempts(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Judgement)
	assert.Equal(t, task.Attempt.RunID, attempts[0].RunID)

	_, err = m.Submit(ctx, task.ID, task.FirstAnswer())
	assert.ErrorIs(t, err, ErrTaskLocked)
}

func TestSnapshotIsDetached(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.open(t, f.create(t, nil).ID)
	task := m.Current()

	before := m.Snapshot()
	require.Len(t, before, 1)
	assert.Equal(t, task.ID, before[0].ID)
	assert.Equal(t, module.Awaiting, before[0].State)
	assert.False(t, before[0].Answered)
	assert.Empty(t, before[0].Answer)

	out, err := m.Submit(ctx, task.ID, task.FirstAnswer())
	require.NoError(t, err)
	require.NotNil(t, out.Next)
	assert.Equal(t, out.NextTask.ID, out.Next.ID)
	assert.Equal(t, out.NextTask.Question, out.Next.Question)

	assert.Equal(t, module.Awaiting, before[0].State)
	assert.False(t, before[0].Answered)

	after := m.Snapshot()
	require.Len(t, after, 2)
	assert.Equal(t, module.Locked, after[0].State)
	assert.True(t, after[0].Answered)
	assert.True(t, after[0].Correct)
	assert.Equal(t, task.FirstAnswer(), after[0].UserAnswer)
	assert.Equal(t, task.FirstAnswer(), after[0].Answer)
	assert.Equal(t, arith.Name, after[0].Module)

	assert.Nil(t, NewManager(f.st, f.mods, nil).Snapshot())
}

func TestSubmitRejectsInput(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.open(t, f.create(t, nil).ID)
	task := m.Current()

	_, err := m.Submit(ctx, task.ID, "   ")
	assert.ErrorIs(t, err, ErrNoAnswer)
	_, err = m.Submit(ctx, task.ID, "twelve")
	assert.ErrorIs(t, err, module.ErrBadAnswer)
	_, err = m.Submit(ctx, 999, "1")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.False(t, task.Locked())

	_, err = NewManager(f.st, f.mods, nil).Submit(ctx, task.ID, "1")
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestSubmitBlankUsesDefaultAnswer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	row := &store.Module{Name: percent.Name, Version: "v1.0.0"}
	require.NoError(t, f.st.Modules().Save(ctx, row))
	pm := percent.NewWithRand(row.ID, rand.New(rand.NewPCG(3, 4)))
	f.mods.Add(pm)
	c := &store.Config{ModuleID: row.ID, Name: module.DefaultConfigName}
	require.NoError(t, f.st.Configs().Save(ctx, c))
	for _, d := range module.DefaultConfig(pm).Data {
		sd := d.ToStore()
		sd.ConfigID = c.ID
		require.NoError(t, f.st.Configs().SaveData(ctx, &sd))
	}

	sess := f.create(t, func(d *Draft) { d.ConfigIDs = []int{c.ID} })
	m := f.open(t, sess.ID)
	task := m.Current()
	require.Equal(t, percent.Name, task.Module.Descriptor().Name)

	_, err := m.Submit(ctx, task.ID, "  ")
	require.NoError(t, err)
	require.True(t, task.Answered())
	assert.Equal(t, strconv.Itoa(percent.DefaultAnswer), task.Attempt.UserAnswer)

	attempts, err := f.st.Tasks().ListAttempts(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "50", attempts[0].UserAnswer)
}

func TestSubmitPenalty(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.open(t, f.create(t, nil).ID)

	for range 3 {
		task := m.Current()
		_, err := m.Submit(ctx, task.ID, task.FirstAnswer())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.Progress().Points)

	task := m.Current()
	out, err := m.Submit(ctx, task.ID, wrongAnswer(task))
	require.NoError(t, err)
	assert.False(t, out.Judgment.Correct)
	assert.Equal(t, 1, out.Points)

	task = m.Current()
	out, err = m.Submit(ctx, task.ID, wrongAnswer(task))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Points)
}

func TestSubmitReset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.open(t, f.create(t, func(d *Draft) { d.Reset = true }).ID)

	for range 3 {
		task := m.Current()
		_, err := m.Submit(ctx, task.ID, task.FirstAnswer())
		require.NoError(t, err)
	}
	task := m.Current()
	out, err := m.Submit(ctx, task.ID, wrongAnswer(task))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Points)
}

func TestSubmitFinishes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sess := f.create(t, func(d *Draft) { d.Target = 2; d.Penalty = 1 })
	m := f.open(t, sess.ID)

	task := m.Current()
	_, err := m.Submit(ctx, task.ID, task.FirstAnswer())
	require.NoError(t, err)
	task = m.Current()
	out, err := m.Submit(ctx, task.ID, task.FirstAnswer())
	require.NoError(t, err)
	assert.True(t, out.Finished)
	assert.Nil(t, out.NextTask)
	assert.Len(t, m.Tasks(), 2)

	// A finished session gets no new task on reopen.
	again := f.open(t, sess.ID)
	assert.Len(t, again.Tasks(), 2)
	assert.Equal(t, Progress{Points: 2, Target: 2, Answered: 2, Tasks: 2, Finished: true}, again.Progress())
	for _, task := range again.Tasks() {
		assert.True(t, task.Locked())
		assert.True(t, task.Answered())
	}
}

func TestSubmitRepeatable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m := f.open(t, f.create(t, func(d *Draft) { d.Repeatable = true }).ID)
	task := m.Current()

	_, err := m.Submit(ctx, task.ID, wrongAnswer(task))
	require.NoError(t, err)
	assert.False(t, task.Locked())

	out, err := m.Submit(ctx, task.ID, task.FirstAnswer())
	require.NoError(t, err)
	assert.True(t, out.Judgment.Correct)
	assert.Equal(t, 1, m.Progress().Answered)

	attempts, err := f.st.Tasks().ListAttempts(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestReopenRestoresTasks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sess := f.create(t, nil)
	m := f.open(t, sess.ID)

	first := m.Current()
	_, err := m.Submit(ctx, first.ID, first.FirstAnswer())
	require.NoError(t, err)
	pending := m.Current()

	again := f.open(t, sess.ID)
	tasks := again.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.True(t, tasks[0].Locked())
	assert.True(t, tasks[0].Attempt.Judgment.Correct)
	assert.Equal(t, pending.ID, tasks[1].ID)
	assert.False(t, tasks[1].Locked())
	assert.Equal(t, pending.Answers, tasks[1].Answers)
	assert.Equal(t, 1, again.Progress().Answered)
}

func TestReopenKeepsTaskSkills(t *testing.T) {
	f := setup(t)
	sess := f.create(t, nil)
	first := f.open(t, sess.ID).Current()

	again := f.open(t, sess.ID)
	reloaded := again.Current()
	require.Equal(t, first.ID, reloaded.ID)
	assert.Equal(t, first.Skills, reloaded.Skills)

	row, err := f.st.Tasks().Get(context.Background(), first.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, first.Skills, row.Skills)
}

func TestReopenAfterAllAnswered(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sess := f.create(t, nil)
	m := f.open(t, sess.ID)
	task := m.Current()

	// Answer outside the manager so no follow-up task is made.
	require.NoError(t, f.st.Tasks().SaveAttempt(ctx, &store.Attempt{TaskID: task.ID, RunID: "x", UserAnswer: "0"}))

	again := f.open(t, sess.ID)
	assert.Len(t, again.Tasks(), 2)
	assert.False(t, again.Current().Locked())
}

func TestSkillScoresUpdated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sess := f.create(t, nil)

	j := module.Uniform(false, 0.5, []string{module.SkillTwoDigit})
	require.NoError(t, updateSkillScores(ctx, f.st, f.math, sess.ID, j))
	require.NoError(t, updateSkillScores(ctx, f.st, f.math, sess.ID, j))

	ss, err := f.st.Skills().GetSkillSet(ctx, f.math.ID(), sess.ID)
	require.NoError(t, err)
	sk, err := f.st.Skills().GetSkill(ctx, ss.ID, module.SkillTwoDigit)
	require.NoError(t, err)
	require.NotNil(t, sk)
	// 0 -> 0.125 -> 0.21875
	assert.InDelta(t, 0.21875, sk.Score, 1e-9)

	def, err := f.st.Skills().GetSkillSet(ctx, f.math.ID(), store.DefaultSessionID)
	require.NoError(t, err)
	dsk, err := f.st.Skills().GetSkill(ctx, def.ID, module.SkillTwoDigit)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dsk.Score)
}

func TestEditAndRemove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ed := NewEditor(f.st, nil)
	sess := f.create(t, nil)
	m := f.open(t, sess.ID)
	for range 3 {
		task := m.Current()
		_, err := m.Submit(ctx, task.ID, task.FirstAnswer())
		require.NoError(t, err)
	}

	d := Draft{Name: "Renamed", ConfigIDs: []int{f.cfgID}, Penalty: 1, Target: 3}
	_, err := ed.Edit(ctx, sess.ID, d)
	assert.ErrorIs(t, err, ErrTargetReached)

	d.Target = 5
	edited, err := ed.Edit(ctx, sess.ID, d)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", edited.Name)
	assert.Equal(t, 3, edited.Points)

	_, err = ed.Edit(ctx, 77, d)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, ed.Remove(ctx, sess.ID))
	got, err := f.st.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	tasks, err := f.st.Tasks().ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.ErrorIs(t, ed.Remove(ctx, sess.ID), ErrSessionNotFound)
}

func TestBuildSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sess := f.create(t, nil)
	m := f.open(t, sess.ID)

	task := m.Current()
	_, err := m.Submit(ctx, task.ID, task.FirstAnswer())
	require.NoError(t, err)
	task = m.Current()
	_, err = m.Submit(ctx, task.ID, wrongAnswer(task))
	require.NoError(t, err)

	sum, err := BuildSummary(ctx, f.st, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Tasks)
	assert.Equal(t, 2, sum.Attempts)
	assert.Equal(t, 1, sum.Correct)
	assert.InDelta(t, 0.5, sum.Accuracy, 1e-9)
	assert.Equal(t, 0, sum.Points)
	require.Len(t, sum.Modules, 1)
	assert.Equal(t, arith.Name, sum.Modules[0].Name)
	assert.Equal(t, 3, sum.Modules[0].Tasks)

	_, err = BuildSummary(ctx, f.st, 9)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSetPoints(t *testing.T) {
	s := &Session{Target: 3}
	s.SetPoints(-4)
	assert.Equal(t, 0, s.Points)
	s.SetPoints(3)
	assert.True(t, s.IsFinished())
}
