package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

// Manager drives one open session. It is safe for concurrent use.
type Manager struct {
	st   *store.Store
	mods *module.Loaded
	log  *zap.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	sess    *Session
	configs map[int]*module.Config
}

// Option configures a Manager.
type Option func(*Manager)

// WithRand sets the source used to pick configs.
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) { m.rng = rng }
}

// NewManager returns a Manager with no open session.
func NewManager(st *store.Store, mods *module.Loaded, log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		st:   st,
		mods: mods,
		log:  log.Named("session"),
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Open loads a session with its tasks. A new task is made when the session
// has none, or when every task is answered and the target is not reached.
func (m *Manager) Open(ctx context.Context, id int) (*Session, error) {
	row, err := m.st.Sessions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess := fromStore(row)
	m.sess = sess
	m.configs = make(map[int]*module.Config)

	tasks, err := m.st.Tasks().ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, tr := range tasks {
		t, err := m.loadTask(ctx, tr)
		if errors.Is(err, ErrModuleNotLoaded) {
			m.log.Warn("skipping task of unavailable module",
				zap.Int("task", tr.ID), zap.Int("module", tr.ModuleID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load task %d: %w", tr.ID, err)
		}
		sess.Tasks = append(sess.Tasks, t)
	}

	answered, err := m.st.Tasks().CountAttemptedTasks(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.AnsweredTaskAmount = answered

	if len(sess.Tasks) == 0 || (answered >= len(sess.Tasks) && !sess.IsFinished()) {
		if _, err := m.makeTask(ctx); err != nil {
			return nil, err
		}
	}

	m.log.Debug("session opened", zap.Int("session", id),
		zap.Int("tasks", len(sess.Tasks)), zap.Int("points", sess.Points))
	return sess, nil
}

func (m *Manager) loadTask(ctx context.Context, tr store.Task) (*module.Task, error) {
	mod := m.mods.Get(tr.ModuleID)
	if mod == nil {
		return nil, fmt.Errorf("module %d: %w", tr.ModuleID, ErrModuleNotLoaded)
	}
	cfg, err := m.config(ctx, tr.ConfigID)
	if err != nil {
		return nil, err
	}
	answers, err := m.st.Tasks().ListAnswers(ctx, tr.ID)
	if err != nil {
		return nil, err
	}
	attempts, err := m.st.Tasks().ListAttempts(ctx, tr.ID)
	if err != nil {
		return nil, err
	}
	return module.Deserialize(mod, tr, cfg, answers, attempts), nil
}

func (m *Manager) config(ctx context.Context, id int) (*module.Config, error) {
	if c, ok := m.configs[id]; ok {
		return c, nil
	}
	c, err := module.LoadConfig(ctx, m.st.Configs(), id)
	if err != nil {
		return nil, err
	}
	m.configs[id] = c
	return c, nil
}

// makeTask generates a task from a random config of the session and
// stores it with its answers. Callers hold m.mu.
func (m *Manager) makeTask(ctx context.Context) (*module.Task, error) {
	sess := m.sess
	if len(sess.ConfigIDs) == 0 {
		return nil, fmt.Errorf("session %d has no configs", sess.ID)
	}
	configID := sess.ConfigIDs[m.rng.IntN(len(sess.ConfigIDs))]

	cfg, err := m.config(ctx, configID)
	if err != nil {
		return nil, err
	}
	mod := m.mods.Get(cfg.ModuleID)
	if mod == nil {
		return nil, fmt.Errorf("config %d module %d: %w", configID, cfg.ModuleID, ErrModuleNotLoaded)
	}

	g, err := mod.MakeTask(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("make %s task: %w", mod.Descriptor().Name, err)
	}

	row := store.Task{ModuleID: mod.ID(), SessionID: sess.ID, ConfigID: configID, Question: g.Question, Skills: g.Skills}
	if err := m.st.Tasks().Save(ctx, &row); err != nil {
		return nil, err
	}
	for i, a := range g.Answers {
		ar := store.Answer{TaskID: row.ID, Answer: a.Text}
		if err := m.st.Tasks().SaveAnswer(ctx, &ar); err != nil {
			return nil, err
		}
		g.Answers[i].ID = ar.ID
	}

	t := module.NewTask(mod, row.ID, sess.ID, cfg, g)
	t.CreatedAt = row.CreatedAt
	sess.Tasks = append(sess.Tasks, t)

	m.log.Debug("task made", zap.Int("task", t.ID), zap.String("module", mod.Descriptor().Name))
	return t, nil
}

// Submit judges rawAnswer for the task, stores the attempt and moves the
// score. Unless the target is reached a new task is made. Blank input
// stands for the module's default answer when it has one.
func (m *Manager) Submit(ctx context.Context, taskID int, rawAnswer string) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.sess
	if sess == nil {
		return nil, ErrNotOpen
	}
	t := sess.task(taskID)
	if t == nil {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrTaskNotFound)
	}
	if t.Locked() {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrTaskLocked)
	}
	if strings.TrimSpace(rawAnswer) == "" {
		rawAnswer = module.DefaultAnswerOf(t.Module)
	}
	if rawAnswer == "" {
		return nil, ErrNoAnswer
	}

	answer, err := t.Module.ParseAnswer(rawAnswer)
	if err != nil {
		return nil, err
	}

	firstAnswer := !t.Answered()
	attempt := t.NewAttempt()
	attempt.RunID = uuid.NewString()
	attempt.UserAnswer = answer
	j, err := attempt.Check(ctx)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, ErrNoAnswer
	}

	row := store.Attempt{
		TaskID:     t.ID,
		RunID:      attempt.RunID,
		UserAnswer: answer,
		Judgement:  j.Correct,
		Grade:      j.Grade,
	}
	if err := m.st.Tasks().SaveAttempt(ctx, &row); err != nil {
		return nil, err
	}
	attempt.ID = row.ID

	if firstAnswer {
		sess.AnsweredTaskAmount++
	}
	if !sess.Repeatable {
		t.Lock()
	}

	sess.applyJudgment(j.Correct)
	if err := m.st.Sessions().UpdatePoints(ctx, sess.ID, sess.Points); err != nil {
		return nil, err
	}

	out := &Outcome{Judgment: *j, Points: sess.Points, Target: sess.Target, Finished: sess.IsFinished()}
	if !out.Finished {
		if out.NextTask, err = m.makeTask(ctx); err != nil {
			return nil, err
		}
		next := infoOf(out.NextTask)
		out.Next = &next
	}

	if err := updateSkillScores(ctx, m.st, t.Module, sess.ID, *j); err != nil {
		m.log.Warn("skill scores not updated", zap.Int("session", sess.ID), zap.Error(err))
	}

	m.log.Info("answer judged",
		zap.Int("session", sess.ID),
		zap.Int("task", t.ID),
		zap.Bool("correct", j.Correct),
		zap.Float64("grade", j.Grade),
		zap.Int("points", sess.Points))
	return out, nil
}

// Session returns the open session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// Task returns the i-th task of the open session, or nil.
func (m *Manager) Task(i int) *module.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || i < 0 || i >= len(m.sess.Tasks) {
		return nil
	}
	return m.sess.Tasks[i]
}

// Tasks returns the open session's tasks in creation order.
func (m *Manager) Tasks() []*module.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	return append([]*module.Task(nil), m.sess.Tasks...)
}

// Snapshot copies the open session's tasks under the lock. Unlike Tasks,
// the result is safe to read while answers are submitted.
func (m *Manager) Snapshot() []TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	out := make([]TaskInfo, 0, len(m.sess.Tasks))
	for _, t := range m.sess.Tasks {
		out = append(out, infoOf(t))
	}
	return out
}

// Current returns the newest task, which is the one to answer next.
func (m *Manager) Current() *module.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || len(m.sess.Tasks) == 0 {
		return nil
	}
	return m.sess.Tasks[len(m.sess.Tasks)-1]
}

// Progress reports the open session's score.
func (m *Manager) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return Progress{}
	}
	return Progress{
		Points:   m.sess.Points,
		Target:   m.sess.Target,
		Answered: m.sess.AnsweredTaskAmount,
		Tasks:    len(m.sess.Tasks),
		Finished: m.sess.IsFinished(),
	}
}
