package module

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/trainer/internal/store"
)

// State is the lifecycle state of a task.
type State int

const (
	// Awaiting tasks accept answers.
	Awaiting State = iota
	// Locked tasks reject further answers.
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "locked"
	}
	return "awaiting"
}

// Answer is one accepted answer of a task.
type Answer struct {
	ID   int
	Text string
}

// Task is one question instance of a module within a session.
type Task struct {
	ID        int
	Module    Module
	SessionID int
	Config    *Config
	Question  string
	Answers   []Answer
	Skills    []string
	State     State
	Attempt   *Attempt
	CreatedAt time.Time
}

// NewTask wraps a generated question in an awaiting task.
func NewTask(m Module, id, sessionID int, cfg *Config, g Generated) *Task {
	t := &Task{
		ID:        id,
		Module:    m,
		SessionID: sessionID,
		Config:    cfg,
		Question:  g.Question,
		Answers:   g.Answers,
		Skills:    g.Skills,
		CreatedAt: time.Now().UTC(),
	}
	t.Attempt = &Attempt{task: t}
	return t
}

// Deserialize rebuilds a stored task. When attempts exist the newest one
// becomes the current attempt and the task is locked.
func Deserialize(m Module, row store.Task, cfg *Config, answers []store.Answer, attempts []store.Attempt) *Task {
	t := &Task{
		ID:        row.ID,
		Module:    m,
		SessionID: row.SessionID,
		Config:    cfg,
		Question:  row.Question,
		Skills:    row.Skills,
		CreatedAt: row.CreatedAt,
	}
	for _, a := range answers {
		t.Answers = append(t.Answers, Answer{ID: a.ID, Text: a.Answer})
	}
	if len(attempts) == 0 {
		t.Attempt = &Attempt{task: t}
		return t
	}

	last := attempts[len(attempts)-1]
	t.Attempt = &Attempt{
		ID:         last.ID,
		RunID:      last.RunID,
		UserAnswer: last.UserAnswer,
		Judgment:   &Judgment{Correct: last.Judgement, Grade: last.Grade},
		task:       t,
	}
	t.State = Locked
	return t
}

// Lock stops the task from accepting answers.
func (t *Task) Lock() { t.State = Locked }

// Locked reports whether the task accepts answers.
func (t *Task) Locked() bool { return t.State == Locked }

// Answered reports whether the current attempt has a judgment.
func (t *Task) Answered() bool {
	return t.Attempt != nil && t.Attempt.Judgment != nil
}

// FirstAnswer returns the text of the first answer, or "".
func (t *Task) FirstAnswer() string {
	if len(t.Answers) == 0 {
		return ""
	}
	return t.Answers[0].Text
}

// NewAttempt replaces the current attempt with a blank one.
func (t *Task) NewAttempt() *Attempt {
	t.Attempt = &Attempt{task: t}
	return t.Attempt
}

// Attempt is one try at a task.
type Attempt struct {
	ID         int
	RunID      string
	UserAnswer string
	Judgment   *Judgment

	task *Task
}

// Check judges the user answer through the task's module. It returns
// (nil, nil) when no answer has been given.
func (a *Attempt) Check(ctx context.Context) (*Judgment, error) {
	if strings.TrimSpace(a.UserAnswer) == "" {
		return nil, nil
	}
	j, err := a.task.Module.Judge(ctx, a.task, a.UserAnswer)
	if err != nil {
		return nil, fmt.Errorf("judge task %d: %w", a.task.ID, err)
	}
	a.Judgment = &j
	return a.Judgment, nil
}

// Judgment is the verdict on an attempt.
type Judgment struct {
	Correct bool
	// Grade is the partial credit in [0, 1].
	Grade float64
	// Scores holds per-skill grades for the skills the task exercised.
	Scores map[string]float64
	// Parts holds module-specific component scores, e.g. "units" or "sign".
	Parts map[string]float64
}

// SpecificGrade returns the score for skill, or 0 when the task did not
// exercise it.
func (j Judgment) SpecificGrade(skill string) float64 {
	return j.Scores[skill]
}

// Binary builds a judgment with full or no credit on every listed skill.
func Binary(correct bool, skills []string) Judgment {
	grade := 0.0
	if correct {
		grade = 1
	}
	return Uniform(correct, grade, skills)
}

// Uniform builds a judgment that gives every listed skill the same grade.
func Uniform(correct bool, grade float64, skills []string) Judgment {
	j := Judgment{Correct: correct, Grade: grade, Scores: make(map[string]float64, len(skills))}
	for _, s := range skills {
		j.Scores[s] = grade
	}
	return j
}
