// Package session runs practice sessions: it picks tasks from the session's
// configs, judges answers and keeps the point score.
package session

import (
	"errors"
	"time"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

// Defaults for new sessions.
const (
	DefaultPenalty = 2
	DefaultTarget  = 10
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskLocked      = errors.New("task is locked")
	ErrNoAnswer        = errors.New("no answer given")
	ErrNotOpen         = errors.New("no session is open")
	ErrModuleNotLoaded = errors.New("module not loaded")
)

// Session is an open session with its tasks.
type Session struct {
	ID         int
	Name       string
	ConfigIDs  []int
	Tasks      []*module.Task
	Repeatable bool
	Reset      bool
	Penalty    int
	Target     int
	// AnsweredTaskAmount counts tasks with at least one attempt.
	AnsweredTaskAmount int
	Points             int
	CreatedAt          time.Time
}

func fromStore(s *store.Session) *Session {
	return &Session{
		ID:         s.ID,
		Name:       s.Name,
		ConfigIDs:  append([]int(nil), s.ConfigIDs...),
		Repeatable: s.Repeatable,
		Reset:      s.Reset,
		Penalty:    s.Penalty,
		Target:     s.Target,
		Points:     s.Points,
		CreatedAt:  s.CreatedAt,
	}
}

// IsFinished reports whether the target has been reached.
func (s *Session) IsFinished() bool { return s.Points >= s.Target }

// SetPoints sets the score, never below zero.
func (s *Session) SetPoints(p int) {
	s.Points = max(p, 0)
}

// applyJudgment moves the score after an answer.
func (s *Session) applyJudgment(correct bool) {
	switch {
	case correct:
		s.SetPoints(s.Points + 1)
	case s.Reset:
		s.SetPoints(0)
	default:
		s.SetPoints(s.Points - s.Penalty)
	}
}

func (s *Session) task(id int) *module.Task {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Progress is a snapshot of a session's score.
type Progress struct {
	Points   int
	Target   int
	Answered int
	Tasks    int
	Finished bool
}

// Outcome is the result of submitting an answer.
type Outcome struct {
	Judgment module.Judgment
	Points   int
	Target   int
	Finished bool
	// NextTask is nil when the session is finished.
	NextTask *module.Task
	// Next is a copy of NextTask taken before Submit returned.
	Next *TaskInfo
}

// TaskInfo is a copy of a task's state that stays valid after the manager
// moves on.
type TaskInfo struct {
	ID         int
	Module     string
	Question   string
	State      module.State
	Skills     []string
	Answered   bool
	UserAnswer string
	Correct    bool
	// Answer is set once the task is locked.
	Answer string
}

func infoOf(t *module.Task) TaskInfo {
	info := TaskInfo{
		ID:       t.ID,
		Module:   t.Module.Descriptor().Name,
		Question: t.Question,
		State:    t.State,
		Skills:   append([]string(nil), t.Skills...),
		Answered: t.Answered(),
	}
	if info.Answered {
		info.UserAnswer = t.Attempt.UserAnswer
		info.Correct = t.Attempt.Judgment.Correct
	}
	if t.Locked() {
		info.Answer = t.FirstAnswer()
	}
	return info
}
