package store

import (
	"context"
	"time"
)

// DefaultSessionID marks a module's default skill set, which is not tied to
// any session.
const DefaultSessionID = -1

// Session is a stored practice session.
type Session struct {
	ID         int
	Name       string
	ConfigIDs  []int
	Points     int
	Reset      bool
	Penalty    int
	Target     int
	Repeatable bool
	CreatedAt  time.Time
}

// Module is a registered module row.
type Module struct {
	ID        int
	Name      string
	Version   string
	CreatedAt time.Time
}

// Config is a named parameter set for one module.
type Config struct {
	ID       int
	ModuleID int
	Name     string
}

// ConfigData is one typed setting of a Config. Value holds the textual form;
// Type is one of the ConfigType constants.
type ConfigData struct {
	ID       int
	ConfigID int
	Name     string
	Type     string
	Value    string
}

// Setting types accepted in ConfigData.Type.
const (
	ConfigTypeInt    = "int"
	ConfigTypeFloat  = "float"
	ConfigTypeString = "string"
	ConfigTypeBool   = "bool"
)

// Task is one generated question.
type Task struct {
	ID        int
	ModuleID  int
	SessionID int
	ConfigID  int
	Question  string
	// Skills the task exercises, stored as a comma separated list.
	Skills    []string
	CreatedAt time.Time
}

// Attempt is a single try at a task.
type Attempt struct {
	ID         int
	TaskID     int
	RunID      string
	UserAnswer string
	Judgement  bool
	Grade      float64
	CreatedAt  time.Time
}

// Answer is one accepted answer of a task.
type Answer struct {
	ID        int
	TaskID    int
	Answer    string
	CreatedAt time.Time
}

// SkillSet groups skills of a module for a session, or for DefaultSessionID.
type SkillSet struct {
	ID        int
	ModuleID  int
	SessionID int
}

// Skill is a named sub-competency with a running score.
type Skill struct {
	ID          int
	SkillSetID  int
	Name        string
	Description string
	Score       float64
	Visible     bool
}

// SessionRepo persists sessions.
type SessionRepo interface {
	// Save inserts s, allocating s.ID when zero.
	Save(ctx context.Context, s *Session) error

	// Get returns the session or nil if it does not exist.
	Get(ctx context.Context, id int) (*Session, error)

	// List returns all sessions ordered by creation time.
	List(ctx context.Context) ([]Session, error)

	// Update rewrites every mutable field of s.
	Update(ctx context.Context, s *Session) error

	// UpdatePoints sets only the point total.
	UpdatePoints(ctx context.Context, id, points int) error

	// Remove deletes the session together with its tasks, attempts,
	// answers and skill sets.
	Remove(ctx context.Context, id int) error

	// NextID returns the ID the next saved session would receive.
	NextID(ctx context.Context) (int, error)
}

// ModuleRepo persists module registrations.
type ModuleRepo interface {
	Save(ctx context.Context, m *Module) error
	List(ctx context.Context) ([]Module, error)
	GetByName(ctx context.Context, name string) (*Module, error)
	UpdateVersion(ctx context.Context, id int, version string) error
}

// ConfigRepo persists configs and their data.
type ConfigRepo interface {
	Save(ctx context.Context, c *Config) error
	Get(ctx context.Context, id int) (*Config, error)
	GetByName(ctx context.Context, moduleID int, name string) (*Config, error)
	List(ctx context.Context) ([]Config, error)
	ListByModule(ctx context.Context, moduleID int) ([]Config, error)

	// ModuleIDOf returns the module a config belongs to.
	ModuleIDOf(ctx context.Context, configID int) (int, error)

	Rename(ctx context.Context, id int, name string) error

	// Remove deletes the config and all of its data.
	Remove(ctx context.Context, id int) error

	SaveData(ctx context.Context, d *ConfigData) error
	GetData(ctx context.Context, configID int, name string) (*ConfigData, error)
	ListData(ctx context.Context, configID int) ([]ConfigData, error)
	UpdateData(ctx context.Context, d *ConfigData) error
	// UpdateDataAll updates every row in one transaction.
	UpdateDataAll(ctx context.Context, ds []ConfigData) error
	RemoveData(ctx context.Context, id int) error

	// IsDataSaved reports whether a row with identical config, name, type
	// and value exists.
	IsDataSaved(ctx context.Context, d ConfigData) (bool, error)
}

// TaskRepo persists tasks with their answers and attempts.
type TaskRepo interface {
	Save(ctx context.Context, t *Task) error
	Get(ctx context.Context, id int) (*Task, error)

	// ListBySession returns the session's tasks in creation order.
	ListBySession(ctx context.Context, sessionID int) ([]Task, error)

	// Remove deletes the task with its attempts and answers.
	Remove(ctx context.Context, id int) error

	SaveAnswer(ctx context.Context, a *Answer) error
	ListAnswers(ctx context.Context, taskID int) ([]Answer, error)

	SaveAttempt(ctx context.Context, a *Attempt) error
	ListAttempts(ctx context.Context, taskID int) ([]Attempt, error)

	// ListSessionAttempts returns every attempt on the session's tasks.
	ListSessionAttempts(ctx context.Context, sessionID int) ([]Attempt, error)

	// CountAttemptedTasks returns how many of the session's tasks have at
	// least one attempt.
	CountAttemptedTasks(ctx context.Context, sessionID int) (int, error)
}

// SkillRepo persists skill sets and skills.
type SkillRepo interface {
	SaveSkillSet(ctx context.Context, ss *SkillSet) error

	// GetSkillSet returns the module's set for sessionID, or nil.
	GetSkillSet(ctx context.Context, moduleID, sessionID int) (*SkillSet, error)
	ListSkillSets(ctx context.Context, sessionID int) ([]SkillSet, error)

	SaveSkill(ctx context.Context, sk *Skill) error
	GetSkill(ctx context.Context, skillSetID int, name string) (*Skill, error)
	ListSkills(ctx context.Context, skillSetID int) ([]Skill, error)
	UpdateSkill(ctx context.Context, sk *Skill) error
	RemoveSkill(ctx context.Context, id int) error
}
