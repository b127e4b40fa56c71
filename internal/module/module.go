// Package module defines the pluggable question types of the trainer and the
// task, attempt and judgment values they exchange with a session.
package module

import (
	"context"
	"errors"
)

// ErrBadAnswer is returned by ParseAnswer when input does not fit the
// module's answer format.
var ErrBadAnswer = errors.New("bad answer")

// Setting is one configurable parameter a module declares with its default.
type Setting struct {
	Name    string
	Type    string
	Default any
}

// Descriptor identifies a module and declares its settings.
type Descriptor struct {
	// Name is the stable key stored in the Modules table.
	Name        string
	DisplayName string
	// Version is a semver string, e.g. "v1.2.0".
	Version  string
	Settings []Setting
}

// Generated is a freshly made question.
type Generated struct {
	Question string
	Answers  []Answer
	// Skills lists the skills this question exercises.
	Skills []string
}

// Module generates and judges tasks of one kind.
type Module interface {
	// ID is the stored module ID.
	ID() int
	Descriptor() Descriptor
	MakeTask(ctx context.Context, cfg *Config) (Generated, error)
	Judge(ctx context.Context, task *Task, userAnswer string) (Judgment, error)
	// Skills maps skill names to descriptions.
	Skills() map[string]string
	// ParseAnswer normalizes raw user input, or fails with ErrBadAnswer.
	ParseAnswer(raw string) (string, error)
}

// DefaultAnswerer is implemented by modules whose answer widget starts at a
// value. An empty submission means that value.
type DefaultAnswerer interface {
	DefaultAnswer() string
}

// DefaultAnswerOf returns m's default answer, or "" when it has none.
func DefaultAnswerOf(m Module) string {
	if d, ok := m.(DefaultAnswerer); ok {
		return d.DefaultAnswer()
	}
	return ""
}

// Base carries the parts every module shares.
type Base struct {
	id   int
	desc Descriptor
}

// NewBase returns a Base for the module with the given stored ID.
func NewBase(id int, desc Descriptor) Base {
	return Base{id: id, desc: desc}
}

func (b Base) ID() int                { return b.id }
func (b Base) Descriptor() Descriptor { return b.desc }

// DefaultConfig builds the module's "Default" config from its settings.
func DefaultConfig(m Module) *Config {
	d := m.Descriptor()
	cfg := &Config{ModuleID: m.ID(), Name: DefaultConfigName}
	for _, s := range d.Settings {
		cfg.Data = append(cfg.Data, ConfigData{Name: s.Name, Type: s.Type, Value: s.Default})
	}
	return cfg
}
