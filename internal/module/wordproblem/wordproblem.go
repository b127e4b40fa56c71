// Package wordproblem implements the "WordProblem" module, whose questions
// are written by an LLM and judged by integer equality.
package wordproblem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/abhisek/trainer/internal/llm"
	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

// Name is the stored module name.
const Name = "WordProblem"

// Setting names.
const (
	SettingMax   = "Max value"
	SettingTopic = "Topic"
)

const answerID = 1

// historySize bounds the questions kept for deduplication.
const historySize = 16

// Module generates word problems through a Generator.
type Module struct {
	module.Base
	gen *Generator

	mu    sync.Mutex
	prior []string
}

// Factory returns a module.Factory using provider with the default
// generator config.
func Factory(provider llm.Provider) module.Factory {
	gen := NewGenerator(provider, DefaultGeneratorConfig())
	return func(id int) (module.Module, error) {
		return New(id, gen), nil
	}
}

// New builds the module around gen.
func New(id int, gen *Generator) *Module {
	return &Module{
		Base: module.NewBase(id, module.Descriptor{
			Name:        Name,
			DisplayName: "Word Problem Module",
			Version:     "v1.0.0",
			Settings: []module.Setting{
				{Name: SettingMax, Type: store.ConfigTypeInt, Default: 100},
				{Name: SettingTopic, Type: store.ConfigTypeString, Default: "shopping"},
			},
		}),
		gen: gen,
	}
}

func (m *Module) Skills() map[string]string { return module.ArithmeticSkills }

func (m *Module) MakeTask(ctx context.Context, cfg *module.Config) (module.Generated, error) {
	maxVal, err := cfg.Int(SettingMax)
	if err != nil {
		return module.Generated{}, err
	}
	topic, err := cfg.String(SettingTopic)
	if err != nil {
		return module.Generated{}, err
	}

	m.mu.Lock()
	prior := append([]string(nil), m.prior...)
	m.mu.Unlock()

	p, err := m.gen.Generate(ctx, Input{Topic: topic, MaxValue: maxVal, Prior: prior})
	if err != nil {
		return module.Generated{}, err
	}
	n, _ := normalizeAnswer(p.Answer)

	m.mu.Lock()
	m.prior = append(m.prior, p.Question)
	if len(m.prior) > historySize {
		m.prior = m.prior[len(m.prior)-historySize:]
	}
	m.mu.Unlock()

	return module.Generated{
		Question: p.Question,
		Answers:  []module.Answer{{ID: answerID, Text: strconv.Itoa(n)}},
		Skills:   []string{p.Skill},
	}, nil
}

func (m *Module) ParseAnswer(raw string) (string, error) {
	n, err := normalizeAnswer(raw)
	if err != nil {
		return "", fmt.Errorf("%q is not a whole number: %w", raw, module.ErrBadAnswer)
	}
	return strconv.Itoa(n), nil
}

func (m *Module) Judge(_ context.Context, task *module.Task, userAnswer string) (module.Judgment, error) {
	got, err := normalizeAnswer(userAnswer)
	if err != nil {
		return module.Judgment{}, fmt.Errorf("%q: %w", userAnswer, module.ErrBadAnswer)
	}
	want, err := normalizeAnswer(task.FirstAnswer())
	if err != nil {
		return module.Judgment{}, fmt.Errorf("task %d answer: %w", task.ID, err)
	}
	return module.Binary(got == want, task.Skills), nil
}
