// Package arith implements the "Math" module: two-operand addition and
// subtraction with digit-level partial credit.
package arith

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

// Name is the stored module name.
const Name = "Math"

// Setting names.
const (
	SettingMax      = "Max value"
	SettingNegation = "Do negation"
)

// answerID is the fixed ID of the single answer of a math task.
const answerID = 1

var questionRe = regexp.MustCompile(`^\s*(-?\d+)\s*([+-])\s*(-?\d+)\s*=\s*$`)

// Module is the arithmetic module.
type Module struct {
	module.Base

	mu  sync.Mutex
	rng *rand.Rand
}

// New is the module.Factory for Math.
func New(id int) (module.Module, error) {
	return NewWithRand(id, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))), nil
}

// NewWithRand builds the module with a caller-provided random source.
func NewWithRand(id int, rng *rand.Rand) *Module {
	return &Module{
		Base: module.NewBase(id, module.Descriptor{
			Name:        Name,
			DisplayName: "Math Module",
			Version:     "v1.1.0",
			Settings: []module.Setting{
				{Name: SettingMax, Type: store.ConfigTypeInt, Default: 50},
				{Name: SettingNegation, Type: store.ConfigTypeBool, Default: true},
			},
		}),
		rng: rng,
	}
}

func (m *Module) Skills() map[string]string { return module.ArithmeticSkills }

func (m *Module) MakeTask(_ context.Context, cfg *module.Config) (module.Generated, error) {
	maxVal, err := cfg.Int(SettingMax)
	if err != nil {
		return module.Generated{}, err
	}
	if maxVal < 0 {
		return module.Generated{}, fmt.Errorf("%q must not be negative", SettingMax)
	}
	negate, err := cfg.Bool(SettingNegation)
	if err != nil {
		return module.Generated{}, err
	}

	m.mu.Lock()
	a := m.rng.IntN(maxVal + 1)
	b := m.rng.IntN(maxVal + 1)
	minus := m.rng.IntN(2) == 1
	m.mu.Unlock()

	op, result := byte('+'), a+b
	if negate && minus {
		op, result = '-', a-b
	}

	return module.Generated{
		Question: fmt.Sprintf("%d%c%d=", a, op, b),
		Answers:  []module.Answer{{ID: answerID, Text: strconv.Itoa(result)}},
		Skills:   InferSkills(a, b, op),
	}, nil
}

func (m *Module) ParseAnswer(raw string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%q is not a whole number: %w", raw, module.ErrBadAnswer)
	}
	return strconv.Itoa(n), nil
}

func (m *Module) Judge(_ context.Context, task *module.Task, userAnswer string) (module.Judgment, error) {
	user, err := strconv.Atoi(strings.TrimSpace(userAnswer))
	if err != nil {
		return module.Judgment{}, fmt.Errorf("%q is not a whole number: %w", userAnswer, module.ErrBadAnswer)
	}
	want, err := strconv.Atoi(task.FirstAnswer())
	if err != nil {
		return module.Judgment{}, fmt.Errorf("task %d answer: %w", task.ID, err)
	}

	a, op, b, err := ParseQuestion(task.Question)
	if err != nil {
		return module.Binary(user == want, task.Skills), nil
	}

	skills := task.Skills
	if len(skills) == 0 {
		skills = InferSkills(a, b, op)
	}

	j := module.Judgment{Correct: user == want, Parts: Analyze(a, b, op, user)}
	j.Grade = module.Grade(j, skills)
	j.Scores = make(map[string]float64, len(skills))
	for _, s := range skills {
		j.Scores[s] = j.Grade
	}
	return j, nil
}

// ParseQuestion splits "a+b=" or "a-b=" into its operands and operator.
func ParseQuestion(q string) (a int, op byte, b int, err error) {
	m := questionRe.FindStringSubmatch(q)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("not an arithmetic question: %q", q)
	}
	a, _ = strconv.Atoi(m[1])
	b, _ = strconv.Atoi(m[3])
	return a, m[2][0], b, nil
}
