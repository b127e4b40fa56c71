// Package percent implements the "Percent" module: estimating a percentage
// on a 0..100 slider, graded on the logit scale.
package percent

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

// Name is the stored module name.
const Name = "Percent"

// Setting names.
const (
	SettingMin = "Min value"
	SettingMax = "Max value"
)

// DefaultAnswer is where the answer widget starts.
const DefaultAnswer = 50

// Module is the percentage estimation module.
type Module struct {
	module.Base

	mu  sync.Mutex
	rng *rand.Rand
}

// New is the module.Factory for Percent.
func New(id int) (module.Module, error) {
	return NewWithRand(id, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))), nil
}

// NewWithRand builds the module with a caller-provided random source.
func NewWithRand(id int, rng *rand.Rand) *Module {
	return &Module{
		Base: module.NewBase(id, module.Descriptor{
			Name:        Name,
			DisplayName: "Percent Module",
			Version:     "v1.0.0",
			Settings: []module.Setting{
				{Name: SettingMin, Type: store.ConfigTypeInt, Default: 0},
				{Name: SettingMax, Type: store.ConfigTypeInt, Default: 100},
			},
		}),
		rng: rng,
	}
}

func (m *Module) Skills() map[string]string { return map[string]string{} }

func (m *Module) DefaultAnswer() string { return strconv.Itoa(DefaultAnswer) }

func (m *Module) MakeTask(_ context.Context, cfg *module.Config) (module.Generated, error) {
	lo, err := cfg.Int(SettingMin)
	if err != nil {
		return module.Generated{}, err
	}
	hi, err := cfg.Int(SettingMax)
	if err != nil {
		return module.Generated{}, err
	}
	if lo < 0 || hi > 100 || lo > hi {
		return module.Generated{}, fmt.Errorf("percent range [%d, %d] is not within [0, 100]", lo, hi)
	}

	m.mu.Lock()
	v := lo + m.rng.IntN(hi-lo+1)
	m.mu.Unlock()

	return module.Generated{
		Question: fmt.Sprintf("%d%%", v),
		Answers:  []module.Answer{{ID: 0, Text: strconv.Itoa(v)}},
	}, nil
}

func (m *Module) ParseAnswer(raw string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 || n > 100 {
		return "", fmt.Errorf("%q is not a percentage between 0 and 100: %w", raw, module.ErrBadAnswer)
	}
	return strconv.Itoa(n), nil
}

func (m *Module) Judge(_ context.Context, task *module.Task, userAnswer string) (module.Judgment, error) {
	u, err := strconv.Atoi(strings.TrimSpace(userAnswer))
	if err != nil {
		return module.Judgment{}, fmt.Errorf("%q: %w", userAnswer, module.ErrBadAnswer)
	}
	v, err := strconv.Atoi(task.FirstAnswer())
	if err != nil {
		return module.Judgment{}, fmt.Errorf("task %d answer: %w", task.ID, err)
	}

	score := Score(u, v)
	return module.Judgment{Correct: score > 0 || u == v, Grade: score}, nil
}

// Score rates a guess u against the true percentage v. Guesses within 0.1
// logits score 1, the score falls linearly to 0 at 0.4 logits. The true
// value is squeezed slightly away from 0 and 100 so its logit stays finite.
// Guesses of exactly 0 or 100 have an infinite logit and score 0.
func Score(u, v int) float64 {
	x := float64(u) / 100
	l1 := math.Log(x / (1 - x))

	y := float64(v)/100/0.999 + 0.0005
	l2 := math.Log(y / (1 - y))

	score := 1 - math.Min(math.Max(math.Abs(l2-l1)-0.1, 0)/0.3, 1)
	if math.IsNaN(score) {
		return 0
	}
	return score
}
