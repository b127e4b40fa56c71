package wordproblem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/trainer/internal/llm"
	"github.com/abhisek/trainer/internal/module"
)

// Problem is a generated word problem.
type Problem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Skill    string `json:"skill"`
}

// Input is the context of one generation request.
type Input struct {
	Topic    string
	MaxValue int
	// Prior holds recently asked questions, oldest first.
	Prior []string
}

// GeneratorConfig controls generation.
type GeneratorConfig struct {
	// Validators run in order. The first failure stops the chain.
	Validators  []Validator
	MaxTokens   int
	Temperature float64
	// MaxPrior caps how many prior questions go into the prompt.
	MaxPrior int
	// Attempts is how often a retryable validation failure is regenerated.
	Attempts int
}

// DefaultGeneratorConfig returns the standard validator chain and limits.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Validators: []Validator{
			&StructuralValidator{},
			&BoundValidator{},
			&MathCheckValidator{},
		},
		MaxTokens:   400,
		Temperature: 0.8,
		MaxPrior:    8,
		Attempts:    3,
	}
}

// Generator asks an LLM for word problems.
type Generator struct {
	provider llm.Provider
	config   GeneratorConfig
}

// NewGenerator returns a Generator backed by provider.
func NewGenerator(provider llm.Provider, cfg GeneratorConfig) *Generator {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Generator{provider: provider, config: cfg}
}

// Generate produces one validated problem. Problems failing a retryable
// check are regenerated up to the configured number of attempts.
func (g *Generator) Generate(ctx context.Context, in Input) (*Problem, error) {
	ctx = llm.WithPurpose(ctx, "word-problem")

	var lastErr error
	for range g.config.Attempts {
		p, err := g.generateOnce(ctx, in)
		if err == nil {
			return p, nil
		}
		lastErr = err

		var verr *ValidationError
		if !errors.As(err, &verr) || !verr.Retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (g *Generator) generateOnce(ctx context.Context, in Input) (*Problem, error) {
	req := llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildUserMessage(in, g.config.MaxPrior)}},
		Schema:      ProblemSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	var p Problem
	if err := json.Unmarshal(resp.Content, &p); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	p.Question = strings.TrimSpace(p.Question)
	p.Answer = strings.TrimSpace(p.Answer)

	for _, v := range g.config.Validators {
		if verr := v.Validate(&p, in); verr != nil {
			return nil, verr
		}
	}
	return &p, nil
}

// ProblemSchema is the JSON schema of a model reply.
var ProblemSchema = &llm.Schema{
	Name:        "word-problem",
	Description: "A short arithmetic word problem with its integer answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The word problem shown to the learner, in plain ASCII text",
			},
			"answer": map[string]any{
				"type":        "string",
				"pattern":     `^-?[0-9]+$`,
				"description": "The integer answer, digits only",
			},
			"skill": map[string]any{
				"type":        "string",
				"enum":        skillEnum(),
				"description": "The arithmetic skill the problem exercises",
			},
		},
		"required":             []any{"question", "answer", "skill"},
		"additionalProperties": false,
	},
}

func skillEnum() []any {
	names := module.SkillNames(module.ArithmeticSkills)
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

const systemPrompt = `You write short arithmetic word problems for a flashcard trainer.

Rules:
- Write one problem about the given topic that needs a single addition or subtraction.
- Use plain ASCII text. No LaTeX, no Unicode symbols.
- The answer is a whole number no larger than the given maximum. Give digits only.
- Pick the skill that best describes the arithmetic involved.
- Do not repeat any problem from the "already asked" list.`

func buildUserMessage(in Input, maxPrior int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", in.Topic)
	fmt.Fprintf(&b, "Maximum answer: %d\n", in.MaxValue)
	b.WriteString("\nAlready asked:\n")
	b.WriteString(buildDedup(in.Prior, maxPrior))
	return b.String()
}

// buildDedup lists the most recent prior questions, or "None".
func buildDedup(prior []string, max int) string {
	if len(prior) == 0 {
		return "None"
	}
	if max > 0 && len(prior) > max {
		prior = prior[len(prior)-max:]
	}
	var b strings.Builder
	for i, q := range prior {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}
