package wordproblem

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Validator checks a generated problem. Implementations are stateless.
type Validator interface {
	Name() string
	Validate(p *Problem, in Input) *ValidationError
}

// ValidationError describes why a problem was rejected.
type ValidationError struct {
	Validator string
	Message   string
	// Retryable is set when regenerating is likely to help.
	Retryable bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// StructuralValidator checks the fields are present and within limits.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(p *Problem, _ Input) *ValidationError {
	switch {
	case p.Question == "":
		return &ValidationError{Validator: v.Name(), Message: "question is empty", Retryable: true}
	case len(p.Question) > 500:
		return &ValidationError{Validator: v.Name(), Message: "question exceeds 500 characters", Retryable: true}
	case p.Skill == "":
		return &ValidationError{Validator: v.Name(), Message: "skill is empty", Retryable: true}
	}
	return nil
}

// BoundValidator checks the answer is an integer no larger than the
// configured maximum.
type BoundValidator struct{}

func (v *BoundValidator) Name() string { return "bound" }

func (v *BoundValidator) Validate(p *Problem, in Input) *ValidationError {
	n, err := normalizeAnswer(p.Answer)
	if err != nil {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("answer %q is not an integer", p.Answer), Retryable: true}
	}
	if n > in.MaxValue {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("answer %d exceeds %d", n, in.MaxValue), Retryable: true}
	}
	return nil
}

// MathCheckValidator recomputes the answer when the question spells out an
// explicit "a + b" or "a - b". Other questions pass.
type MathCheckValidator struct{}

func (v *MathCheckValidator) Name() string { return "math-check" }

var exprRe = regexp.MustCompile(`(?:^|[^\d])(-?\d+)\s*([+-])\s*(-?\d+)(?:[^\d]|$)`)

func (v *MathCheckValidator) Validate(p *Problem, _ Input) *ValidationError {
	computed, ok := computeAnswer(p.Question)
	if !ok {
		return nil
	}
	claimed, err := normalizeAnswer(p.Answer)
	if err != nil || claimed != computed {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("computed %d but model claimed %q", computed, p.Answer),
			Retryable: true,
		}
	}
	return nil
}

func computeAnswer(text string) (int, bool) {
	m := exprRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	a, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	b, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	if m[2] == "-" {
		return a - b, true
	}
	return a + b, true
}

// normalizeAnswer parses an integer answer, ignoring surrounding space and
// leading zeros.
func normalizeAnswer(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	return n, nil
}
