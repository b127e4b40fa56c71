// Package script implements "ScriptMath", a module whose task generation and
// checking are Go scripts run by an embedded interpreter.
package script

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/abhisek/trainer/internal/module"
)

// ErrTimeout is returned when a script call runs past its deadline.
var ErrTimeout = errors.New("script timed out")

// allowedImports are the packages a script may import. Anything touching
// the filesystem, network or processes is rejected.
var allowedImports = map[string]bool{
	"errors":    true,
	"fmt":       true,
	"math":      true,
	"math/rand": true,
	"regexp":    true,
	"sort":      true,
	"strconv":   true,
	"strings":   true,
	"unicode":   true,
}

type (
	makeTaskFunc    = func(map[string]string) (string, string, error)
	checkAnswerFunc = func(string, string, string) bool
	skillsFunc      = func() map[string]string
	taskSkillsFunc  = func(string, string) []string
)

// Program is a compiled script. Calls into one Program are serialized.
type Program struct {
	Name string

	makeTask    makeTaskFunc
	checkAnswer checkAnswerFunc
	taskSkills  taskSkillsFunc
	skills      map[string]string
	timeout     time.Duration

	// sem holds a token while a call is running.
	sem chan struct{}
}

// Compile checks imports, interprets src and resolves its entry points.
// MakeTask and CheckAnswer are required, Skills and TaskSkills are optional.
func Compile(name, src string, timeout time.Duration) (*Program, error) {
	if err := checkImports(src); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(src); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", name, err)
	}

	p := &Program{Name: name, timeout: timeout, sem: make(chan struct{}, 1)}

	v, err := i.Eval("main.MakeTask")
	if err != nil {
		return nil, fmt.Errorf("%s: MakeTask not defined: %w", name, err)
	}
	var ok bool
	if p.makeTask, ok = v.Interface().(makeTaskFunc); !ok {
		return nil, fmt.Errorf("%s: MakeTask must be func(map[string]string) (string, string, error)", name)
	}

	v, err = i.Eval("main.CheckAnswer")
	if err != nil {
		return nil, fmt.Errorf("%s: CheckAnswer not defined: %w", name, err)
	}
	if p.checkAnswer, ok = v.Interface().(checkAnswerFunc); !ok {
		return nil, fmt.Errorf("%s: CheckAnswer must be func(string, string, string) bool", name)
	}

	if v, err := i.Eval("main.Skills"); err == nil {
		fn, ok := v.Interface().(skillsFunc)
		if !ok {
			return nil, fmt.Errorf("%s: Skills must be func() map[string]string", name)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := p.run(ctx, func() { p.skills = fn() }); err != nil {
			return nil, fmt.Errorf("%s: Skills: %w", name, err)
		}
	}
	if p.skills == nil {
		p.skills = map[string]string{}
	}

	if v, err := i.Eval("main.TaskSkills"); err == nil {
		if p.taskSkills, ok = v.Interface().(taskSkillsFunc); !ok {
			return nil, fmt.Errorf("%s: TaskSkills must be func(string, string) []string", name)
		}
	}
	return p, nil
}

// MakeTask runs the script's MakeTask.
func (p *Program) MakeTask(ctx context.Context, settings map[string]string) (question, answer string, err error) {
	var callErr error
	err = p.call(ctx, func() { question, answer, callErr = p.makeTask(settings) })
	if err != nil {
		return "", "", err
	}
	if callErr != nil {
		return "", "", fmt.Errorf("%s: MakeTask: %w", p.Name, callErr)
	}
	return question, answer, nil
}

// CheckAnswer runs the script's CheckAnswer.
func (p *Program) CheckAnswer(ctx context.Context, question, answer, user string) (bool, error) {
	var ok bool
	if err := p.call(ctx, func() { ok = p.checkAnswer(question, answer, user) }); err != nil {
		return false, err
	}
	return ok, nil
}

// TaskSkills returns the skills a generated task exercises, sorted. Without
// a TaskSkills function every declared skill is returned. Names the script
// did not declare in Skills are dropped.
func (p *Program) TaskSkills(ctx context.Context, question, answer string) ([]string, error) {
	if p.taskSkills == nil {
		return module.SkillNames(p.skills), nil
	}
	var names []string
	if err := p.call(ctx, func() { names = p.taskSkills(question, answer) }); err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if _, ok := p.skills[n]; ok && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Skills returns the skills declared by the script.
func (p *Program) Skills() map[string]string { return p.skills }

func (p *Program) call(ctx context.Context, fn func()) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.run(ctx, fn)
}

// run executes fn on its own goroutine and gives up when ctx ends. A script
// that never returns keeps the token, so later calls time out instead of
// piling up.
func (p *Program) run(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%s busy: %w", p.Name, ErrTimeout)
	}

	var panicked any
	done := make(chan struct{})
	go func() {
		defer func() {
			panicked = recover()
			<-p.sem
			close(done)
		}()
		fn()
	}()

	select {
	case <-done:
		if panicked != nil {
			return fmt.Errorf("%s panicked: %v", p.Name, panicked)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", p.Name, ErrTimeout)
	}
}

func checkImports(src string) error {
	f, err := parser.ParseFile(token.NewFileSet(), "", src, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parse script: %w", err)
	}
	if f.Name.Name != "main" {
		return fmt.Errorf("script must be package main, not %s", f.Name.Name)
	}

	var forbidden []string
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("bad import %s: %w", imp.Path.Value, err)
		}
		if !allowedImports[path] {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) > 0 {
		sort.Strings(forbidden)
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}
