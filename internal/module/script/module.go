package script

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

// Name is the stored module name.
const Name = "ScriptMath"

// FileName is the script file looked up in the scripts directory.
const FileName = "scriptmath.go"

// Setting names.
const (
	SettingMin = "Min value"
	SettingMax = "Max value"
)

const answerID = 1

//go:embed scripts/scriptmath.go.txt
var defaultScript string

// Options configures the scripted module.
type Options struct {
	// Dir holds an optional override script. Empty means the built-in script.
	Dir     string
	Timeout time.Duration
	Log     *zap.Logger
}

// Module runs task generation and checking through a script. The script can
// be swapped while the module is in use.
type Module struct {
	module.Base

	opts Options
	prog atomic.Pointer[Program]
}

// Factory returns a module.Factory that builds the module with opts.
func Factory(opts Options) module.Factory {
	return func(id int) (module.Module, error) {
		return New(id, opts)
	}
}

// New builds the module, loading the override script from opts.Dir when one
// exists.
func New(id int, opts Options) (*Module, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	m := &Module{
		Base: module.NewBase(id, module.Descriptor{
			Name:        Name,
			DisplayName: "Scripted Math Module",
			Version:     "v1.0.0",
			Settings: []module.Setting{
				{Name: SettingMin, Type: store.ConfigTypeInt, Default: 0},
				{Name: SettingMax, Type: store.ConfigTypeInt, Default: 20},
			},
		}),
		opts: opts,
	}

	p, err := m.load()
	if err != nil {
		return nil, err
	}
	m.prog.Store(p)
	return m, nil
}

// Path is the override script location, or "" when no directory is set.
func (m *Module) Path() string {
	if m.opts.Dir == "" {
		return ""
	}
	return filepath.Join(m.opts.Dir, FileName)
}

// Program returns the script currently in use.
func (m *Module) Program() *Program { return m.prog.Load() }

func (m *Module) load() (*Program, error) {
	path := m.Path()
	if path == "" {
		return Compile("builtin", defaultScript, m.opts.Timeout)
	}
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Compile("builtin", defaultScript, m.opts.Timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Compile(filepath.Base(path), string(src), m.opts.Timeout)
}

// Reload recompiles the script. A script that fails to compile is reported
// and the previous one stays in use. A deleted override falls back to the
// built-in script.
func (m *Module) Reload() error {
	p, err := m.load()
	if err != nil {
		m.opts.Log.Warn("script reload failed, keeping previous version",
			zap.String("path", m.Path()), zap.Error(err))
		return err
	}
	m.prog.Store(p)
	m.opts.Log.Info("script reloaded", zap.String("script", p.Name))
	return nil
}

func (m *Module) Skills() map[string]string { return m.Program().Skills() }

func (m *Module) MakeTask(ctx context.Context, cfg *module.Config) (module.Generated, error) {
	p := m.Program()
	q, a, err := p.MakeTask(ctx, cfg.Strings())
	if err != nil {
		return module.Generated{}, err
	}
	skills, err := p.TaskSkills(ctx, q, a)
	if err != nil {
		return module.Generated{}, err
	}
	return module.Generated{
		Question: q,
		Answers:  []module.Answer{{ID: answerID, Text: a}},
		Skills:   skills,
	}, nil
}

func (m *Module) ParseAnswer(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty answer: %w", module.ErrBadAnswer)
	}
	return s, nil
}

func (m *Module) Judge(ctx context.Context, task *module.Task, userAnswer string) (module.Judgment, error) {
	ok, err := m.Program().CheckAnswer(ctx, task.Question, task.FirstAnswer(), userAnswer)
	if err != nil {
		return module.Judgment{}, err
	}
	return module.Binary(ok, task.Skills), nil
}
