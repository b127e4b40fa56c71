// Package bootstrap registers the modules with the database: it records
// module versions, seeds each module's Default config and skill set, and
// reports where stored values disagree with the code.
package bootstrap

import (
	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/config"
	"github.com/abhisek/trainer/internal/llm"
	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/module/arith"
	"github.com/abhisek/trainer/internal/module/percent"
	"github.com/abhisek/trainer/internal/module/script"
	"github.com/abhisek/trainer/internal/module/wordproblem"
)

// Registry returns the built-in modules. WordProblem is only included when
// provider is non-nil.
func Registry(cfg *config.Config, provider llm.Provider, log *zap.Logger) *module.Registry {
	r := module.NewRegistry()
	// Names are distinct, so Register cannot fail here.
	_ = r.Register(arith.Name, arith.New)
	_ = r.Register(percent.Name, percent.New)
	_ = r.Register(script.Name, script.Factory(script.Options{
		Dir:     cfg.Scripts.Dir,
		Timeout: cfg.Scripts.Timeout,
		Log:     log.Named("script"),
	}))
	if provider != nil {
		_ = r.Register(wordproblem.Name, wordproblem.Factory(provider))
	}
	return r
}
