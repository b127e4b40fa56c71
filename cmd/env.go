package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/trainer/internal/bootstrap"
	"github.com/abhisek/trainer/internal/config"
	"github.com/abhisek/trainer/internal/llm"
	"github.com/abhisek/trainer/internal/logger"
	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/module/script"
	"github.com/abhisek/trainer/internal/store"
)

// env is everything a command needs once the database is bootstrapped.
type env struct {
	cfg      *config.Config
	log      *zap.Logger
	st       *store.Store
	mods     *module.Loaded
	result   *bootstrap.Result
	watchers []*script.Watcher
}

// setup loads configuration, opens the store and loads the modules. When
// logFile is set, logs go to a file beside the database instead of stderr.
func setup(cmd *cobra.Command, logFile bool) (*env, error) {
	ctx := cmd.Context()

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if drv, _ := cmd.Flags().GetString("driver"); drv != "" {
		cfg.DB.Driver = drv
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DB.Path = p
		cfg.DB.DSN = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn, dbPath, err := resolveDSN(cfg)
	if err != nil {
		return nil, err
	}

	var outputs []string
	if logFile {
		dir := filepath.Dir(dbPath)
		if dbPath == "" {
			def, err := store.DefaultDBPath()
			if err != nil {
				return nil, err
			}
			dir = filepath.Dir(def)
		}
		outputs = []string{filepath.Join(dir, "trainer.log")}
	}
	log, err := logger.New(cfg, outputs...)
	if err != nil {
		return nil, err
	}

	provider, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Driver(cfg.DB.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	res, err := bootstrap.Run(ctx, st, bootstrap.Registry(cfg, provider, log), log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("bootstrap modules: %w", err)
	}

	return &env{cfg: cfg, log: log, st: st, mods: res.Modules, result: res}, nil
}

// resolveDSN returns the connection string and, for sqlite, the file path.
// Priority: database.dsn, then --db or database.path, then TRAINER_DB, then
// the XDG default.
func resolveDSN(cfg *config.Config) (dsn, path string, err error) {
	if cfg.DB.DSN != "" {
		return cfg.DB.DSN, "", nil
	}
	path = cfg.DB.Path
	if path != "" {
		if err := store.EnsureDir(path); err != nil {
			return "", "", err
		}
	} else if path, err = store.DefaultDBPath(); err != nil {
		return "", "", fmt.Errorf("resolve DB path: %w", err)
	}
	return store.SQLiteDSN(path), path, nil
}

// watchScripts starts hot reload for the scripted module when a script
// directory is configured.
func (e *env) watchScripts(ctx context.Context) error {
	if !e.cfg.Scripts.Watch || e.cfg.Scripts.Dir == "" {
		return nil
	}
	mod, ok := e.mods.ByName(script.Name).(*script.Module)
	if !ok {
		return nil
	}
	w, err := script.NewWatcher(mod, e.log)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	e.watchers = append(e.watchers, w)
	return nil
}

func (e *env) Close() {
	for _, w := range e.watchers {
		w.Stop()
	}
	if err := e.st.Close(); err != nil {
		e.log.Warn("closing store", zap.Error(err))
	}
	_ = e.log.Sync()
}

// argID parses a positional ID argument.
func argID(args []string, i int, what string) (int, error) {
	var id int
	if _, err := fmt.Sscan(args[i], &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, args[i])
	}
	return id, nil
}
