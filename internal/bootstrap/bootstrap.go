package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

// ConflictKind tells config conflicts from skill conflicts.
type ConflictKind string

const (
	ConflictConfig ConflictKind = "config"
	ConflictSkill  ConflictKind = "skill"
)

// Conflict is a stored value that differs from what the code declares. The
// stored value stays in effect until Resolve is called with useNew.
type Conflict struct {
	Kind     ConflictKind
	ModuleID int
	Module   string
	// ParentID is the Default config ID for config conflicts and the default
	// skill set ID for skill conflicts.
	ParentID int
	Name     string
	OldType  string
	NewType  string
	Old      string
	New      string
}

func (c Conflict) String() string {
	if c.Kind == ConflictConfig && c.OldType != c.NewType {
		return fmt.Sprintf("%s %s %q: stored %s %q, code %s %q", c.Module, c.Kind, c.Name, c.OldType, c.Old, c.NewType, c.New)
	}
	return fmt.Sprintf("%s %s %q: stored %q, code %q", c.Module, c.Kind, c.Name, c.Old, c.New)
}

// Upgrade records a module whose stored version was older than the code.
type Upgrade struct {
	Module string
	From   string
	To     string
}

// Result is the outcome of Run.
type Result struct {
	Modules   *module.Loaded
	Conflicts []Conflict
	Upgrades  []Upgrade
	// Skipped lists stored modules the registry does not know.
	Skipped []string
}

// Run instantiates every registered module against its stored row, creating
// rows for new modules, and seeds their defaults.
func Run(ctx context.Context, st *store.Store, reg *module.Registry, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("bootstrap")
	res := &Result{Modules: module.NewLoaded()}

	stored, err := st.Modules().List(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(stored))
	for _, row := range stored {
		known[row.Name] = true
		if !reg.Has(row.Name) {
			log.Warn("stored module is not available", zap.String("module", row.Name))
			res.Skipped = append(res.Skipped, row.Name)
			continue
		}
		m, err := reg.Create(row.Name, row.ID)
		if err != nil {
			return nil, err
		}
		if err := upgrade(ctx, st, row, m, res, log); err != nil {
			return nil, err
		}
		res.Modules.Add(m)
	}

	for _, name := range reg.Names() {
		if known[name] {
			continue
		}
		row := &store.Module{Name: name}
		if err := st.Modules().Save(ctx, row); err != nil {
			return nil, err
		}
		m, err := reg.Create(name, row.ID)
		if err != nil {
			return nil, err
		}
		if err := st.Modules().UpdateVersion(ctx, row.ID, m.Descriptor().Version); err != nil {
			return nil, err
		}
		log.Info("module registered", zap.String("module", name), zap.String("version", m.Descriptor().Version))
		res.Modules.Add(m)
	}

	for _, m := range res.Modules.All() {
		conflicts, err := seedConfig(ctx, st, m, log)
		if err != nil {
			return nil, fmt.Errorf("seed %s config: %w", m.Descriptor().Name, err)
		}
		res.Conflicts = append(res.Conflicts, conflicts...)

		conflicts, err = seedSkills(ctx, st, m)
		if err != nil {
			return nil, fmt.Errorf("seed %s skills: %w", m.Descriptor().Name, err)
		}
		res.Conflicts = append(res.Conflicts, conflicts...)
	}

	for _, c := range res.Conflicts {
		log.Warn("stored value differs from default", zap.String("conflict", c.String()))
	}
	return res, nil
}

func upgrade(ctx context.Context, st *store.Store, row store.Module, m module.Module, res *Result, log *zap.Logger) error {
	code := m.Descriptor().Version
	switch {
	case row.Version == code:
		return nil
	case semver.IsValid(row.Version) && semver.Compare(row.Version, code) > 0:
		log.Warn("stored module is newer than this build",
			zap.String("module", row.Name), zap.String("stored", row.Version), zap.String("code", code))
		return nil
	}
	if err := st.Modules().UpdateVersion(ctx, row.ID, code); err != nil {
		return err
	}
	res.Upgrades = append(res.Upgrades, Upgrade{Module: row.Name, From: row.Version, To: code})
	log.Info("module upgraded", zap.String("module", row.Name), zap.String("from", row.Version), zap.String("to", code))
	return nil
}

// seedConfig makes sure the module's Default config holds every declared
// setting. Settings already stored keep their value.
func seedConfig(ctx context.Context, st *store.Store, m module.Module, log *zap.Logger) ([]Conflict, error) {
	repo := st.Configs()
	want := module.DefaultConfig(m)

	cfg, err := repo.GetByName(ctx, m.ID(), module.DefaultConfigName)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &store.Config{ModuleID: m.ID(), Name: module.DefaultConfigName}
		if err := repo.Save(ctx, cfg); err != nil {
			return nil, err
		}
		for _, d := range want.Data {
			row := d.ToStore()
			row.ConfigID = cfg.ID
			if err := repo.SaveData(ctx, &row); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	var (
		conflicts []Conflict
		added     []string
	)
	for _, d := range want.Data {
		row := d.ToStore()
		row.ConfigID = cfg.ID

		old, err := repo.GetData(ctx, cfg.ID, row.Name)
		if err != nil {
			return nil, err
		}
		if old == nil {
			if err := repo.SaveData(ctx, &row); err != nil {
				return nil, err
			}
			added = append(added, row.Name)
			continue
		}
		if old.Type != row.Type || old.Value != row.Value {
			conflicts = append(conflicts, Conflict{
				Kind:     ConflictConfig,
				ModuleID: m.ID(),
				Module:   m.Descriptor().Name,
				ParentID: cfg.ID,
				Name:     row.Name,
				OldType:  old.Type,
				NewType:  row.Type,
				Old:      old.Value,
				New:      row.Value,
			})
		}
	}
	if len(added) > 0 || len(conflicts) > 0 {
		log.Warn("default config differs from code, old config is prioritized",
			zap.String("module", m.Descriptor().Name), zap.Strings("added", added))
	}
	return conflicts, nil
}

// seedSkills makes sure the module's default skill set lists every skill.
func seedSkills(ctx context.Context, st *store.Store, m module.Module) ([]Conflict, error) {
	repo := st.Skills()
	ss, err := repo.GetSkillSet(ctx, m.ID(), store.DefaultSessionID)
	if err != nil {
		return nil, err
	}
	if ss == nil {
		ss = &store.SkillSet{ModuleID: m.ID(), SessionID: store.DefaultSessionID}
		if err := repo.SaveSkillSet(ctx, ss); err != nil {
			return nil, err
		}
	}

	skills := m.Skills()
	var conflicts []Conflict
	for _, name := range module.SkillNames(skills) {
		desc := skills[name]
		sk, err := repo.GetSkill(ctx, ss.ID, name)
		if err != nil {
			return nil, err
		}
		if sk == nil {
			if err := repo.SaveSkill(ctx, &store.Skill{SkillSetID: ss.ID, Name: name, Description: desc, Visible: true}); err != nil {
				return nil, err
			}
			continue
		}
		if sk.Description != desc {
			conflicts = append(conflicts, Conflict{
				Kind:     ConflictSkill,
				ModuleID: m.ID(),
				Module:   m.Descriptor().Name,
				ParentID: ss.ID,
				Name:     name,
				Old:      sk.Description,
				New:      desc,
			})
		}
	}
	return conflicts, nil
}

// Resolve settles a conflict. With useNew the code's value replaces the
// stored one, otherwise nothing changes.
func Resolve(ctx context.Context, st *store.Store, c Conflict, useNew bool) error {
	if !useNew {
		return nil
	}
	switch c.Kind {
	case ConflictConfig:
		d, err := st.Configs().GetData(ctx, c.ParentID, c.Name)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("config %d setting %q: %w", c.ParentID, c.Name, store.ErrNotFound)
		}
		d.Type, d.Value = c.NewType, c.New
		return st.Configs().UpdateData(ctx, d)
	case ConflictSkill:
		sk, err := st.Skills().GetSkill(ctx, c.ParentID, c.Name)
		if err != nil {
			return err
		}
		if sk == nil {
			return fmt.Errorf("skill set %d skill %q: %w", c.ParentID, c.Name, store.ErrNotFound)
		}
		sk.Description = c.New
		return st.Skills().UpdateSkill(ctx, sk)
	}
	return fmt.Errorf("unknown conflict kind %q", c.Kind)
}
