package session

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

// scoreAlpha is the weight of a new grade in a skill's running score.
const scoreAlpha = 0.25

// ensureSkillSet returns the session's skill set for moduleID, cloning the
// module defaults when the session has none yet.
func ensureSkillSet(ctx context.Context, st *store.Store, moduleID, sessionID int) (*store.SkillSet, error) {
	repo := st.Skills()
	ss, err := repo.GetSkillSet(ctx, moduleID, sessionID)
	if err != nil || ss != nil {
		return ss, err
	}

	ss = &store.SkillSet{ModuleID: moduleID, SessionID: sessionID}
	if err := repo.SaveSkillSet(ctx, ss); err != nil {
		return nil, fmt.Errorf("create skill set: %w", err)
	}

	def, err := repo.GetSkillSet(ctx, moduleID, store.DefaultSessionID)
	if err != nil || def == nil {
		return ss, err
	}
	skills, err := repo.ListSkills(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	for _, sk := range skills {
		sk.ID = 0
		sk.SkillSetID = ss.ID
		if err := repo.SaveSkill(ctx, &sk); err != nil {
			return nil, fmt.Errorf("clone skill %q: %w", sk.Name, err)
		}
	}
	return ss, nil
}

// updateSkillScores folds the per-skill grades of j into the session's
// running skill scores.
func updateSkillScores(ctx context.Context, st *store.Store, mod module.Module, sessionID int, j module.Judgment) error {
	if len(j.Scores) == 0 {
		return nil
	}
	ss, err := ensureSkillSet(ctx, st, mod.ID(), sessionID)
	if err != nil {
		return err
	}

	repo := st.Skills()
	for _, name := range slices.Sorted(maps.Keys(j.Scores)) {
		grade := j.Scores[name]
		sk, err := repo.GetSkill(ctx, ss.ID, name)
		if err != nil {
			return err
		}
		if sk == nil {
			sk = &store.Skill{SkillSetID: ss.ID, Name: name, Description: mod.Skills()[name], Score: grade, Visible: true}
			if err := repo.SaveSkill(ctx, sk); err != nil {
				return err
			}
			continue
		}
		sk.Score = (1-scoreAlpha)*sk.Score + scoreAlpha*grade
		if err := repo.UpdateSkill(ctx, sk); err != nil {
			return err
		}
	}
	return nil
}
