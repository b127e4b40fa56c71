package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type skillRepo struct {
	s *Store
}

var (
	skillSetSelect = []string{colSkillSetID, colModuleID, colSessionID}
	skillSelect    = []string{colSkillID, colSkillSetID, colSkillName, colDescription, colScore, colVisibility}
)

func (r *skillRepo) SaveSkillSet(ctx context.Context, ss *SkillSet) error {
	return r.s.insert(ctx, tableSkillSets, colSkillSetID, &ss.ID,
		[]string{colModuleID, colSessionID},
		[]any{ss.ModuleID, ss.SessionID},
	)
}

func (r *skillRepo) GetSkillSet(ctx context.Context, moduleID, sessionID int) (*SkillSet, error) {
	b := r.s.builder()
	query, args := b.Select(skillSetSelect...).
		From(b.Table(tableSkillSets)).
		Where(entsql.And(
			entsql.EQ(colModuleID, moduleID),
			entsql.EQ(colSessionID, sessionID),
		)).
		Query()

	var ss SkillSet
	err := r.s.db.QueryRowContext(ctx, query, args...).Scan(&ss.ID, &ss.ModuleID, &ss.SessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get skill set: %w", err)
	}
	return &ss, nil
}

func (r *skillRepo) ListSkillSets(ctx context.Context, sessionID int) ([]SkillSet, error) {
	b := r.s.builder()
	query, args := b.Select(skillSetSelect...).
		From(b.Table(tableSkillSets)).
		Where(entsql.EQ(colSessionID, sessionID)).
		OrderBy(colSkillSetID).
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list skill sets: %w", err)
	}
	defer rows.Close()

	var out []SkillSet
	for rows.Next() {
		var ss SkillSet
		if err := rows.Scan(&ss.ID, &ss.ModuleID, &ss.SessionID); err != nil {
			return nil, fmt.Errorf("scan skill set: %w", err)
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (r *skillRepo) SaveSkill(ctx context.Context, sk *Skill) error {
	return r.s.insert(ctx, tableSkills, colSkillID, &sk.ID,
		[]string{colSkillSetID, colSkillName, colDescription, colScore, colVisibility},
		[]any{sk.SkillSetID, sk.Name, sk.Description, sk.Score, sk.Visible},
	)
}

func (r *skillRepo) GetSkill(ctx context.Context, skillSetID int, name string) (*Skill, error) {
	b := r.s.builder()
	query, args := b.Select(skillSelect...).
		From(b.Table(tableSkills)).
		Where(entsql.And(
			entsql.EQ(colSkillSetID, skillSetID),
			entsql.EQ(colSkillName, name),
		)).
		Query()

	var sk Skill
	err := r.s.db.QueryRowContext(ctx, query, args...).
		Scan(&sk.ID, &sk.SkillSetID, &sk.Name, &sk.Description, &sk.Score, &sk.Visible)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get skill %q: %w", name, err)
	}
	return &sk, nil
}

func (r *skillRepo) ListSkills(ctx context.Context, skillSetID int) ([]Skill, error) {
	b := r.s.builder()
	query, args := b.Select(skillSelect...).
		From(b.Table(tableSkills)).
		Where(entsql.EQ(colSkillSetID, skillSetID)).
		OrderBy(colSkillID).
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.ID, &sk.SkillSetID, &sk.Name, &sk.Description, &sk.Score, &sk.Visible); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

func (r *skillRepo) UpdateSkill(ctx context.Context, sk *Skill) error {
	query, args := r.s.builder().Update(tableSkills).
		Set(colSkillName, sk.Name).
		Set(colDescription, sk.Description).
		Set(colScore, sk.Score).
		Set(colVisibility, sk.Visible).
		Where(entsql.EQ(colSkillID, sk.ID)).
		Query()
	if err := exec(ctx, r.s.db, query, args); err != nil {
		return fmt.Errorf("update skill %d: %w", sk.ID, err)
	}
	return nil
}

func (r *skillRepo) RemoveSkill(ctx context.Context, id int) error {
	query, args := r.s.builder().Delete(tableSkills).
		Where(entsql.EQ(colSkillID, id)).
		Query()
	if err := exec(ctx, r.s.db, query, args); err != nil {
		return fmt.Errorf("remove skill %d: %w", id, err)
	}
	return nil
}

// removeSessionSkills deletes every skill set of a session and their skills.
func (s *Store) removeSessionSkills(ctx context.Context, q querier, sessionID int) error {
	b := s.builder()
	query, args := b.Select(colSkillSetID).
		From(b.Table(tableSkillSets)).
		Where(entsql.EQ(colSessionID, sessionID)).
		Query()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list session skill sets: %w", err)
	}
	var ids []any
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	query, args = b.Delete(tableSkills).Where(entsql.In(colSkillSetID, ids...)).Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete skills: %w", err)
	}
	query, args = b.Delete(tableSkillSets).Where(entsql.EQ(colSessionID, sessionID)).Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete skill sets: %w", err)
	}
	return nil
}
