package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type moduleRepo struct {
	s *Store
}

var moduleSelect = []string{colModuleID, colModuleName, colModuleVersion, colTimestamp}

func (r *moduleRepo) Save(ctx context.Context, m *Module) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return r.s.insert(ctx, tableModules, colModuleID, &m.ID,
		[]string{colModuleName, colModuleVersion, colTimestamp},
		[]any{m.Name, m.Version, m.CreatedAt},
	)
}

func (r *moduleRepo) List(ctx context.Context) ([]Module, error) {
	b := r.s.builder()
	query, args := b.Select(moduleSelect...).
		From(b.Table(tableModules)).
		OrderBy(colModuleID).
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var out []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Name, &m.Version, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *moduleRepo) GetByName(ctx context.Context, name string) (*Module, error) {
	b := r.s.builder()
	query, args := b.Select(moduleSelect...).
		From(b.Table(tableModules)).
		Where(entsql.EQ(colModuleName, name)).
		Query()

	var m Module
	err := r.s.db.QueryRowContext(ctx, query, args...).Scan(&m.ID, &m.Name, &m.Version, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get module %q: %w", name, err)
	}
	return &m, nil
}

func (r *moduleRepo) UpdateVersion(ctx context.Context, id int, version string) error {
	query, args := r.s.builder().Update(tableModules).
		Set(colModuleVersion, version).
		Where(entsql.EQ(colModuleID, id)).
		Query()
	if err := exec(ctx, r.s.db, query, args); err != nil {
		return fmt.Errorf("update module %d version: %w", id, err)
	}
	return nil
}
