package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type configRepo struct {
	s *Store
}

var (
	configSelect     = []string{colConfigID, colModuleID, colConfigName}
	configDataSelect = []string{colConfigDataID, colConfigID, colConfigName, colConfigType, colConfigValue}
)

// ValidConfigType reports whether t is a known setting type.
func ValidConfigType(t string) bool {
	switch t {
	case ConfigTypeInt, ConfigTypeFloat, ConfigTypeString, ConfigTypeBool:
		return true
	}
	return false
}

func (r *configRepo) Save(ctx context.Context, c *Config) error {
	return r.s.insert(ctx, tableConfigs, colConfigID, &c.ID,
		[]string{colModuleID, colConfigName},
		[]any{c.ModuleID, c.Name},
	)
}

func (r *configRepo) Get(ctx context.Context, id int) (*Config, error) {
	return r.getOne(ctx, entsql.EQ(colConfigID, id))
}

func (r *configRepo) GetByName(ctx context.Context, moduleID int, name string) (*Config, error) {
	return r.getOne(ctx, entsql.And(
		entsql.EQ(colModuleID, moduleID),
		entsql.EQ(colConfigName, name),
	))
}

func (r *configRepo) getOne(ctx context.Context, pred *entsql.Predicate) (*Config, error) {
	b := r.s.builder()
	query, args := b.Select(configSelect...).
		From(b.Table(tableConfigs)).
		Where(pred).
		Query()

	var c Config
	err := r.s.db.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.ModuleID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return &c, nil
}

func (r *configRepo) List(ctx context.Context) ([]Config, error) {
	return r.list(ctx, nil)
}

func (r *configRepo) ListByModule(ctx context.Context, moduleID int) ([]Config, error) {
	return r.list(ctx, entsql.EQ(colModuleID, moduleID))
}

func (r *configRepo) list(ctx context.Context, pred *entsql.Predicate) ([]Config, error) {
	b := r.s.builder()
	sel := b.Select(configSelect...).From(b.Table(tableConfigs))
	if pred != nil {
		sel = sel.Where(pred)
	}
	query, args := sel.OrderBy(colConfigID).Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	defer rows.Close()

	var out []Config
	for rows.Next() {
		var c Config
		if err := rows.Scan(&c.ID, &c.ModuleID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *configRepo) ModuleIDOf(ctx context.Context, configID int) (int, error) {
	c, err := r.Get(ctx, configID)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, fmt.Errorf("config %d: %w", configID, ErrNotFound)
	}
	return c.ModuleID, nil
}

func (r *configRepo) Rename(ctx context.Context, id int, name string) error {
	query, args := r.s.builder().Update(tableConfigs).
		Set(colConfigName, name).
		Where(entsql.EQ(colConfigID, id)).
		Query()
	if err := exec(ctx, r.s.db, query, args); err != nil {
		return fmt.Errorf("rename config %d: %w", id, err)
	}
	return nil
}

func (r *configRepo) Remove(ctx context.Context, id int) error {
	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		b := r.s.builder()
		query, args := b.Delete(tableConfigs).Where(entsql.EQ(colConfigID, id)).Query()
		if err := exec(ctx, tx, query, args); err != nil {
			return err
		}
		query, args = b.Delete(tableConfigData).Where(entsql.EQ(colConfigID, id)).Query()
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("remove config %d: %w", id, err)
	}
	return nil
}

func (r *configRepo) SaveData(ctx context.Context, d *ConfigData) error {
	if !ValidConfigType(d.Type) {
		return fmt.Errorf("config data %q: unknown type %q", d.Name, d.Type)
	}
	return r.s.insert(ctx, tableConfigData, colConfigDataID, &d.ID,
		[]string{colConfigID, colConfigName, colConfigType, colConfigValue},
		[]any{d.ConfigID, d.Name, d.Type, d.Value},
	)
}

func (r *configRepo) GetData(ctx context.Context, configID int, name string) (*ConfigData, error) {
	b := r.s.builder()
	query, args := b.Select(configDataSelect...).
		From(b.Table(tableConfigData)).
		Where(entsql.And(
			entsql.EQ(colConfigID, configID),
			entsql.EQ(colConfigName, name),
		)).
		Query()

	var d ConfigData
	err := r.s.db.QueryRowContext(ctx, query, args...).
		Scan(&d.ID, &d.ConfigID, &d.Name, &d.Type, &d.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get config data %q: %w", name, err)
	}
	if !ValidConfigType(d.Type) {
		return nil, fmt.Errorf("config data %d: unknown type %q", d.ID, d.Type)
	}
	return &d, nil
}

func (r *configRepo) ListData(ctx context.Context, configID int) ([]ConfigData, error) {
	b := r.s.builder()
	query, args := b.Select(configDataSelect...).
		From(b.Table(tableConfigData)).
		Where(entsql.EQ(colConfigID, configID)).
		OrderBy(colConfigDataID).
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list config data: %w", err)
	}
	defer rows.Close()

	var out []ConfigData
	for rows.Next() {
		var d ConfigData
		if err := rows.Scan(&d.ID, &d.ConfigID, &d.Name, &d.Type, &d.Value); err != nil {
			return nil, fmt.Errorf("scan config data: %w", err)
		}
		if !ValidConfigType(d.Type) {
			return nil, fmt.Errorf("config data %d: unknown type %q", d.ID, d.Type)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateData rewrites the row identified by d.ID.
func (r *configRepo) UpdateData(ctx context.Context, d *ConfigData) error {
	return r.updateData(ctx, r.s.db, d)
}

func (r *configRepo) UpdateDataAll(ctx context.Context, ds []ConfigData) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range ds {
			if err := r.updateData(ctx, tx, &ds[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *configRepo) updateData(ctx context.Context, q querier, d *ConfigData) error {
	if !ValidConfigType(d.Type) {
		return fmt.Errorf("config data %q: unknown type %q", d.Name, d.Type)
	}
	query, args := r.s.builder().Update(tableConfigData).
		Set(colConfigID, d.ConfigID).
		Set(colConfigName, d.Name).
		Set(colConfigType, d.Type).
		Set(colConfigValue, d.Value).
		Where(entsql.EQ(colConfigDataID, d.ID)).
		Query()
	if err := exec(ctx, q, query, args); err != nil {
		return fmt.Errorf("update config data %d: %w", d.ID, err)
	}
	return nil
}

func (r *configRepo) RemoveData(ctx context.Context, id int) error {
	query, args := r.s.builder().Delete(tableConfigData).
		Where(entsql.EQ(colConfigDataID, id)).
		Query()
	if err := exec(ctx, r.s.db, query, args); err != nil {
		return fmt.Errorf("remove config data %d: %w", id, err)
	}
	return nil
}

func (r *configRepo) IsDataSaved(ctx context.Context, d ConfigData) (bool, error) {
	existing, err := r.GetData(ctx, d.ConfigID, d.Name)
	if err != nil || existing == nil {
		return false, err
	}
	return existing.Type == d.Type && existing.Value == d.Value, nil
}
