package module

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/abhisek/trainer/internal/store"
)

// DefaultConfigName is the name of the config seeded for every module.
const DefaultConfigName = "Default"

// ErrMissingSetting is returned when a config lacks a requested setting.
var ErrMissingSetting = errors.New("missing setting")

// ErrWrongType is returned when a setting holds a different type.
var ErrWrongType = errors.New("wrong setting type")

// Config is a typed parameter set for one module.
type Config struct {
	ID       int
	ModuleID int
	Name     string
	Data     []ConfigData
}

// ConfigData is one typed setting. Value is an int, float64, bool or string
// matching Type.
type ConfigData struct {
	ID       int
	ConfigID int
	Name     string
	Type     string
	Value    any
}

// ConfigFromStore converts stored rows into a typed Config.
func ConfigFromStore(c store.Config, rows []store.ConfigData) (*Config, error) {
	cfg := &Config{ID: c.ID, ModuleID: c.ModuleID, Name: c.Name}
	for _, r := range rows {
		v, err := ParseValue(r.Type, r.Value)
		if err != nil {
			return nil, fmt.Errorf("config %d setting %q: %w", c.ID, r.Name, err)
		}
		cfg.Data = append(cfg.Data, ConfigData{ID: r.ID, ConfigID: r.ConfigID, Name: r.Name, Type: r.Type, Value: v})
	}
	return cfg, nil
}

// LoadConfig reads a config with its data. It fails with store.ErrNotFound
// when the config does not exist.
func LoadConfig(ctx context.Context, repo store.ConfigRepo, id int) (*Config, error) {
	c, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("config %d: %w", id, store.ErrNotFound)
	}
	rows, err := repo.ListData(ctx, id)
	if err != nil {
		return nil, err
	}
	return ConfigFromStore(*c, rows)
}

// ToStore converts d to its stored row form.
func (d ConfigData) ToStore() store.ConfigData {
	return store.ConfigData{ID: d.ID, ConfigID: d.ConfigID, Name: d.Name, Type: d.Type, Value: FormatValue(d.Value)}
}

// Get returns the named setting, or nil.
func (c *Config) Get(name string) *ConfigData {
	for i := range c.Data {
		if c.Data[i].Name == name {
			return &c.Data[i]
		}
	}
	return nil
}

func (c *Config) lookup(name, typ string) (any, error) {
	d := c.Get(name)
	if d == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrMissingSetting)
	}
	if d.Type != typ {
		return nil, fmt.Errorf("%q is %s, not %s: %w", name, d.Type, typ, ErrWrongType)
	}
	return d.Value, nil
}

func (c *Config) Int(name string) (int, error) {
	v, err := c.lookup(name, store.ConfigTypeInt)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%q holds %T: %w", name, v, ErrWrongType)
	}
	return n, nil
}

func (c *Config) Float(name string) (float64, error) {
	v, err := c.lookup(name, store.ConfigTypeFloat)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%q holds %T: %w", name, v, ErrWrongType)
	}
	return f, nil
}

func (c *Config) Bool(name string) (bool, error) {
	v, err := c.lookup(name, store.ConfigTypeBool)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%q holds %T: %w", name, v, ErrWrongType)
	}
	return b, nil
}

func (c *Config) String(name string) (string, error) {
	v, err := c.lookup(name, store.ConfigTypeString)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q holds %T: %w", name, v, ErrWrongType)
	}
	return s, nil
}

// Strings returns every setting in its textual form.
func (c *Config) Strings() map[string]string {
	out := make(map[string]string, len(c.Data))
	for _, d := range c.Data {
		out[d.Name] = FormatValue(d.Value)
	}
	return out
}

// Contains reports whether every setting of other is present in c with the
// same type and value.
func (c *Config) Contains(other *Config) bool {
	for _, od := range other.Data {
		d := c.Get(od.Name)
		if d == nil || d.Type != od.Type || FormatValue(d.Value) != FormatValue(od.Value) {
			return false
		}
	}
	return true
}

// ParseValue decodes the textual form of a setting.
func ParseValue(typ, text string) (any, error) {
	switch typ {
	case store.ConfigTypeInt:
		return strconv.Atoi(text)
	case store.ConfigTypeFloat:
		return strconv.ParseFloat(text, 64)
	case store.ConfigTypeBool:
		return strconv.ParseBool(text)
	case store.ConfigTypeString:
		return text, nil
	}
	return nil, fmt.Errorf("unknown setting type %q", typ)
}

// FormatValue encodes a setting value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// TypeOf returns the setting type matching v's Go type.
func TypeOf(v any) (string, error) {
	switch v.(type) {
	case int:
		return store.ConfigTypeInt, nil
	case float64:
		return store.ConfigTypeFloat, nil
	case bool:
		return store.ConfigTypeBool, nil
	case string:
		return store.ConfigTypeString, nil
	}
	return "", fmt.Errorf("unsupported setting value %T", v)
}

// SetValue parses text as the stored type of a setting and saves it. Unknown
// settings fail with ErrMissingSetting, unparsable text with ErrWrongType.
func SetValue(ctx context.Context, repo store.ConfigRepo, configID int, name, text string) error {
	d, err := parseSetting(ctx, repo, configID, name, text)
	if err != nil {
		return err
	}
	return repo.UpdateData(ctx, d)
}

// SetValues is SetValue for several settings at once. Nothing is saved
// unless every value parses.
func SetValues(ctx context.Context, repo store.ConfigRepo, configID int, values map[string]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	ds := make([]store.ConfigData, 0, len(names))
	for _, name := range names {
		d, err := parseSetting(ctx, repo, configID, name, values[name])
		if err != nil {
			return err
		}
		ds = append(ds, *d)
	}
	if len(ds) == 0 {
		return nil
	}
	return repo.UpdateDataAll(ctx, ds)
}

func parseSetting(ctx context.Context, repo store.ConfigRepo, configID int, name, text string) (*store.ConfigData, error) {
	d, err := repo.GetData(ctx, configID, name)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("config %d %q: %w", configID, name, ErrMissingSetting)
	}
	v, err := ParseValue(d.Type, text)
	if err != nil {
		return nil, fmt.Errorf("config %d %q wants %s: %w", configID, name, d.Type, ErrWrongType)
	}
	d.Value = FormatValue(v)
	return d, nil
}
