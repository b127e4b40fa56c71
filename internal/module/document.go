package module

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/trainer/internal/store"
)

// Document is the portable YAML form of a config.
type Document struct {
	Module   string            `yaml:"module"`
	Name     string            `yaml:"name"`
	Settings []DocumentSetting `yaml:"settings"`
}

// DocumentSetting is one setting of a Document in textual form.
type DocumentSetting struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Export reads config id into a Document.
func Export(ctx context.Context, modules store.ModuleRepo, configs store.ConfigRepo, id int) (*Document, error) {
	c, err := configs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("config %d: %w", id, store.ErrNotFound)
	}
	mods, err := modules.List(ctx)
	if err != nil {
		return nil, err
	}
	doc := &Document{Name: c.Name}
	for _, m := range mods {
		if m.ID == c.ModuleID {
			doc.Module = m.Name
		}
	}
	if doc.Module == "" {
		return nil, fmt.Errorf("module %d of config %d: %w", c.ModuleID, id, store.ErrNotFound)
	}

	rows, err := configs.ListData(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		doc.Settings = append(doc.Settings, DocumentSetting{Name: r.Name, Type: r.Type, Value: r.Value})
	}
	return doc, nil
}

// Import writes doc to the store. An existing config of the same module and
// name is updated in place; otherwise a new config is created. Settings that
// already exist keep their stored type.
func Import(ctx context.Context, modules store.ModuleRepo, configs store.ConfigRepo, doc Document) (*store.Config, error) {
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		return nil, errors.New("config document has no name")
	}
	m, err := modules.GetByName(ctx, doc.Module)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("module %q: %w", doc.Module, store.ErrNotFound)
	}
	for _, s := range doc.Settings {
		if _, err := ParseValue(s.Type, s.Value); err != nil {
			return nil, fmt.Errorf("setting %q: %w", s.Name, ErrWrongType)
		}
	}

	c, err := configs.GetByName(ctx, m.ID, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &store.Config{ModuleID: m.ID, Name: name}
		if err := configs.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("save config: %w", err)
		}
	}

	for _, s := range doc.Settings {
		existing, err := configs.GetData(ctx, c.ID, s.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := SetValue(ctx, configs, c.ID, s.Name, s.Value); err != nil {
				return nil, err
			}
			continue
		}
		row := &store.ConfigData{ConfigID: c.ID, Name: s.Name, Type: s.Type, Value: s.Value}
		if err := configs.SaveData(ctx, row); err != nil {
			return nil, fmt.Errorf("save setting %q: %w", s.Name, err)
		}
	}
	return c, nil
}

// WriteDocuments encodes docs as a YAML stream, one document each.
func WriteDocuments(w io.Writer, docs ...*Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encode config %q: %w", d.Name, err)
		}
	}
	return enc.Close()
}

// ReadDocuments decodes every document of a YAML stream.
func ReadDocuments(r io.Reader) ([]Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var docs []Document
	for {
		var d Document
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode config document: %w", err)
		}
		docs = append(docs, d)
	}
}
