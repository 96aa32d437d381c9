// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadRegistry reads a template override file. Entries without a type are rejected.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, t := range reg.Templates {
		if t.Type == "" {
			return nil, fmt.Errorf("parse %s: template %d has no type", path, i)
		}
	}
	return &reg, nil
}

// Upsert replaces the override for o.Type or appends it.
func (r *TemplateRegistry) Upsert(o TemplateOverride) {
	for i := range r.Templates {
		if r.Templates[i].Type == o.Type {
			r.Templates[i] = o
			return
		}
	}
	r.Templates = append(r.Templates, o)
}

// Find returns the override for typ, if present.
func (r *TemplateRegistry) Find(typ string) (TemplateOverride, bool) {
	for _, t := range r.Templates {
		if t.Type == typ {
			return t, true
		}
	}
	return TemplateOverride{}, false
}

// SaveRegistry writes reg as indented JSON, creating the parent directory.
func SaveRegistry(reg *TemplateRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
