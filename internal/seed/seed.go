package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lekalo/internal/logs"
	"lekalo/internal/store"

	"gopkg.in/yaml.v3"
)

// FieldSpec — описание поля в seed-файле.
type FieldSpec struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Label    string         `yaml:"label"`
	Weight   int            `yaml:"weight"`
	Required bool           `yaml:"required"`
	Settings map[string]any `yaml:"settings"`
}

// TemplateSpec — один шаблон из seed-файла.
type TemplateSpec struct {
	Name        string                 `yaml:"name"`
	Project     string                 `yaml:"project"`
	Label       string                 `yaml:"label"`
	Description string                 `yaml:"description"`
	Settings    store.TemplateSettings `yaml:"settings"`
	Fields      []FieldSpec            `yaml:"fields"`
}

// LoadDir читает все *.yaml/*.yml из директории сидов.
func LoadDir(dir string) ([]TemplateSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []TemplateSpec
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var spec TemplateSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if spec.Name == "" {
			spec.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		out = append(out, spec)
	}
	return out, nil
}

// Apply применяет сиды к стору: существующие шаблоны не трогаем,
// новые создаём вместе с полями. Ошибка одного сида не валит остальные.
func Apply(ctx context.Context, st *store.Store, tenantID string, specs []TemplateSpec) {
	for _, spec := range specs {
		existing, err := st.GetTemplateByName(ctx, tenantID, spec.Project, spec.Name)
		if err != nil {
			logs.Logger.Errorf("seed %s: lookup failed: %v", spec.Name, err)
			continue
		}
		if existing != nil {
			continue
		}

		tpl := &store.EntityTemplate{
			TenantID:    tenantID,
			ProjectID:   spec.Project,
			Name:        spec.Name,
			Label:       spec.Label,
			Description: spec.Description,
			Settings:    spec.Settings,
		}
		id, verrs, err := st.CreateTemplate(ctx, tpl)
		if err != nil {
			logs.Logger.Errorf("seed %s: create failed: %v", spec.Name, err)
			continue
		}
		if len(verrs) > 0 {
			logs.Logger.Errorf("seed %s: rejected: %v", spec.Name, verrs)
			continue
		}

		for _, fs := range spec.Fields {
			field := &store.EntityField{
				Name:      fs.Name,
				FieldType: fs.Type,
				Label:     fs.Label,
				Weight:    fs.Weight,
				Required:  fs.Required,
				Settings:  fs.Settings,
			}
			if _, verrs, err := st.AddField(ctx, id, field); err != nil {
				logs.Logger.Errorf("seed %s.%s: add field failed: %v", spec.Name, fs.Name, err)
			} else if len(verrs) > 0 {
				logs.Logger.Errorf("seed %s.%s: rejected: %v", spec.Name, fs.Name, verrs)
			}
		}
		logs.Logger.Infof("seeded template %s (%s)", spec.Name, id)
	}
}
