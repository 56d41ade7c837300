package refresolve

import (
	"context"
	"fmt"

	"lekalo/internal/fieldtype"
	"lekalo/internal/store"
)

// TemplateSource — чтение метаданных шаблонов. Резолверу хватает имени и полей.
type TemplateSource interface {
	GetTemplateByName(ctx context.Context, tenantID, projectID, name string) (*store.EntityTemplate, error)
	GetTemplateFields(ctx context.Context, templateID string) ([]store.EntityField, error)
}

// EntityLoader — чтение целевых сущностей. Динамические типы закрывает стор;
// встроенные типы хост подмешивает своей реализацией.
type EntityLoader interface {
	// LoadEntity — (nil, nil) если цель не существует.
	LoadEntity(ctx context.Context, tenantID, entityName, id string) (map[string]any, error)
	// SearchEntities — substring-поиск по полю-метке целевого типа.
	SearchEntities(ctx context.Context, tenantID, entityName, query string, limit int) ([]store.Match, error)
}

// Resolver разворачивает ссылочные поля на чтении. Чистая read-time проекция:
// целевые сущности никогда не мутируются.
type Resolver struct {
	templates TemplateSource
	loader    EntityLoader
}

func New(templates TemplateSource, loader EntityLoader) *Resolver {
	return &Resolver{templates: templates, loader: loader}
}

// GetEntityReferenceFields — ссылочные поля шаблона по имени сущности.
// Неизвестный шаблон — пустой маппинг, не ошибка.
func (r *Resolver) GetEntityReferenceFields(ctx context.Context, tenantID, entityName string) (map[string]fieldtype.ReferenceSettings, error) {
	out := map[string]fieldtype.ReferenceSettings{}

	tpl, err := r.templates.GetTemplateByName(ctx, tenantID, "", entityName)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if tpl == nil {
		return out, nil
	}

	fields, err := r.templates.GetTemplateFields(ctx, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	for _, f := range fields {
		if f.FieldType != "reference" {
			continue
		}
		out[f.Name] = fieldtype.ParseReferenceSettings(f.Settings)
	}
	return out, nil
}

// ResolveEntityReferences подменяет сырые id в ссылочных полях загруженными
// целями. Неразрешимые цели выбрасываются из значения — никаких висячих id
// вперемешку с объектами.
func (r *Resolver) ResolveEntityReferences(ctx context.Context, tenantID, entityName string, data map[string]any, refFields map[string]fieldtype.ReferenceSettings) (map[string]any, error) {
	if len(refFields) == 0 {
		return data, nil
	}

	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}

	for name, ref := range refFields {
		raw, ok := out[name]
		if !ok || raw == nil {
			continue
		}

		if ref.Multiple {
			ids := idList(raw)
			resolved := make([]any, 0, len(ids))
			for _, id := range ids {
				target, err := r.loader.LoadEntity(ctx, tenantID, ref.TargetType, id)
				if err != nil {
					return nil, fmt.Errorf("resolve %s[%s]: %w", name, id, err)
				}
				if target != nil {
					resolved = append(resolved, target)
				}
			}
			out[name] = resolved
			continue
		}

		id := stringID(raw)
		if id == "" {
			out[name] = nil
			continue
		}
		target, err := r.loader.LoadEntity(ctx, tenantID, ref.TargetType, id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		if target == nil {
			out[name] = nil
			continue
		}
		out[name] = target
	}
	return out, nil
}

// SearchReferencableEntities — кандидаты для ссылочного поля:
// регистронезависимый substring по метке цели, в рамках tenant'а, до limit.
func (r *Resolver) SearchReferencableEntities(ctx context.Context, targetType, query string, settings fieldtype.Settings, tenantID string, limit int) ([]store.Match, error) {
	if targetType == "" {
		targetType = fieldtype.ParseReferenceSettings(settings).TargetType
	}
	if targetType == "" {
		return []store.Match{}, nil
	}
	return r.loader.SearchEntities(ctx, tenantID, targetType, query, limit)
}

func stringID(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func idList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case string:
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
