package fieldtype

import (
	"strings"
)

// ReferenceSettings — распарсенные настройки ссылочного поля.
type ReferenceSettings struct {
	TargetType    string   `json:"target_type"`
	TargetBundles []string `json:"target_bundles,omitempty"`
	Multiple      bool     `json:"multiple"`
}

// ParseReferenceSettings достаёт target_type/target_bundles/multiple из settings.
func ParseReferenceSettings(s Settings) ReferenceSettings {
	out := ReferenceSettings{
		TargetType: s.str("target_type", ""),
		Multiple:   s.boolval("multiple"),
	}
	switch tb := s["target_bundles"].(type) {
	case []string:
		out.TargetBundles = append(out.TargetBundles, tb...)
	case []any:
		for _, b := range tb {
			if bs := toString(b); bs != "" {
				out.TargetBundles = append(out.TargetBundles, bs)
			}
		}
	case string:
		for _, b := range strings.Split(tb, ",") {
			if b = strings.TrimSpace(b); b != "" {
				out.TargetBundles = append(out.TargetBundles, b)
			}
		}
	}
	return out
}

// ReferencePlugin — ссылка на другую сущность (динамическую или встроенную).
// Хранится как id цели либо массив id; разрешается лениво на чтении.
type ReferencePlugin struct{}

func (p *ReferencePlugin) Type() string        { return "reference" }
func (p *ReferencePlugin) Label() string       { return "Reference" }
func (p *ReferencePlugin) Description() string { return "Points at another entity by id" }
func (p *ReferencePlugin) Storage() StorageSchema {
	return StorageSchema{DBType: "varchar", Length: 255, Nullable: true}
}
func (p *ReferencePlugin) Widget() string         { return "autocomplete" }
func (p *ReferencePlugin) Formatter() string      { return "reference_label" }
func (p *ReferencePlugin) SupportsMultiple() bool { return true }
func (p *ReferencePlugin) NeedsIndex() bool       { return true }
func (p *ReferencePlugin) Weight() int            { return 10 }

func (p *ReferencePlugin) Validate(value any, settings Settings) []string {
	var errs []string

	ref := ParseReferenceSettings(settings)
	if ref.TargetType == "" {
		errs = append(errs, "reference field requires target_type in settings")
	}

	if ref.Multiple {
		items, ok := asList(value)
		if !ok {
			if value == nil {
				if settings.boolval("required") {
					errs = append(errs, "value is required")
				}
				return errs
			}
			return append(errs, "value must be a list of ids")
		}
		if settings.boolval("required") && len(items) == 0 {
			errs = append(errs, "value is required")
		}
		for _, it := range items {
			if strings.TrimSpace(toString(it)) == "" {
				errs = append(errs, "empty id in reference list")
			}
		}
		return errs
	}

	id := strings.TrimSpace(toString(value))
	if id == "" && settings.boolval("required") {
		errs = append(errs, "value is required")
	}
	return errs
}

func (p *ReferencePlugin) Process(value any, settings Settings) any {
	if ParseReferenceSettings(settings).Multiple {
		items, ok := asList(value)
		if !ok {
			return []any{}
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			if id := strings.TrimSpace(toString(it)); id != "" {
				out = append(out, id)
			}
		}
		return out
	}
	return strings.TrimSpace(toString(value))
}

func (p *ReferencePlugin) Format(value any, settings Settings, mode string) string {
	if items, ok := asList(value); ok {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, toString(it))
		}
		return strings.Join(parts, ", ")
	}
	return toString(value)
}

func (p *ReferencePlugin) SettingsForm(settings Settings, context string) []FormItem {
	ref := ParseReferenceSettings(settings)
	return []FormItem{
		{Name: "target_type", Widget: "textfield", Label: "Target type", Default: ref.TargetType},
		{Name: "target_bundles", Widget: "tags", Label: "Target bundles", Default: ref.TargetBundles},
		{Name: "multiple", Widget: "checkbox", Label: "Multiple values", Default: ref.Multiple},
	}
}
