package fieldtype

import (
	"fmt"
	"strconv"
	"strings"
)

// ListKind — разновидность списочного типа.
type ListKind string

const (
	ListString  ListKind = "list_string"
	ListInteger ListKind = "list_integer"
)

// ListPlugin — значение из фиксированного набора allowed_values
// (value→label). Одна реализация на обе разновидности.
type ListPlugin struct {
	Kind ListKind
}

func (p *ListPlugin) Type() string { return string(p.Kind) }

func (p *ListPlugin) Label() string {
	if p.Kind == ListInteger {
		return "List (integer)"
	}
	return "List (text)"
}

func (p *ListPlugin) Description() string {
	return "Value restricted to a configured set of allowed values"
}

func (p *ListPlugin) Storage() StorageSchema {
	if p.Kind == ListInteger {
		return StorageSchema{DBType: "int", Nullable: true}
	}
	return StorageSchema{DBType: "varchar", Length: 255, Nullable: true}
}

func (p *ListPlugin) Widget() string         { return "select" }
func (p *ListPlugin) Formatter() string      { return "list_default" }
func (p *ListPlugin) SupportsMultiple() bool { return true }
func (p *ListPlugin) NeedsIndex() bool       { return false }
func (p *ListPlugin) Weight() int            { return 5 }

// elemKey — каноничный строковый ключ элемента для поиска в allowed_values.
func (p *ListPlugin) elemKey(v any) string {
	if p.Kind == ListInteger {
		switch t := v.(type) {
		case float64:
			return strconv.FormatInt(int64(t), 10)
		case int:
			return strconv.Itoa(t)
		case int64:
			return strconv.FormatInt(t, 10)
		}
	}
	return toString(v)
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func (p *ListPlugin) Validate(value any, settings Settings) []string {
	var errs []string
	allowed := settings.allowedValues()

	if settings.boolval("multiple") {
		items, ok := asList(value)
		if !ok {
			if value == nil {
				if settings.boolval("required") {
					errs = append(errs, "value is required")
				}
				return errs
			}
			return []string{"value must be a list"}
		}
		if settings.boolval("required") && len(items) == 0 {
			errs = append(errs, "value is required")
		}
		for _, it := range items {
			if _, ok := allowed[p.elemKey(it)]; !ok {
				errs = append(errs, fmt.Sprintf("value %q is not an allowed value", p.elemKey(it)))
			}
		}
		return errs
	}

	if value == nil || toString(value) == "" {
		if settings.boolval("required") {
			errs = append(errs, "value is required")
		}
		return errs
	}
	if _, ok := allowed[p.elemKey(value)]; !ok {
		errs = append(errs, fmt.Sprintf("value %q is not an allowed value", p.elemKey(value)))
	}
	return errs
}

// Process: multiple — отфильтровать невалидные элементы;
// одиночное невалидное — пустая строка (string) либо ноль (integer).
func (p *ListPlugin) Process(value any, settings Settings) any {
	allowed := settings.allowedValues()

	if settings.boolval("multiple") {
		items, ok := asList(value)
		if !ok {
			items = nil
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			if _, ok := allowed[p.elemKey(it)]; ok {
				out = append(out, p.normalize(it))
			}
		}
		return out
	}

	if _, ok := allowed[p.elemKey(value)]; ok {
		return p.normalize(value)
	}
	if p.Kind == ListInteger {
		return int64(0)
	}
	return ""
}

func (p *ListPlugin) normalize(v any) any {
	if p.Kind == ListInteger {
		if n, err := strconv.ParseInt(p.elemKey(v), 10, 64); err == nil {
			return n
		}
		return int64(0)
	}
	return toString(v)
}

// Format рендерит label'ы allowed_values; несколько значений — через ", ".
func (p *ListPlugin) Format(value any, settings Settings, mode string) string {
	allowed := settings.allowedValues()

	label := func(v any) string {
		key := p.elemKey(v)
		if l, ok := allowed[key]; ok && l != "" {
			return l
		}
		return key
	}

	if items, ok := asList(value); ok {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, label(it))
		}
		return strings.Join(parts, ", ")
	}
	return label(value)
}

func (p *ListPlugin) SettingsForm(settings Settings, context string) []FormItem {
	return []FormItem{
		{Name: "allowed_values", Widget: "key_value", Label: "Allowed values"},
		{Name: "multiple", Widget: "checkbox", Label: "Multiple values", Default: settings.boolval("multiple")},
		{Name: "required", Widget: "checkbox", Label: "Required", Default: settings.boolval("required")},
	}
}
