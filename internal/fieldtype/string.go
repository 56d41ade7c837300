package fieldtype

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// StringPlugin — однострочный текст, колонка varchar(255).
type StringPlugin struct{}

func (p *StringPlugin) Type() string        { return "string" }
func (p *StringPlugin) Label() string       { return "Text" }
func (p *StringPlugin) Description() string { return "Single-line text stored as varchar" }
func (p *StringPlugin) Storage() StorageSchema {
	return StorageSchema{DBType: "varchar", Length: 255, Nullable: true}
}
func (p *StringPlugin) Widget() string         { return "textfield" }
func (p *StringPlugin) Formatter() string      { return "text_default" }
func (p *StringPlugin) SupportsMultiple() bool { return false }
func (p *StringPlugin) NeedsIndex() bool       { return false }
func (p *StringPlugin) Weight() int            { return 0 }

func (p *StringPlugin) Validate(value any, settings Settings) []string {
	var errs []string
	s := toString(value)

	maxLen := settings.intval("max_length", 255)
	if utf8.RuneCountInString(s) > maxLen {
		errs = append(errs, fmt.Sprintf("value exceeds maximum length of %d", maxLen))
	}
	if settings.boolval("required") && strings.TrimSpace(s) == "" {
		errs = append(errs, "value is required")
	}
	return errs
}

func (p *StringPlugin) Process(value any, settings Settings) any {
	s := strings.TrimSpace(toString(value))
	if s == "" {
		if def := settings.str("default_value", ""); def != "" {
			return def
		}
		return s
	}
	maxLen := settings.intval("max_length", 255)
	if utf8.RuneCountInString(s) > maxLen {
		runes := []rune(s)
		s = string(runes[:maxLen])
	}
	return s
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func (p *StringPlugin) Format(value any, settings Settings, mode string) string {
	s := toString(value)
	switch mode {
	case "plain":
		return tagRe.ReplaceAllString(s, "")
	case "truncated":
		n := settings.intval("display_length", 80)
		if utf8.RuneCountInString(s) > n {
			runes := []rune(s)
			return string(runes[:n]) + "..."
		}
		return s
	default:
		return s
	}
}

func (p *StringPlugin) SettingsForm(settings Settings, context string) []FormItem {
	return []FormItem{
		{Name: "max_length", Widget: "number", Label: "Maximum length", Default: settings.intval("max_length", 255)},
		{Name: "default_value", Widget: "textfield", Label: "Default value", Default: settings.str("default_value", "")},
		{Name: "required", Widget: "checkbox", Label: "Required", Default: settings.boolval("required")},
	}
}
