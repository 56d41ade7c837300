package fieldtype

// Settings — типоспецифичные настройки поля (из settings-колонки, JSON).
type Settings map[string]any

// StorageSchema описывает колонку под значение поля.
type StorageSchema struct {
	DBType   string `json:"db_type"` // varchar | int | jsonb | text ...
	Length   int    `json:"length,omitempty"`
	Nullable bool   `json:"nullable"`
}

// TypeInfo — агрегированное описание типа поля (кэшируется в реестре).
type TypeInfo struct {
	Type             string        `json:"type"`
	Label            string        `json:"label"`
	Description      string        `json:"description"`
	Storage          StorageSchema `json:"storage"`
	Widget           string        `json:"widget"`
	Formatter        string        `json:"formatter"`
	SupportsMultiple bool          `json:"supports_multiple"`
	NeedsIndex       bool          `json:"needs_index"`
	Weight           int           `json:"weight"`
}

// FormItem — один элемент ui-схемы настроек поля (потребляется внешним UI).
type FormItem struct {
	Name    string `json:"name"`
	Widget  string `json:"widget"`
	Label   string `json:"label"`
	Default any    `json:"default,omitempty"`
}

// Plugin — полиморфная реализация одного типа поля.
// Новые типы добавляются регистрацией реализации, не ветвлением по строкам.
type Plugin interface {
	Type() string
	Label() string
	Description() string
	Storage() StorageSchema
	Widget() string
	Formatter() string
	SupportsMultiple() bool
	NeedsIndex() bool
	Weight() int

	// Validate возвращает список ошибок (пустой = значение валидно).
	Validate(value any, settings Settings) []string
	// Process нормализует значение перед записью.
	Process(value any, settings Settings) any
	// Format рендерит значение для чтения; mode: default|plain|truncated|...
	Format(value any, settings Settings, mode string) string
	// SettingsForm отдаёт ui-схему настроек (никогда не nil).
	SettingsForm(settings Settings, context string) []FormItem
}

// ===== helpers над Settings =====

// Multiple — флаг multiple из настроек.
func (s Settings) Multiple() bool { return s.boolval("multiple") }

// Required — флаг required из настроек.
func (s Settings) Required() bool { return s.boolval("required") }

func (s Settings) str(key, def string) string {
	if s == nil {
		return def
	}
	if v, ok := s[key]; ok {
		if sv, ok := v.(string); ok {
			return sv
		}
	}
	return def
}

func (s Settings) intval(key string, def int) int {
	if s == nil {
		return def
	}
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64: // JSON-числа приходят как float64
		return int(v)
	}
	return def
}

func (s Settings) boolval(key string) bool {
	if s == nil {
		return false
	}
	switch v := s[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return false
}

// allowedValues возвращает маппинг значение→label из settings["allowed_values"].
// Поддерживаем и map, и упорядоченный список пар {value,label}.
func (s Settings) allowedValues() map[string]string {
	out := map[string]string{}
	if s == nil {
		return out
	}
	switch av := s["allowed_values"].(type) {
	case map[string]string:
		for k, v := range av {
			out[k] = v
		}
	case map[string]any:
		for k, v := range av {
			out[k] = toString(v)
		}
	case []any:
		for _, item := range av {
			if m, ok := item.(map[string]any); ok {
				val := toString(m["value"])
				if val != "" {
					out[val] = toString(m["label"])
				}
			}
		}
	}
	return out
}
