package fieldtype

import (
	"fmt"
	"strings"
	"sync"

	"lekalo/internal/logs"
)

// Registry хранит плагины типов полей, ключ — строковый type key.
// Кэш TypeInfo — read-through: очищенная запись прозрачно пересчитывается.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin

	cacheMu sync.RWMutex
	cache   map[string]TypeInfo
}

func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		cache:   make(map[string]TypeInfo),
	}
}

// NewDefaultRegistry — реестр со встроенными типами.
// Порядок регистрации значения не имеет.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&StringPlugin{})
	r.Register(&ListPlugin{Kind: ListString})
	r.Register(&ListPlugin{Kind: ListInteger})
	r.Register(&ReferencePlugin{})
	return r
}

// Register добавляет плагин под его type key. Последняя запись побеждает:
// перезапись существующего ключа — явное административное действие,
// поэтому о ней предупреждаем в логе.
func (r *Registry) Register(p Plugin) {
	key := p.Type()
	r.mu.Lock()
	if _, exists := r.plugins[key]; exists {
		logs.Logger.Warnf("field type %q re-registered, previous plugin replaced", key)
	}
	r.plugins[key] = p
	r.mu.Unlock()

	// кэш инфо по ключу мог устареть
	r.ClearCache(key)
}

func (r *Registry) HasType(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[key]
	return ok
}

func (r *Registry) Plugin(key string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[key]
	return p, ok
}

// AvailableTypes — ключ→label всех зарегистрированных типов.
func (r *Registry) AvailableTypes() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.plugins))
	for k, p := range r.plugins {
		out[k] = p.Label()
	}
	return out
}

// TypeInfo — мемоизированное описание типа. Конкурентные читатели видят либо
// кэшированное, либо свежевычисленное значение, но никогда частичное
// (замена записи атомарна под write-lock).
func (r *Registry) TypeInfo(key string) (TypeInfo, bool) {
	r.cacheMu.RLock()
	if info, ok := r.cache[key]; ok {
		r.cacheMu.RUnlock()
		return info, true
	}
	r.cacheMu.RUnlock()

	p, ok := r.Plugin(key)
	if !ok {
		return TypeInfo{}, false
	}
	info := TypeInfo{
		Type:             p.Type(),
		Label:            p.Label(),
		Description:      p.Description(),
		Storage:          p.Storage(),
		Widget:           p.Widget(),
		Formatter:        p.Formatter(),
		SupportsMultiple: p.SupportsMultiple(),
		NeedsIndex:       p.NeedsIndex(),
		Weight:           p.Weight(),
	}

	r.cacheMu.Lock()
	r.cache[key] = info
	r.cacheMu.Unlock()
	return info, true
}

// ClearCache сбрасывает кэш TypeInfo: с ключами — точечно, без — целиком.
func (r *Registry) ClearCache(keys ...string) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if len(keys) == 0 {
		r.cache = make(map[string]TypeInfo)
		return
	}
	for _, k := range keys {
		delete(r.cache, k)
	}
}

// StorageSchema — схема хранения значения для типа.
func (r *Registry) StorageSchema(key string) (StorageSchema, bool) {
	p, ok := r.Plugin(key)
	if !ok {
		return StorageSchema{}, false
	}
	return p.Storage(), true
}

// ValidateValue — список ошибок валидации (пустой = валидно).
// Неизвестный тип — ровно одна ошибка: валидация fail-closed.
func (r *Registry) ValidateValue(key string, value any, settings Settings) []string {
	p, ok := r.Plugin(key)
	if !ok {
		return []string{fmt.Sprintf("Unknown field type: %s", key)}
	}
	return p.Validate(value, settings)
}

// ProcessValue нормализует значение. Неизвестный тип возвращает значение
// как есть: нормализация fail-open — асимметрия с ValidateValue намеренная.
func (r *Registry) ProcessValue(key string, value any, settings Settings) any {
	p, ok := r.Plugin(key)
	if !ok {
		return value
	}
	return p.Process(value, settings)
}

// FormatValue рендерит значение; неизвестный тип — строковое представление.
func (r *Registry) FormatValue(key string, value any, settings Settings, mode string) string {
	p, ok := r.Plugin(key)
	if !ok {
		return toString(value)
	}
	if mode == "" {
		mode = "default"
	}
	return p.Format(value, settings, mode)
}

// SettingsForm — ui-схема настроек; неизвестный тип — пустая (не nil).
func (r *Registry) SettingsForm(key string, settings Settings, context string) []FormItem {
	p, ok := r.Plugin(key)
	if !ok {
		return []FormItem{}
	}
	items := p.SettingsForm(settings, context)
	if items == nil {
		items = []FormItem{}
	}
	return items
}

// toString — небрежное приведение к строке для format/fallback-путей.
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		// без хвоста ".000000" для целых JSON-чисел
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return strings.TrimRight(fmt.Sprintf("%f", t), "0")
	default:
		return fmt.Sprintf("%v", t)
	}
}
