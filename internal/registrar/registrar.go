package registrar

import (
	"context"
	"fmt"
	"sync/atomic"

	"lekalo/internal/logs"
	"lekalo/internal/store"
)

// DescriptorKeys — фиксированные движковые колонки в роли ключей типа.
type DescriptorKeys struct {
	Primary string `json:"primary"`
	Bundle  string `json:"bundle"`
	Label   string `json:"label"`
	UUID    string `json:"uuid"`
}

// TypeDescriptor — рантайм-описание одного динамического типа,
// потребляемое хостовой абстракцией хранения. Идентификатор типа — id шаблона.
type TypeDescriptor struct {
	EntityType    string         `json:"entity_type"` // template id
	Bundle        string         `json:"bundle"`      // template name
	TenantID      string         `json:"tenant_id"`
	ProjectID     string         `json:"project_id,omitempty"`
	Handler       string         `json:"handler"`
	BaseTable     string         `json:"base_table"`
	DataTable     string         `json:"data_table"`
	RevisionTable string         `json:"revision_table"`
	Keys          DescriptorKeys `json:"keys"`
}

// Instance — транзиентный объект, построенный из дескриптора и сырых значений
// (preview-объекты, ещё не существующие в хранилище).
type Instance struct {
	Descriptor TypeDescriptor
	Values     map[string]any
}

// InstanceFactory — "рантайм-класс" типа: умеет собрать Instance из значений.
type InstanceFactory func(desc TypeDescriptor, values map[string]any) (*Instance, error)

// TemplateLister — то, что регистратору нужно от стора. Регистратор метаданные
// никогда не мутирует, только читает.
type TemplateLister interface {
	ListTemplates(ctx context.Context) ([]store.EntityTemplate, error)
}

// DefaultHandler — обработчик по умолчанию для динамических типов.
const DefaultHandler = "sql"

// Registrar проецирует сохранённые шаблоны в дескрипторы типов.
type Registrar struct {
	templates TemplateLister
	factories map[string]InstanceFactory

	// guard одного верхнеуровневого вызова RegisterEntityTypes;
	// снимается на каждом пути выхода.
	registering atomic.Bool
}

func New(templates TemplateLister) *Registrar {
	r := &Registrar{
		templates: templates,
		factories: make(map[string]InstanceFactory),
	}
	r.RegisterFactory(DefaultHandler, func(desc TypeDescriptor, values map[string]any) (*Instance, error) {
		if values == nil {
			return nil, fmt.Errorf("nil values for entity type %s", desc.EntityType)
		}
		return &Instance{Descriptor: desc, Values: values}, nil
	})
	return r
}

// RegisterFactory добавляет hostspecific-фабрику под именем обработчика.
func (r *Registrar) RegisterFactory(handler string, f InstanceFactory) {
	r.factories[handler] = f
}

// Describe строит дескриптор для одного шаблона.
func Describe(tpl store.EntityTemplate) TypeDescriptor {
	base := tpl.TableName()
	return TypeDescriptor{
		EntityType:    tpl.ID,
		Bundle:        tpl.Name,
		TenantID:      tpl.TenantID,
		ProjectID:     tpl.ProjectID,
		Handler:       DefaultHandler,
		BaseTable:     base,
		DataTable:     base + "_field_data",
		RevisionTable: base + "_revision",
		Keys: DescriptorKeys{
			Primary: "id",
			Bundle:  "project_id",
			Label:   "id",
			UUID:    "id",
		},
	}
}

// RegisterEntityTypes дополняет existing дескрипторами сохранённых шаблонов,
// которых там ещё нет. Повторная регистрация того же шаблона — no-op
// (idempotent). Рекурсивный вход в процедуру — no-op с записью в лог,
// existing не трогается; условие не считается ошибкой вызова.
func (r *Registrar) RegisterEntityTypes(ctx context.Context, existing map[string]TypeDescriptor) error {
	if !r.registering.CompareAndSwap(false, true) {
		logs.Logger.Warn("recursive entity type registration detected, skipping")
		return nil
	}
	defer r.registering.Store(false)

	templates, err := r.templates.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}

	for _, tpl := range templates {
		if _, ok := existing[tpl.ID]; ok {
			continue
		}
		if tpl.Status == store.StatusDisabled {
			continue
		}

		desc := Describe(tpl)
		// проверяем, что рантайм-артефакт типа существует и загружаем;
		// сломанный шаблон пропускаем, остальные регистрируем дальше
		if _, ok := r.factories[desc.Handler]; !ok {
			logs.Logger.Errorf("template %s: handler %q is not loadable, skipping registration", tpl.ID, desc.Handler)
			continue
		}
		existing[tpl.ID] = desc
	}
	return nil
}

// NewInstance строит транзиентный Instance из дескриптора и сырых значений.
// Любой провал конструирования — (nil, false) плюс лог, не паника и не ошибка
// наружу.
func (r *Registrar) NewInstance(desc TypeDescriptor, values map[string]any) (*Instance, bool) {
	factory, ok := r.factories[desc.Handler]
	if !ok {
		logs.Logger.Errorf("entity type %s: no factory for handler %q", desc.EntityType, desc.Handler)
		return nil, false
	}
	inst, err := factory(desc, values)
	if err != nil {
		logs.Logger.Errorf("entity type %s: instance construction failed: %v", desc.EntityType, err)
		return nil, false
	}
	return inst, true
}
