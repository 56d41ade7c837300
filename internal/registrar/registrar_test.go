package registrar

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lekalo/internal/store"
)

type fakeLister struct {
	templates []store.EntityTemplate
	err       error
	// перезаход внутрь регистрации (модель самотриггера при загрузке типа)
	reenter func(ctx context.Context)
	calls   int
}

func (f *fakeLister) ListTemplates(ctx context.Context) ([]store.EntityTemplate, error) {
	f.calls++
	if f.reenter != nil {
		f.reenter(ctx)
	}
	return f.templates, f.err
}

func tpl(id, tenant, name, status string) store.EntityTemplate {
	return store.EntityTemplate{ID: id, TenantID: tenant, Name: name, Status: status}
}

func TestRegisterEntityTypes(t *testing.T) {
	lister := &fakeLister{templates: []store.EntityTemplate{
		tpl("t1", "acme", "person", store.StatusEnabled),
		tpl("t2", "acme", "order", store.StatusEnabled),
		tpl("t3", "acme", "draft", store.StatusDisabled),
	}}
	r := New(lister)

	existing := map[string]TypeDescriptor{}
	require.NoError(t, r.RegisterEntityTypes(context.Background(), existing))

	// disabled-шаблон не регистрируется
	require.Len(t, existing, 2)
	assert.Equal(t, "person", existing["t1"].Bundle)
	assert.Equal(t, DefaultHandler, existing["t1"].Handler)
	assert.Equal(t, existing["t1"].BaseTable+"_field_data", existing["t1"].DataTable)
	assert.Equal(t, "id", existing["t1"].Keys.Primary)
	assert.Equal(t, "project_id", existing["t1"].Keys.Bundle)
}

func TestRegisterEntityTypesIdempotent(t *testing.T) {
	lister := &fakeLister{templates: []store.EntityTemplate{
		tpl("t1", "acme", "person", store.StatusEnabled),
	}}
	r := New(lister)

	existing := map[string]TypeDescriptor{}
	require.NoError(t, r.RegisterEntityTypes(context.Background(), existing))
	first := existing["t1"]

	require.NoError(t, r.RegisterEntityTypes(context.Background(), existing))
	assert.Len(t, existing, 1)
	assert.Equal(t, first, existing["t1"])
}

func TestRegisterEntityTypesRecursionGuard(t *testing.T) {
	lister := &fakeLister{templates: []store.EntityTemplate{
		tpl("t1", "acme", "person", store.StatusEnabled),
	}}
	r := New(lister)

	// листер дергает регистрацию повторно изнутри верхнего вызова
	inner := map[string]TypeDescriptor{"marker": {}}
	lister.reenter = func(ctx context.Context) {
		require.NoError(t, r.RegisterEntityTypes(ctx, inner))
	}

	existing := map[string]TypeDescriptor{}
	require.NoError(t, r.RegisterEntityTypes(context.Background(), existing))

	// вложенный вызов — no-op: его коллекция не тронута, листер вызван один раз
	assert.Len(t, inner, 1)
	assert.Equal(t, 1, lister.calls)
	// верхний вызов отработал полностью
	assert.Len(t, existing, 1)

	// после снятия guard'а регистрация снова доступна
	lister.reenter = nil
	require.NoError(t, r.RegisterEntityTypes(context.Background(), inner))
	assert.Contains(t, inner, "t1")
}

func TestRegisterEntityTypesListerError(t *testing.T) {
	lister := &fakeLister{err: errors.New("db down")}
	r := New(lister)

	err := r.RegisterEntityTypes(context.Background(), map[string]TypeDescriptor{})
	require.Error(t, err)

	// guard снят и на ошибочном пути
	lister.err = nil
	require.NoError(t, r.RegisterEntityTypes(context.Background(), map[string]TypeDescriptor{}))
}

func TestRegisterEntityTypesMissingHandler(t *testing.T) {
	lister := &fakeLister{templates: []store.EntityTemplate{
		tpl("t1", "acme", "person", store.StatusEnabled),
		tpl("t2", "acme", "order", store.StatusEnabled),
	}}
	// регистратор без загружаемых обработчиков: сломанные шаблоны
	// пропускаются, остальная регистрация не прерывается
	r := &Registrar{templates: lister, factories: map[string]InstanceFactory{}}

	existing := map[string]TypeDescriptor{}
	require.NoError(t, r.RegisterEntityTypes(context.Background(), existing))
	assert.Empty(t, existing)
}

func TestNewInstance(t *testing.T) {
	r := New(&fakeLister{})
	desc := Describe(tpl("t1", "acme", "person", store.StatusEnabled))

	inst, ok := r.NewInstance(desc, map[string]any{"name": "Ivan"})
	require.True(t, ok)
	assert.Equal(t, "Ivan", inst.Values["name"])
	assert.Equal(t, desc, inst.Descriptor)

	// провал фабрики — (nil, false), не паника
	inst, ok = r.NewInstance(desc, nil)
	assert.False(t, ok)
	assert.Nil(t, inst)

	// неизвестный обработчик
	desc.Handler = "exotic"
	inst, ok = r.NewInstance(desc, map[string]any{})
	assert.False(t, ok)
	assert.Nil(t, inst)
}

func TestDescribe(t *testing.T) {
	template := store.EntityTemplate{
		ID: "t9", TenantID: "acme", ProjectID: "crm", Name: "person", Status: store.StatusEnabled,
	}
	desc := Describe(template)

	assert.Equal(t, "t9", desc.EntityType)
	assert.Equal(t, "person", desc.Bundle)
	assert.Equal(t, "crm", desc.ProjectID)
	assert.Equal(t, template.TableName(), desc.BaseTable)
	assert.Equal(t, desc.BaseTable+"_revision", desc.RevisionTable)
}
