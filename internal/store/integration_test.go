package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lekalo/internal/fieldtype"
	"lekalo/internal/pg"
)

// Интеграционный тест гоняет стор против настоящего Postgres в контейнере.
// Включается переменной LEKALO_PG_TEST=1 (нужен docker).
func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	if os.Getenv("LEKALO_PG_TEST") == "" {
		t.Skip("set LEKALO_PG_TEST=1 to run postgres integration tests")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("lekalo"),
		tcpostgres.WithUsername("lekalo"),
		tcpostgres.WithPassword("lekalo"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := pg.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db))
	// миграция идемпотентна
	require.NoError(t, Migrate(ctx, db))

	return New(db, fieldtype.NewDefaultRegistry()), ctx
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(
		`select count(*) from information_schema.tables where table_name = $1`, table).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func mustCreateTemplate(t *testing.T, s *Store, ctx context.Context, tpl *EntityTemplate) {
	t.Helper()
	_, verrs, err := s.CreateTemplate(ctx, tpl)
	require.NoError(t, err)
	require.Empty(t, verrs)
}

func mustAddField(t *testing.T, s *Store, ctx context.Context, templateID string, f *EntityField) {
	t.Helper()
	_, verrs, err := s.AddField(ctx, templateID, f)
	require.NoError(t, err)
	require.Empty(t, verrs)
}

func TestTemplateLifecycle(t *testing.T) {
	s, ctx := newTestStore(t)

	tpl := &EntityTemplate{TenantID: "acme", Name: "person", Label: "Person"}
	mustCreateTemplate(t, s, ctx, tpl)
	assert.NotEmpty(t, tpl.ID)
	assert.Equal(t, StatusEnabled, tpl.Status)
	assert.True(t, tableExists(t, s.DB(), tpl.TableName()))

	// дубликат (tenant, project, name) — ошибка валидации, не перезапись
	dup := &EntityTemplate{TenantID: "acme", Name: "person", Label: "Impostor"}
	_, verrs, err := s.CreateTemplate(ctx, dup)
	require.NoError(t, err)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrCodeDuplicate, verrs[0].Code)

	got, err := s.GetTemplateByName(ctx, "acme", "", "person")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Person", got.Label)

	// то же имя у другого tenant'а живёт отдельно
	other := &EntityTemplate{TenantID: "globex", Name: "person"}
	mustCreateTemplate(t, s, ctx, other)
	assert.NotEqual(t, tpl.TableName(), other.TableName())

	// частичное обновление; name/tenant не изменяемы по построению
	label := "Human"
	status := StatusDisabled
	ok, err := s.UpdateTemplate(ctx, tpl.ID, TemplatePatch{Label: &label, Status: &status})
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Human", got.Label)
	assert.Equal(t, StatusDisabled, got.Status)

	ok, err = s.UpdateTemplate(ctx, "01J00000000000000000000000", TemplatePatch{Label: &label})
	require.NoError(t, err)
	assert.False(t, ok)

	// удаление роняет таблицу и метаданные
	table := tpl.TableName()
	ok, err = s.DeleteTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, tableExists(t, s.DB(), table))

	got, err = s.GetTemplateByName(ctx, "acme", "", "person")
	require.NoError(t, err)
	assert.Nil(t, got)

	// повторное удаление — false
	ok, err = s.DeleteTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFieldLifecycle(t *testing.T) {
	s, ctx := newTestStore(t)

	tpl := &EntityTemplate{TenantID: "acme", Name: "task"}
	mustCreateTemplate(t, s, ctx, tpl)

	mustAddField(t, s, ctx, tpl.ID, &EntityField{Name: "title", FieldType: "string", Weight: 0})
	mustAddField(t, s, ctx, tpl.ID, &EntityField{Name: "assignee", FieldType: "reference", Weight: 10,
		Settings: fieldtype.Settings{"target_type": "person"}})
	mustAddField(t, s, ctx, tpl.ID, &EntityField{Name: "status", FieldType: "list_string", Weight: 5,
		Settings: fieldtype.Settings{"allowed_values": map[string]any{"open": "Open", "done": "Done"}}})

	// дубликат имени поля
	_, verrs, err := s.AddField(ctx, tpl.ID, &EntityField{Name: "title", FieldType: "string"})
	require.NoError(t, err)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrCodeDuplicate, verrs[0].Code)

	// неизвестный шаблон — sentinel
	_, _, err = s.AddField(ctx, "01J00000000000000000000000", &EntityField{Name: "x", FieldType: "string"})
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	// порядок: weight, затем name
	fields, err := s.GetTemplateFields(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "title", fields[0].Name)
	assert.Equal(t, "status", fields[1].Name)
	assert.Equal(t, "assignee", fields[2].Name)

	// настройки пережили round-trip
	assert.Equal(t, "person", fields[2].Settings["target_type"])

	// каскад: удаление шаблона уносит поля
	_, err = s.DeleteTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	fields, err = s.GetTemplateFields(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestRecordLifecycle(t *testing.T) {
	s, ctx := newTestStore(t)

	tpl := &EntityTemplate{TenantID: "acme", Name: "person"}
	mustCreateTemplate(t, s, ctx, tpl)
	mustAddField(t, s, ctx, tpl.ID, &EntityField{Name: "name", FieldType: "string", Required: true})
	mustAddField(t, s, ctx, tpl.ID, &EntityField{Name: "tags", FieldType: "list_string",
		Settings: fieldtype.Settings{
			"multiple":       true,
			"allowed_values": map[string]any{"vip": "VIP", "beta": "Beta"},
		}})
	fields, err := s.GetTemplateFields(ctx, tpl.ID)
	require.NoError(t, err)

	// вставка: нормализация + движковые колонки
	rec, verrs, err := s.InsertRecord(ctx, tpl, fields, map[string]any{
		"name": "  Ivan  ",
		"tags": []any{"vip", "bogus"},
	})
	require.NoError(t, err)
	require.Empty(t, verrs)
	assert.Equal(t, "acme", rec["tenant_id"])
	assert.Equal(t, "Ivan", rec["name"])

	id := rec["id"].(string)

	// multiple-значение пережило jsonb round-trip, невалидный элемент отброшен
	got, err := s.GetRecord(ctx, tpl, fields, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ivan", got["name"])
	assert.Equal(t, []any{"vip"}, got["tags"])

	miss, err := s.GetRecord(ctx, tpl, fields, "nope")
	require.NoError(t, err)
	assert.Nil(t, miss)

	// required при создании
	_, verrs, err = s.InsertRecord(ctx, tpl, fields, map[string]any{"tags": []any{"vip"}})
	require.NoError(t, err)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrCodeRequired, verrs[0].Code)

	// частичное обновление не требует required-полей
	upd, verrs, err := s.UpdateRecord(ctx, tpl, fields, id, map[string]any{"tags": []any{"beta"}})
	require.NoError(t, err)
	require.Empty(t, verrs)
	require.NotNil(t, upd)
	assert.Equal(t, []any{"beta"}, upd["tags"])
	assert.Equal(t, "Ivan", upd["name"])

	// список: свежие сверху
	rec2, _, err := s.InsertRecord(ctx, tpl, fields, map[string]any{"name": "Olga"})
	require.NoError(t, err)
	list, err := s.ListRecords(ctx, tpl, fields, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, rec2["id"], list[0]["id"])

	// поиск по метке: регистронезависимый substring
	matches, err := s.SearchRecords(ctx, tpl, PickLabelField(fields), "IVA", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.Equal(t, "Ivan", matches[0].Label)

	// загрузчик для резолвера ссылок
	target, err := s.LoadEntity(ctx, "acme", "person", id)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, "Ivan", target["name"])

	none, err := s.LoadEntity(ctx, "acme", "ghost", id)
	require.NoError(t, err)
	assert.Nil(t, none)

	// удаление
	ok, err := s.DeleteRecord(ctx, tpl, id)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeleteRecord(ctx, tpl, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
