package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"lekalo/internal/fieldtype"
)

func TestCreateTableDDL(t *testing.T) {
	ddl := createTableDDL("ent_person_abc123")

	assert.Contains(t, ddl, `create table if not exists "ent_person_abc123"`)
	for _, col := range []string{"id", "tenant_id", "project_id", "created_at", "updated_at"} {
		assert.Contains(t, ddl, `"`+col+`"`)
	}
	// пользовательских колонок при создании нет
	assert.Equal(t, 5, strings.Count(ddl, "\n  "))
}

func TestColumnType(t *testing.T) {
	varchar := fieldtype.StorageSchema{DBType: "varchar", Length: 255}

	assert.Equal(t, "varchar(255)", columnType(varchar, false))
	assert.Equal(t, "varchar(255)", columnType(fieldtype.StorageSchema{DBType: "varchar"}, false))
	assert.Equal(t, "integer", columnType(fieldtype.StorageSchema{DBType: "int"}, false))
	assert.Equal(t, "jsonb", columnType(fieldtype.StorageSchema{DBType: "jsonb"}, false))
	assert.Equal(t, "text", columnType(fieldtype.StorageSchema{DBType: "mystery"}, false))

	// multiple всегда едет в jsonb
	assert.Equal(t, "jsonb", columnType(varchar, true))
	assert.Equal(t, "jsonb", columnType(fieldtype.StorageSchema{DBType: "int"}, true))
}

func TestAddColumnDDL(t *testing.T) {
	ddl := addColumnDDL("ent_x_1", "email", fieldtype.StorageSchema{DBType: "varchar", Length: 100}, false)
	assert.Equal(t, `alter table "ent_x_1" add column if not exists "email" varchar(100) null;`, ddl)

	ddl = addColumnDDL("ent_x_1", "tags", fieldtype.StorageSchema{DBType: "varchar", Length: 255}, true)
	assert.Contains(t, ddl, "jsonb")
}

func TestIndexDDL(t *testing.T) {
	ddl := indexDDL("ent_x_1", "owner")
	assert.Equal(t, `create index if not exists "ent_x_1_owner_idx" on "ent_x_1"("owner");`, ddl)
}
