package store

import (
	"fmt"
	"strings"

	"lekalo/internal/fieldtype"
)

// createTableDDL — CREATE TABLE динамической таблицы только с движковыми
// колонками. Пользовательские поля добавляются затем отдельными ALTER.
func createTableDDL(table string) string {
	cols := []string{
		`"id" text primary key`,
		`"tenant_id" text not null`,
		`"project_id" text not null default ''`,
		`"created_at" timestamp with time zone not null`,
		`"updated_at" timestamp with time zone not null`,
	}
	return fmt.Sprintf("create table if not exists %s (\n  %s\n);",
		sqlIdent(table), strings.Join(cols, ",\n  "))
}

func dropTableDDL(table string) string {
	return fmt.Sprintf("drop table if exists %s;", sqlIdent(table))
}

// columnType маппит схему хранения плагина в тип колонки Postgres.
// multiple-значения едут в jsonb независимо от скалярного типа.
func columnType(schema fieldtype.StorageSchema, multiple bool) string {
	if multiple {
		return "jsonb"
	}
	switch schema.DBType {
	case "varchar":
		n := schema.Length
		if n <= 0 {
			n = 255
		}
		return fmt.Sprintf("varchar(%d)", n)
	case "int":
		return "integer"
	case "jsonb":
		return "jsonb"
	default:
		return "text"
	}
}

// addColumnDDL — ALTER под новое поле шаблона.
// Колонка всегда nullable: существующие строки значения не имеют.
func addColumnDDL(table, column string, schema fieldtype.StorageSchema, multiple bool) string {
	return fmt.Sprintf("alter table %s add column if not exists %s %s null;",
		sqlIdent(table), sqlIdent(column), columnType(schema, multiple))
}

// indexDDL — индекс под поля с needs_index (ссылки и т.п.).
func indexDDL(table, column string) string {
	return fmt.Sprintf("create index if not exists %s on %s(%s);",
		sqlIdent(table+"_"+column+"_idx"), sqlIdent(table), sqlIdent(column))
}
