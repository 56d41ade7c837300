package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Метаданные движка: реестр шаблонов и реестр полей.
// Уникальный индекс сериализует конкурентное создание шаблона с одинаковым
// (tenant, project, name): проигравший получает duplicate, не перезапись.
var metaDDL = []string{
	`create table if not exists entity_templates (
  id text primary key,
  tenant_id text not null,
  project_id text not null default '',
  name text not null,
  label text not null default '',
  description text not null default '',
  status text not null default 'enabled',
  settings jsonb not null default '{}',
  created_at timestamp with time zone not null,
  updated_at timestamp with time zone not null
);`,
	`create unique index if not exists entity_templates_scope_uq
  on entity_templates(tenant_id, project_id, name);`,
	`create table if not exists entity_fields (
  id text primary key,
  template_id text not null references entity_templates(id) on delete cascade,
  name text not null,
  field_type text not null,
  label text not null default '',
  weight integer not null default 0,
  settings jsonb not null default '{}',
  required boolean not null default false,
  created_at timestamp with time zone not null,
  constraint entity_fields_name_uq unique (template_id, name)
);`,
}

// Migrate создаёт таблицы метаданных (idempotent DDL).
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range metaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("meta DDL apply failed: %w", err)
		}
	}
	return nil
}
