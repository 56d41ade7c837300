package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"lekalo/internal/fieldtype"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
)

// Sentinel-ошибки стора.
var (
	ErrTemplateNotFound = errors.New("template not found")
)

// Store — реестр шаблонов/полей поверх Postgres.
// Метаданные и DDL применяются в одной транзакции: DDL в Postgres
// транзакционный, так что частичное применение невозможно.
type Store struct {
	db    *sql.DB
	types *fieldtype.Registry

	entMu   sync.Mutex
	entropy io.Reader
}

func New(db *sql.DB, types *fieldtype.Registry) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{
		db:      db,
		types:   types,
		entropy: ulid.Monotonic(src, 0),
	}
}

// Types — реестр типов полей, которым пользуется стор.
func (s *Store) Types() *fieldtype.Registry { return s.types }

// DB отдаёт низлежащее соединение (для record-стора и тестов).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) newID() string {
	s.entMu.Lock()
	defer s.entMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// isUniqueViolation — нарушение unique-констрейнта (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ===== шаблоны =====

// LintTemplate — структурные проверки шаблона до записи.
func (s *Store) LintTemplate(tpl *EntityTemplate) []FieldError {
	var errs []FieldError
	if !ValidIdent(tpl.Name) {
		errs = append(errs, FieldError{
			Code: ErrCodeBadName, Field: "name",
			Message: fmt.Sprintf("name %q must be snake_case and must not collide with reserved words", tpl.Name),
		})
	}
	if strings.TrimSpace(tpl.TenantID) == "" {
		errs = append(errs, FieldError{Code: ErrCodeRequired, Field: "tenant_id", Message: "tenant_id is required"})
	}
	if tpl.Status != "" && tpl.Status != StatusEnabled && tpl.Status != StatusDisabled {
		errs = append(errs, FieldError{
			Code: ErrCodeInvalidValue, Field: "status",
			Message: fmt.Sprintf("status %q is not allowed (enabled|disabled)", tpl.Status),
		})
	}
	return errs
}

// CreateTemplate пишет метаданные и создаёт динамическую таблицу (только
// движковые колонки; поля добавляются потом через AddField). Дубликат
// (tenant, project, name) возвращается как ошибка валидации — уникальный
// индекс сериализует гонку, проигравший не перезаписывает.
func (s *Store) CreateTemplate(ctx context.Context, tpl *EntityTemplate) (string, []FieldError, error) {
	if verrs := s.LintTemplate(tpl); len(verrs) > 0 {
		return "", verrs, nil
	}

	id := s.newID()
	now := time.Now().UTC()
	if tpl.Status == "" {
		tpl.Status = StatusEnabled
	}
	settings, err := json.Marshal(tpl.Settings)
	if err != nil {
		return "", nil, fmt.Errorf("marshal settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`insert into entity_templates (id, tenant_id, project_id, name, label, description, status, settings, created_at, updated_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		id, tpl.TenantID, tpl.ProjectID, tpl.Name, tpl.Label, tpl.Description, tpl.Status, settings, now)
	if err != nil {
		if isUniqueViolation(err) {
			return "", []FieldError{{
				Code: ErrCodeDuplicate, Field: "name",
				Message: fmt.Sprintf("template %q already exists for this tenant/project", tpl.Name),
			}}, nil
		}
		return "", nil, fmt.Errorf("insert template: %w", err)
	}

	// DDL в той же транзакции: откат метаданных при провале DDL — бесплатно.
	if _, err := tx.ExecContext(ctx, createTableDDL(tpl.TableName())); err != nil {
		return "", nil, fmt.Errorf("create dynamic table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("commit: %w", err)
	}

	tpl.ID = id
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return id, nil, nil
}

const templateCols = `id, tenant_id, project_id, name, label, description, status, settings, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*EntityTemplate, error) {
	var t EntityTemplate
	var settings []byte
	err := row.Scan(&t.ID, &t.TenantID, &t.ProjectID, &t.Name, &t.Label,
		&t.Description, &t.Status, &settings, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return &t, nil
}

// GetTemplate — шаблон по id; отсутствие — (nil, nil), не ошибка.
func (s *Store) GetTemplate(ctx context.Context, id string) (*EntityTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+templateCols+` from entity_templates where id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// GetTemplateByName — шаблон по (tenant, project, name); отсутствие — (nil, nil).
func (s *Store) GetTemplateByName(ctx context.Context, tenantID, projectID, name string) (*EntityTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+templateCols+` from entity_templates
		 where tenant_id = $1 and project_id = $2 and name = $3`,
		tenantID, projectID, name)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template by name: %w", err)
	}
	return t, nil
}

// ListTemplates — все шаблоны (для регистратора типов).
func (s *Store) ListTemplates(ctx context.Context) ([]EntityTemplate, error) {
	return s.listTemplates(ctx, `select `+templateCols+` from entity_templates order by tenant_id, project_id, name`)
}

// ListTenantTemplates — шаблоны одного tenant'а.
func (s *Store) ListTenantTemplates(ctx context.Context, tenantID string) ([]EntityTemplate, error) {
	return s.listTemplates(ctx,
		`select `+templateCols+` from entity_templates where tenant_id = $1 order by project_id, name`, tenantID)
}

func (s *Store) listTemplates(ctx context.Context, query string, args ...any) ([]EntityTemplate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []EntityTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateTemplate применяет частичное обновление. Name и tenant_id менять
// нельзя — их в TemplatePatch просто нет. false — шаблон не найден.
func (s *Store) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (bool, error) {
	if patch.Status != nil && *patch.Status != StatusEnabled && *patch.Status != StatusDisabled {
		return false, fmt.Errorf("status %q is not allowed", *patch.Status)
	}

	set := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	n := 2
	add := func(expr string, v any) {
		set = append(set, fmt.Sprintf(expr, n))
		args = append(args, v)
		n++
	}
	if patch.Label != nil {
		add("label = $%d", *patch.Label)
	}
	if patch.Description != nil {
		add("description = $%d", *patch.Description)
	}
	if patch.Status != nil {
		add("status = $%d", *patch.Status)
	}
	if patch.Settings != nil {
		b, err := json.Marshal(patch.Settings)
		if err != nil {
			return false, fmt.Errorf("marshal settings: %w", err)
		}
		add("settings = $%d", b)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`update entity_templates set %s where id = $%d`, strings.Join(set, ", "), n), args...)
	if err != nil {
		return false, fmt.Errorf("update template: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// DeleteTemplate удаляет метаданные (поля каскадом) и роняет динамическую
// таблицу. Необратимо. false — шаблон не найден.
func (s *Store) DeleteTemplate(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`select tenant_id, project_id, name from entity_templates where id = $1 for update`, id)
	var tenantID, projectID, name string
	if err := row.Scan(&tenantID, &projectID, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock template: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `delete from entity_templates where id = $1`, id); err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	if _, err := tx.ExecContext(ctx, dropTableDDL(DynamicTableName(tenantID, projectID, name))); err != nil {
		return false, fmt.Errorf("drop dynamic table: %w", err)
	}
	return true, tx.Commit()
}

// ===== поля =====

// LintField — структурные проверки поля до записи.
func (s *Store) LintField(f *EntityField) []FieldError {
	var errs []FieldError
	if !ValidIdent(f.Name) {
		errs = append(errs, FieldError{
			Code: ErrCodeBadName, Field: "name",
			Message: fmt.Sprintf("field name %q must be snake_case and must not collide with engine columns", f.Name),
		})
	}
	if !s.types.HasType(f.FieldType) {
		errs = append(errs, FieldError{
			Code: ErrCodeUnknownType, Field: "field_type",
			Message: fmt.Sprintf("Unknown field type: %s", f.FieldType),
		})
		return errs
	}
	if f.FieldType == "reference" {
		if ref := fieldtype.ParseReferenceSettings(f.Settings); ref.TargetType == "" {
			errs = append(errs, FieldError{
				Code: ErrCodeRequired, Field: "settings.target_type",
				Message: "reference field requires settings.target_type",
			})
		}
	}
	return errs
}

// fieldMultiple: jsonb-колонка нужна, когда тип умеет multiple и поле так настроено.
func (s *Store) fieldMultiple(f *EntityField) bool {
	p, ok := s.types.Plugin(f.FieldType)
	if !ok {
		return false
	}
	return p.SupportsMultiple() && f.Settings.Multiple()
}

// AddField валидирует тип по реестру, пишет строку в entity_fields и в той же
// транзакции добавляет колонку в динамическую таблицу. Имя поля после
// создания неизменяемо.
func (s *Store) AddField(ctx context.Context, templateID string, f *EntityField) (string, []FieldError, error) {
	if verrs := s.LintField(f); len(verrs) > 0 {
		return "", verrs, nil
	}

	tpl, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return "", nil, err
	}
	if tpl == nil {
		return "", nil, ErrTemplateNotFound
	}

	schema, _ := s.types.StorageSchema(f.FieldType)
	id := s.newID()
	now := time.Now().UTC()
	settings, err := json.Marshal(f.Settings)
	if err != nil {
		return "", nil, fmt.Errorf("marshal settings: %w", err)
	}
	if f.Settings == nil {
		settings = []byte(`{}`)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`insert into entity_fields (id, template_id, name, field_type, label, weight, settings, required, created_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		id, templateID, f.Name, f.FieldType, f.Label, f.Weight, settings, f.Required, now)
	if err != nil {
		if isUniqueViolation(err) {
			return "", []FieldError{{
				Code: ErrCodeDuplicate, Field: "name",
				Message: fmt.Sprintf("field %q already exists in template", f.Name),
			}}, nil
		}
		return "", nil, fmt.Errorf("insert field: %w", err)
	}

	table := tpl.TableName()
	multiple := s.fieldMultiple(f)
	if _, err := tx.ExecContext(ctx, addColumnDDL(table, f.Name, schema, multiple)); err != nil {
		return "", nil, fmt.Errorf("add column: %w", err)
	}
	if p, _ := s.types.Plugin(f.FieldType); p != nil && p.NeedsIndex() && !multiple {
		if _, err := tx.ExecContext(ctx, indexDDL(table, f.Name)); err != nil {
			return "", nil, fmt.Errorf("create index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("commit: %w", err)
	}

	f.ID = id
	f.TemplateID = templateID
	f.CreatedAt = now
	return id, nil, nil
}

// GetTemplateFields — поля шаблона, отсортированные по weight, затем name.
func (s *Store) GetTemplateFields(ctx context.Context, templateID string) ([]EntityField, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, template_id, name, field_type, label, weight, settings, required, created_at
		 from entity_fields where template_id = $1 order by weight, name`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	var out []EntityField
	for rows.Next() {
		var f EntityField
		var settings []byte
		if err := rows.Scan(&f.ID, &f.TemplateID, &f.Name, &f.FieldType, &f.Label,
			&f.Weight, &settings, &f.Required, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		if len(settings) > 0 {
			if err := json.Unmarshal(settings, &f.Settings); err != nil {
				return nil, fmt.Errorf("unmarshal field settings: %w", err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
