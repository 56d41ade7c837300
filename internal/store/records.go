package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record — одна строка динамической таблицы в плоском виде
// (движковые колонки + значения полей).
type Record map[string]any

// Match — результат поиска референсируемых сущностей.
type Match struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ValidateRecord гоняет значения через реестр типов. Ошибки собираются по
// всем полям разом — пакетный отчёт, не первая попавшаяся.
// checkRequired=false — частичное обновление: отсутствующие поля не требуем.
func (s *Store) ValidateRecord(fields []EntityField, data map[string]any, checkRequired bool) []FieldError {
	var errs []FieldError

	byName := make(map[string]EntityField, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	if checkRequired {
		for _, f := range fields {
			if !f.Required {
				continue
			}
			if _, ok := data[f.Name]; !ok {
				errs = append(errs, FieldError{
					Code: ErrCodeRequired, Field: f.Name,
					Message: fmt.Sprintf("field %q is required", f.Name),
				})
			}
		}
	}

	for name, val := range data {
		f, ok := byName[name]
		if !ok {
			if isEngineColumn(name) {
				errs = append(errs, FieldError{
					Code: ErrCodeInvalidValue, Field: name,
					Message: fmt.Sprintf("column %q is engine-owned and read-only", name),
				})
				continue
			}
			errs = append(errs, FieldError{
				Code: ErrCodeInvalidValue, Field: name,
				Message: fmt.Sprintf("unknown field %q", name),
			})
			continue
		}
		for _, msg := range s.types.ValidateValue(f.FieldType, val, s.fieldSettings(f)) {
			errs = append(errs, FieldError{Code: ErrCodeInvalidValue, Field: name, Message: msg})
		}
	}
	return errs
}

// fieldSettings — настройки поля с учётом флага required из самой записи поля.
func (s *Store) fieldSettings(f EntityField) map[string]any {
	out := make(map[string]any, len(f.Settings)+1)
	for k, v := range f.Settings {
		out[k] = v
	}
	if f.Required {
		out["required"] = true
	}
	return out
}

// toColumn готовит значение поля к записи в его колонку.
func (s *Store) toColumn(f EntityField, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s.fieldMultiple(&f) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return b, nil
	}
	return v, nil
}

// fromColumn раскодирует сырое значение колонки обратно в плоский вид.
func (s *Store) fromColumn(f EntityField, raw any) any {
	if raw == nil {
		return nil
	}
	if b, ok := raw.([]byte); ok {
		if s.fieldMultiple(&f) {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return string(b)
	}
	return raw
}

// InsertRecord валидирует, нормализует и пишет запись в динамическую таблицу.
func (s *Store) InsertRecord(ctx context.Context, tpl *EntityTemplate, fields []EntityField, data map[string]any) (Record, []FieldError, error) {
	if verrs := s.ValidateRecord(fields, data, true); len(verrs) > 0 {
		return nil, verrs, nil
	}

	id := s.newID()
	now := time.Now().UTC()

	cols := []string{`"id"`, `"tenant_id"`, `"project_id"`, `"created_at"`, `"updated_at"`}
	args := []any{id, tpl.TenantID, tpl.ProjectID, now, now}
	rec := Record{
		"id": id, "tenant_id": tpl.TenantID, "project_id": tpl.ProjectID,
		"created_at": now, "updated_at": now,
	}

	for _, f := range fields {
		raw, ok := data[f.Name]
		if !ok {
			continue
		}
		processed := s.types.ProcessValue(f.FieldType, raw, s.fieldSettings(f))
		colVal, err := s.toColumn(f, processed)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, sqlIdent(f.Name))
		args = append(args, colVal)
		rec[f.Name] = processed
	}

	ph := make([]string, len(args))
	for i := range args {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("insert into %s (%s) values (%s)",
		sqlIdent(tpl.TableName()), strings.Join(cols, ", "), strings.Join(ph, ", ")), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil, nil
}

func recordSelectCols(fields []EntityField) string {
	cols := []string{`"id"`, `"tenant_id"`, `"project_id"`, `"created_at"`, `"updated_at"`}
	for _, f := range fields {
		cols = append(cols, sqlIdent(f.Name))
	}
	return strings.Join(cols, ", ")
}

func (s *Store) scanRecord(rows interface{ Scan(...any) error }, fields []EntityField) (Record, error) {
	var id, tenantID, projectID string
	var createdAt, updatedAt time.Time

	holders := []any{&id, &tenantID, &projectID, &createdAt, &updatedAt}
	fieldVals := make([]any, len(fields))
	for i := range fields {
		holders = append(holders, &fieldVals[i])
	}
	if err := rows.Scan(holders...); err != nil {
		return nil, err
	}

	rec := Record{
		"id": id, "tenant_id": tenantID, "project_id": projectID,
		"created_at": createdAt, "updated_at": updatedAt,
	}
	for i, f := range fields {
		rec[f.Name] = s.fromColumn(f, fieldVals[i])
	}
	return rec, nil
}

// GetRecord — запись по id; отсутствие — (nil, nil).
func (s *Store) GetRecord(ctx context.Context, tpl *EntityTemplate, fields []EntityField, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"select %s from %s where id = $1 and tenant_id = $2",
		recordSelectCols(fields), sqlIdent(tpl.TableName())), id, tpl.TenantID)
	rec, err := s.scanRecord(row, fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListRecords — страница записей, свежие сверху.
func (s *Store) ListRecords(ctx context.Context, tpl *EntityTemplate, fields []EntityField, limit, offset int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"select %s from %s where tenant_id = $1 order by created_at desc, id limit $2 offset $3",
		recordSelectCols(fields), sqlIdent(tpl.TableName())), tpl.TenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := s.scanRecord(rows, fields)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateRecord применяет частичное обновление значений полей.
// Отсутствующая запись — (nil, nil, nil).
func (s *Store) UpdateRecord(ctx context.Context, tpl *EntityTemplate, fields []EntityField, id string, patch map[string]any) (Record, []FieldError, error) {
	if verrs := s.ValidateRecord(fields, patch, false); len(verrs) > 0 {
		return nil, verrs, nil
	}

	byName := make(map[string]EntityField, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	set := []string{`"updated_at" = $1`}
	args := []any{time.Now().UTC()}
	n := 2
	for name, raw := range patch {
		f := byName[name]
		processed := s.types.ProcessValue(f.FieldType, raw, s.fieldSettings(f))
		colVal, err := s.toColumn(f, processed)
		if err != nil {
			return nil, nil, err
		}
		set = append(set, fmt.Sprintf("%s = $%d", sqlIdent(name), n))
		args = append(args, colVal)
		n++
	}

	args = append(args, id, tpl.TenantID)
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"update %s set %s where id = $%d and tenant_id = $%d",
		sqlIdent(tpl.TableName()), strings.Join(set, ", "), n, n+1), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("update record: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, nil, nil
	}

	rec, err := s.GetRecord(ctx, tpl, fields, id)
	return rec, nil, err
}

// DeleteRecord — жёсткое удаление строки. false — записи не было.
func (s *Store) DeleteRecord(ctx context.Context, tpl *EntityTemplate, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"delete from %s where id = $1 and tenant_id = $2", sqlIdent(tpl.TableName())), id, tpl.TenantID)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// PickLabelField выбирает поле-метку сущности (для ссылок и поиска).
func PickLabelField(fields []EntityField) string {
	candidates := []string{"name", "title", "label", "email", "code"}
	for _, c := range candidates {
		for _, f := range fields {
			if f.Name == c && f.FieldType == "string" {
				return c
			}
		}
	}
	for _, f := range fields {
		if f.FieldType == "string" {
			return f.Name
		}
	}
	return ""
}

// SearchRecords — регистронезависимый substring-поиск по полю-метке,
// tenant-scoped и ограниченный limit'ом. Пустое labelField — поиск по id.
func (s *Store) SearchRecords(ctx context.Context, tpl *EntityTemplate, labelField, query string, limit int) ([]Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	col := `"id"`
	if labelField != "" {
		if !ValidIdent(labelField) {
			return nil, fmt.Errorf("bad label field %q", labelField)
		}
		col = sqlIdent(labelField)
	}

	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`select "id", coalesce(%s::text, '') from %s
		 where tenant_id = $1 and lower(coalesce(%s::text, '')) like $2
		 order by 2, 1 limit $3`,
		col, sqlIdent(tpl.TableName()), col), tpl.TenantID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Label); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
