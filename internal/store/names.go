package store

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Ключевые слова, которые нельзя отдавать в имена полей как есть.
var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// Движковые колонки каждой динамической таблицы.
var engineColumns = map[string]struct{}{
	"id": {}, "tenant_id": {}, "project_id": {}, "created_at": {}, "updated_at": {},
}

func isEngineColumn(s string) bool { _, ok := engineColumns[strings.ToLower(s)]; return ok }

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidIdent проверяет машинное имя (шаблона или поля):
// snake_case, не ключевое слово, не движковая колонка.
func ValidIdent(s string) bool {
	return identRe.MatchString(s) && !isReserved(s) && !isEngineColumn(s)
}

// DynamicTableName строит имя физической таблицы шаблона из стабильного хэша
// (tenant, project, name). Хэш исключает коллизии между tenant'ами и позволяет
// переиспользовать одно имя шаблона в разных tenant/project.
func DynamicTableName(tenantID, projectID, name string) string {
	h := sha256.Sum256([]byte(tenantID + "\x00" + projectID + "\x00" + strings.ToLower(name)))
	base := strings.ToLower(name)
	// лимит идентификатора Postgres — 63 байта; хэш важнее читаемой части
	if len(base) > 40 {
		base = base[:40]
	}
	return "ent_" + base + "_" + hex.EncodeToString(h[:6])
}

// sqlIdent цитирует идентификатор для DDL/DML.
func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }
