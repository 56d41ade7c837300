package store

import (
	"context"
)

// LoadEntity — реализация загрузчика целей для резолвера ссылок:
// динамическая сущность по имени шаблона и id. Отсутствие — (nil, nil).
func (s *Store) LoadEntity(ctx context.Context, tenantID, entityName, id string) (map[string]any, error) {
	tpl, err := s.GetTemplateByName(ctx, tenantID, "", entityName)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, nil
	}
	fields, err := s.GetTemplateFields(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	rec, err := s.GetRecord(ctx, tpl, fields, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return map[string]any(rec), nil
}

// SearchEntities — поиск референсируемых записей целевого типа по метке.
func (s *Store) SearchEntities(ctx context.Context, tenantID, entityName, query string, limit int) ([]Match, error) {
	tpl, err := s.GetTemplateByName(ctx, tenantID, "", entityName)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return []Match{}, nil
	}
	fields, err := s.GetTemplateFields(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	return s.SearchRecords(ctx, tpl, PickLabelField(fields), query, limit)
}
