package store

import (
	"time"

	"lekalo/internal/fieldtype"
)

// Статусы шаблона.
const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

// TemplateSettings — поведенческие флаги шаблона.
type TemplateSettings struct {
	Translatable bool `json:"translatable"`
	Revisionable bool `json:"revisionable"`
	Publishable  bool `json:"publishable"`
}

// EntityTemplate — операторское описание динамического типа сущности.
// Name — машинный идентификатор, неизменяемый после создания,
// уникальный в рамках (tenant, project).
type EntityTemplate struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"`
	ProjectID   string           `json:"project_id,omitempty"` // пусто = без project-скоупа
	Name        string           `json:"name"`
	Label       string           `json:"label"`
	Description string           `json:"description,omitempty"`
	Status      string           `json:"status"`
	Settings    TemplateSettings `json:"settings"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName — детерминированное имя физической таблицы шаблона.
func (t *EntityTemplate) TableName() string {
	return DynamicTableName(t.TenantID, t.ProjectID, t.Name)
}

// EntityField — одно типизированное поле шаблона.
// Name уникально в рамках шаблона и неизменяемо после создания.
type EntityField struct {
	ID         string             `json:"id"`
	TemplateID string             `json:"template_id"`
	Name       string             `json:"name"`
	FieldType  string             `json:"field_type"`
	Label      string             `json:"label"`
	Weight     int                `json:"weight"`
	Settings   fieldtype.Settings `json:"settings"`
	Required   bool               `json:"required"`
	CreatedAt  time.Time          `json:"created_at"`
}

// TemplatePatch — частичное обновление шаблона.
// Name и TenantID здесь отсутствуют сознательно: они неизменяемы.
type TemplatePatch struct {
	Label       *string           `json:"label,omitempty"`
	Description *string           `json:"description,omitempty"`
	Status      *string           `json:"status,omitempty"`
	Settings    *TemplateSettings `json:"settings,omitempty"`
}

// FieldError — одна структурная ошибка валидации.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок валидации.
const (
	ErrCodeRequired     = "required"
	ErrCodeInvalidValue = "invalid_value"
	ErrCodeUnknownType  = "unknown_field_type"
	ErrCodeBadName      = "bad_name"
	ErrCodeDuplicate    = "duplicate"
)
