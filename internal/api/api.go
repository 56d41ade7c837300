package api

import (
	"net/http"

	"lekalo/internal/refresolve"
	"lekalo/internal/registrar"
	"lekalo/internal/store"
)

// API связывает движок с HTTP-шлюзом. Вся жёсткая логика живёт в сторе,
// регистраторе и резолвере; хендлеры только достают параметры и
// заворачивают plain-данные движка в JSON.
type API struct {
	Store     *store.Store
	Resolver  *refresolve.Resolver
	Registrar *registrar.Registrar
	Access    AccessChecker
}

// Типы для проверок доступа к метаданным.
const entityTemplateType = "entity_template"

// statusForErrors: конфликтные коды → 409, остальное → 400.
func statusForErrors(errs []store.FieldError) int {
	for _, e := range errs {
		if e.Code == store.ErrCodeDuplicate {
			return http.StatusConflict
		}
	}
	return http.StatusBadRequest
}
