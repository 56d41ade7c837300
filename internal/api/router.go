// api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter собирает маршруты шлюза поверх движка.
func NewRouter(a *API) *gin.Engine {
	r := gin.Default()

	r.GET("/api/meta/types", MetaTypesHandler(a))
	r.GET("/api/meta/types/:key", MetaTypeHandler(a))

	apiGroup := r.Group("/api")
	{
		// метаданные: шаблоны и поля
		apiGroup.POST("/:tenant/templates", CreateTemplateHandler(a))
		apiGroup.GET("/:tenant/templates", ListTemplatesHandler(a))
		apiGroup.GET("/:tenant/templates/:name", GetTemplateHandler(a))
		apiGroup.PATCH("/:tenant/templates/:name", UpdateTemplateHandler(a))
		apiGroup.DELETE("/:tenant/templates/:name", DeleteTemplateHandler(a))
		apiGroup.POST("/:tenant/templates/:name/fields", AddFieldHandler(a))
		apiGroup.GET("/:tenant/templates/:name/fields", ListFieldsHandler(a))

		// служебные маршруты сущностей — СНАЧАЛА
		apiGroup.GET("/:tenant/:entity/_refs", ReferenceFieldsHandler(a))
		apiGroup.GET("/:tenant/:entity/_lookup", LookupHandler(a))

		// обычные CRUD по динамическим записям
		apiGroup.POST("/:tenant/:entity", CreateRecordHandler(a))
		apiGroup.GET("/:tenant/:entity", ListRecordsHandler(a))
		apiGroup.GET("/:tenant/:entity/:id", GetRecordHandler(a))
		apiGroup.PUT("/:tenant/:entity/:id", UpdateRecordHandler(a))
		apiGroup.DELETE("/:tenant/:entity/:id", DeleteRecordHandler(a))
	}

	return r
}

// RunServer — запуск HTTP-сервера шлюза.
func RunServer(addr string, a *API) error {
	return NewRouter(a).Run(addr)
}
