package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ===== META HANDLERS =====

// GET /api/meta/types — доступные типы полей (ключ→label).
func MetaTypesHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Store.Types().AvailableTypes())
	}
}

// GET /api/meta/types/:key — полное описание типа + ui-схема настроек.
func MetaTypeHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		types := a.Store.Types()

		info, ok := types.TypeInfo(key)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Field type not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"info":          info,
			"settings_form": types.SettingsForm(key, nil, "field"),
		})
	}
}
