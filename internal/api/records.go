package api

import (
	"net/http"
	"strconv"
	"strings"

	"lekalo/internal/store"

	"github.com/gin-gonic/gin"
)

// loadEntity достаёт шаблон и поля по имени сущности из пути,
// отвечая 404 самостоятельно.
func (a *API) loadEntity(c *gin.Context) (*store.EntityTemplate, []store.EntityField, bool) {
	tenant := c.Param("tenant")
	name := c.Param("entity")

	tpl, err := a.Store.GetTemplateByName(c.Request.Context(), tenant, c.Query("project"), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Template load failed"})
		return nil, nil, false
	}
	if tpl == nil || tpl.Status == store.StatusDisabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return nil, nil, false
	}

	fields, err := a.Store.GetTemplateFields(c.Request.Context(), tpl.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Field list failed"})
		return nil, nil, false
	}
	return tpl, fields, true
}

// POST /api/:tenant/:entity
func CreateRecordHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		tpl, fields, ok := a.loadEntity(c)
		if !ok {
			return
		}
		if !a.requireAccess(c, tpl.TenantID, tpl.ProjectID, tpl.Name, OpCreate) {
			return
		}

		rec, verrs, err := a.Store.InsertRecord(c.Request.Context(), tpl, fields, obj)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Record create failed"})
			return
		}
		if len(verrs) > 0 {
			c.JSON(statusForErrors(verrs), gin.H{"errors": verrs})
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

// GET /api/:tenant/:entity
func ListRecordsHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tpl, fields, ok := a.loadEntity(c)
		if !ok {
			return
		}
		if !a.requireAccess(c, tpl.TenantID, tpl.ProjectID, tpl.Name, OpRead) {
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		recs, err := a.Store.ListRecords(c.Request.Context(), tpl, fields, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Record list failed"})
			return
		}
		if recs == nil {
			recs = []store.Record{}
		}
		c.JSON(http.StatusOK, recs)
	}
}

// GET /api/:tenant/:entity/:id
// ?resolve=1 — развернуть ссылочные поля (read-time проекция).
func GetRecordHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tpl, fields, ok := a.loadEntity(c)
		if !ok {
			return
		}
		if !a.requireAccess(c, tpl.TenantID, tpl.ProjectID, tpl.Name, OpRead) {
			return
		}

		rec, err := a.Store.GetRecord(c.Request.Context(), tpl, fields, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Record load failed"})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}

		if c.Query("resolve") == "1" {
			refFields, err := a.Resolver.GetEntityReferenceFields(c.Request.Context(), tpl.TenantID, tpl.Name)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Reference introspection failed"})
				return
			}
			resolved, err := a.Resolver.ResolveEntityReferences(c.Request.Context(), tpl.TenantID, tpl.Name, rec, refFields)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Reference resolution failed"})
				return
			}
			c.JSON(http.StatusOK, resolved)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// PUT /api/:tenant/:entity/:id
func UpdateRecordHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		tpl, fields, ok := a.loadEntity(c)
		if !ok {
			return
		}
		if !a.requireAccess(c, tpl.TenantID, tpl.ProjectID, tpl.Name, OpUpdate) {
			return
		}

		rec, verrs, err := a.Store.UpdateRecord(c.Request.Context(), tpl, fields, c.Param("id"), patch)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Record update failed"})
			return
		}
		if len(verrs) > 0 {
			c.JSON(statusForErrors(verrs), gin.H{"errors": verrs})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// DELETE /api/:tenant/:entity/:id
func DeleteRecordHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tpl, _, ok := a.loadEntity(c)
		if !ok {
			return
		}
		if !a.requireAccess(c, tpl.TenantID, tpl.ProjectID, tpl.Name, OpDelete) {
			return
		}

		ok, err := a.Store.DeleteRecord(c.Request.Context(), tpl, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Record delete failed"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GET /api/:tenant/:entity/_refs — интроспекция ссылочных полей.
// Шаблон без ссылочных полей — пустой объект, не ошибка.
func ReferenceFieldsHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")
		if !a.requireAccess(c, tenant, c.Query("project"), c.Param("entity"), OpRead) {
			return
		}

		refs, err := a.Resolver.GetEntityReferenceFields(c.Request.Context(), tenant, c.Param("entity"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Reference introspection failed"})
			return
		}
		c.JSON(http.StatusOK, refs)
	}
}

// GET /api/:tenant/:entity/_lookup?q=iva&limit=10 — кандидаты для ссылок:
// регистронезависимый substring по полю-метке. С параметром field=<имя>
// цель берётся из настроек ссылочного поля самой сущности.
func LookupHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")
		entity := c.Param("entity")
		if !a.requireAccess(c, tenant, c.Query("project"), entity, OpRead) {
			return
		}

		q := strings.TrimSpace(c.DefaultQuery("q", ""))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		target := entity
		if fieldName := c.Query("field"); fieldName != "" {
			refs, err := a.Resolver.GetEntityReferenceFields(c.Request.Context(), tenant, entity)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Reference introspection failed"})
				return
			}
			ref, ok := refs[fieldName]
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "Reference field not found"})
				return
			}
			target = ref.TargetType
		}

		matches, err := a.Resolver.SearchReferencableEntities(c.Request.Context(), target, q, nil, tenant, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
			return
		}
		if matches == nil {
			matches = []store.Match{}
		}
		c.JSON(http.StatusOK, matches)
	}
}
