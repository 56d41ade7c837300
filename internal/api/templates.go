package api

import (
	"net/http"

	"lekalo/internal/fieldtype"
	"lekalo/internal/store"

	"github.com/gin-gonic/gin"
)

type createTemplateReq struct {
	Name        string                 `json:"name"`
	ProjectID   string                 `json:"project_id"`
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"`
	Settings    store.TemplateSettings `json:"settings"`
}

// POST /api/:tenant/templates
func CreateTemplateHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")

		var req createTemplateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if !a.requireAccess(c, tenant, req.ProjectID, entityTemplateType, OpCreate) {
			return
		}

		tpl := &store.EntityTemplate{
			TenantID:    tenant,
			ProjectID:   req.ProjectID,
			Name:        req.Name,
			Label:       req.Label,
			Description: req.Description,
			Status:      req.Status,
			Settings:    req.Settings,
		}
		_, verrs, err := a.Store.CreateTemplate(c.Request.Context(), tpl)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template create failed"})
			return
		}
		if len(verrs) > 0 {
			c.JSON(statusForErrors(verrs), gin.H{"errors": verrs})
			return
		}
		c.JSON(http.StatusCreated, tpl)
	}
}

// GET /api/:tenant/templates
func ListTemplatesHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")
		if !a.requireAccess(c, tenant, "", entityTemplateType, OpRead) {
			return
		}
		templates, err := a.Store.ListTenantTemplates(c.Request.Context(), tenant)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template list failed"})
			return
		}
		if templates == nil {
			templates = []store.EntityTemplate{}
		}
		c.JSON(http.StatusOK, templates)
	}
}

// GET /api/:tenant/templates/:name
func GetTemplateHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")
		if !a.requireAccess(c, tenant, c.Query("project"), entityTemplateType, OpRead) {
			return
		}

		tpl, err := a.Store.GetTemplateByName(c.Request.Context(), tenant, c.Query("project"), c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template load failed"})
			return
		}
		if tpl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}

		fields, err := a.Store.GetTemplateFields(c.Request.Context(), tpl.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Field list failed"})
			return
		}
		if fields == nil {
			fields = []store.EntityField{}
		}
		c.JSON(http.StatusOK, gin.H{"template": tpl, "fields": fields})
	}
}

// PATCH /api/:tenant/templates/:name
func UpdateTemplateHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")

		var patch store.TemplatePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if !a.requireAccess(c, tenant, c.Query("project"), entityTemplateType, OpUpdate) {
			return
		}

		tpl, err := a.Store.GetTemplateByName(c.Request.Context(), tenant, c.Query("project"), c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template load failed"})
			return
		}
		if tpl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}

		ok, err := a.Store.UpdateTemplate(c.Request.Context(), tpl.ID, patch)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}

		updated, err := a.Store.GetTemplate(c.Request.Context(), tpl.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template load failed"})
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DELETE /api/:tenant/templates/:name — роняет динамическую таблицу, каскадом
// удаляет поля. Необратимо.
func DeleteTemplateHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")
		if !a.requireAccess(c, tenant, c.Query("project"), entityTemplateType, OpDelete) {
			return
		}

		tpl, err := a.Store.GetTemplateByName(c.Request.Context(), tenant, c.Query("project"), c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template load failed"})
			return
		}
		if tpl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}

		ok, err := a.Store.DeleteTemplate(c.Request.Context(), tpl.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template delete failed"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type addFieldReq struct {
	Name     string             `json:"name"`
	Type     string             `json:"field_type"`
	Label    string             `json:"label"`
	Weight   int                `json:"weight"`
	Required bool               `json:"required"`
	Settings fieldtype.Settings `json:"settings"`
}

// POST /api/:tenant/templates/:name/fields
func AddFieldHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")

		var req addFieldReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if !a.requireAccess(c, tenant, c.Query("project"), entityTemplateType, OpUpdate) {
			return
		}

		tpl, err := a.Store.GetTemplateByName(c.Request.Context(), tenant, c.Query("project"), c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template load failed"})
			return
		}
		if tpl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}

		field := &store.EntityField{
			Name:      req.Name,
			FieldType: req.Type,
			Label:     req.Label,
			Weight:    req.Weight,
			Required:  req.Required,
			Settings:  req.Settings,
		}
		_, verrs, err := a.Store.AddField(c.Request.Context(), tpl.ID, field)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Field create failed"})
			return
		}
		if len(verrs) > 0 {
			c.JSON(statusForErrors(verrs), gin.H{"errors": verrs})
			return
		}
		c.JSON(http.StatusCreated, field)
	}
}

// GET /api/:tenant/templates/:name/fields — поля по weight, затем name.
func ListFieldsHandler(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.Param("tenant")
		if !a.requireAccess(c, tenant, c.Query("project"), entityTemplateType, OpRead) {
			return
		}

		tpl, err := a.Store.GetTemplateByName(c.Request.Context(), tenant, c.Query("project"), c.Param("name"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Template load failed"})
			return
		}
		if tpl == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}

		fields, err := a.Store.GetTemplateFields(c.Request.Context(), tpl.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Field list failed"})
			return
		}
		if fields == nil {
			fields = []store.EntityField{}
		}
		c.JSON(http.StatusOK, fields)
	}
}
