package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Операции для проверки доступа.
const (
	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
)

// AccessChecker — внешний auth/permission слой. Движок политику не реализует,
// только спрашивает.
type AccessChecker interface {
	CheckAccess(ctx context.Context, tenantID, projectID, entityType, operation, principal string) (bool, error)
}

// requireAccess — fail-closed: неподключённый checker — громкая ошибка вызова,
// а не тихий permissive-дефолт.
func (a *API) requireAccess(c *gin.Context, tenantID, projectID, entityType, operation string) bool {
	if a.Access == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access checker is not wired"})
		return false
	}

	principal := c.GetHeader("X-Principal")
	allowed, err := a.Access.CheckAccess(c.Request.Context(), tenantID, projectID, entityType, operation, principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "access check failed"})
		return false
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return false
	}
	return true
}
