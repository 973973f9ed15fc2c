package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/careloop/staffing-api/internal/middleware"
	"github.com/careloop/staffing-api/internal/models"
)

func tenantFromContext(c *gin.Context) models.TenantContext {
	value, exists := c.Get(middleware.ContextTenantKey)
	if !exists {
		return models.TenantContext{}
	}
	tenant, ok := value.(models.TenantContext)
	if !ok {
		return models.TenantContext{}
	}
	return tenant
}
