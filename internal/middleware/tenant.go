package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/careloop/staffing-api/internal/models"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
	"github.com/careloop/staffing-api/pkg/response"
)

// ContextTenantKey is the gin context key storing the resolved tenant.
const ContextTenantKey = "currentTenant"

// Tenant requires a valid access token and projects its claims onto an
// explicit tenant context. Handlers read the tenant from the gin context and
// pass it down; nothing below the handler layer touches session state.
func Tenant(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims := &models.SessionClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
			c.Abort()
			return
		}

		tenant := claims.Tenant()
		if !tenant.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token carries no school scope"))
			c.Abort()
			return
		}

		c.Set(ContextTenantKey, tenant)
		c.Next()
	}
}
