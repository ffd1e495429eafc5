package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-dashboards/internal/config"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// NoAuthMiddleware takes the caller from the X-User-ID, X-Company-ID and
// X-User-Roles headers when auth is disabled, falling back to the configured
// defaults for anything missing or malformed.
func NoAuthMiddleware(authConfig config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := defaultIdentity(authConfig)
		if n, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader("X-User-ID")), 10, 64); err == nil && n > 0 {
			id.UserID = n
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader("X-Company-ID")), 10, 64); err == nil && n > 0 {
			id.CompanyID = n
		}
		if h := c.GetHeader("X-User-Roles"); h != "" {
			id.Roles = nil
			for _, r := range strings.Split(h, ",") {
				if r = strings.TrimSpace(r); r != "" {
					id.Roles = append(id.Roles, r)
				}
			}
		}
		setIdentity(c, id)
		c.Next()
	}
}

func defaultIdentity(authConfig config.AuthConfig) models.Identity {
	return models.Identity{
		UserID:    authConfig.DefaultUserID,
		CompanyID: authConfig.DefaultCompanyID,
		Roles:     append([]string(nil), authConfig.DefaultRoles...),
	}
}
