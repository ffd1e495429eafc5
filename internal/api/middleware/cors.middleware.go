package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-dashboards/internal/config"
)

// CORSMiddleware handles Cross-Origin Resource Sharing for the dashboard UI
func CORSMiddleware(corsConfig config.CORSConfig) gin.HandlerFunc {
	methods := "GET, POST, PUT, DELETE, OPTIONS, PATCH"
	if len(corsConfig.AllowedMethods) > 0 {
		methods = strings.Join(corsConfig.AllowedMethods, ", ")
	}
	headers := "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-Company-ID, X-User-Roles"
	if len(corsConfig.AllowedHeaders) > 0 {
		headers = strings.Join(corsConfig.AllowedHeaders, ", ")
	}
	exposed := "X-Request-ID"
	if len(corsConfig.ExposedHeaders) > 0 {
		exposed = strings.Join(corsConfig.ExposedHeaders, ", ")
	}
	maxAge := "43200"
	if corsConfig.MaxAge > 0 {
		maxAge = strconv.Itoa(corsConfig.MaxAge)
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && isOriginAllowed(origin, corsConfig.AllowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Expose-Headers", exposed)
		if corsConfig.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// isOriginAllowed checks origin against the allow list. An empty list only
// admits local development origins.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
		// *.example.com
		if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(origin, strings.TrimPrefix(allowed, "*")) {
			return true
		}
	}
	return false
}
