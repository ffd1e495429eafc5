package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/platformbuilds/mirador-dashboards/internal/config"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

const identityKey = "identity"

// IdentityFrom returns the caller set by the auth middleware. Requests that
// bypassed it get the zero identity.
func IdentityFrom(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(models.Identity); ok {
			return id
		}
	}
	return models.Identity{}
}

func setIdentity(c *gin.Context, id models.Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", strconv.FormatInt(id.UserID, 10))
	c.Set("company_id", strconv.FormatInt(id.CompanyID, 10))
}

// AuthMiddleware requires an HS256 bearer token carrying the caller in its
// uid, company and roles claims. sub is accepted in place of uid.
func AuthMiddleware(authConfig config.AuthConfig, log logger.Logger) gin.HandlerFunc {
	secret := []byte(authConfig.JWTSecret)
	return func(c *gin.Context) {
		if isPublicEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required", Code: "UNAUTHORIZED"})
			return
		}
		id, err := validateJWTToken(token, secret, authConfig.DefaultCompanyID)
		if err != nil {
			log.Debug("Rejected bearer token", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid authentication token", Code: "UNAUTHORIZED"})
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// extractToken gets the token from the Authorization header or the session cookie
func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie("mirador_session"); err == nil {
		return cookie
	}
	return ""
}

func validateJWTToken(tokenString string, secret []byte, defaultCompany int64) (models.Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid JWT token: %w", err)
	}

	uid, ok := claimInt(claims["uid"])
	if !ok {
		if uid, ok = claimInt(claims["sub"]); !ok {
			return models.Identity{}, fmt.Errorf("missing user id in token")
		}
	}
	company, ok := claimInt(claims["company"])
	if !ok {
		company = defaultCompany
	}

	id := models.Identity{UserID: uid, CompanyID: company}
	if list, ok := claims["roles"].([]interface{}); ok {
		for _, r := range list {
			if s, ok := r.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	}
	return id, nil
}

// claimInt reads a numeric claim that may arrive as a JSON number or string.
func claimInt(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), x > 0
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}

// isPublicEndpoint checks if an endpoint requires authentication
func isPublicEndpoint(path string) bool {
	for _, p := range []string{"/health", "/ready", "/metrics", "/api/v1/health", "/api/v1/ready"} {
		if path == p {
			return true
		}
	}
	return false
}
