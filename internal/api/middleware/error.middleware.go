package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ErrorHandler renders the last error handlers attached with c.Error.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, code := classify(err)

		fields := []interface{}{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString("request_id"),
			"error", err,
		}
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", fields...)
		} else {
			log.Debug("Request rejected", fields...)
		}

		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
	}
}

// classify maps the error taxonomy onto HTTP status codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrParse):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
