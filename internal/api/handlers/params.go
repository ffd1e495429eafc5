package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

func idParam(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, models.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}

// dateRangeQuery reads start_date and end_date. Both absent means no range;
// a date-only end covers the whole day.
func dateRangeQuery(c *gin.Context) (*models.DateRange, error) {
	startRaw := strings.TrimSpace(c.Query("start_date"))
	endRaw := strings.TrimSpace(c.Query("end_date"))
	if startRaw == "" && endRaw == "" {
		return nil, nil
	}
	if startRaw == "" || endRaw == "" {
		return nil, models.Validationf("start_date and end_date must be given together")
	}
	start, ok := filter.ParseTime(startRaw)
	if !ok {
		return nil, models.Validationf("invalid start_date %q", startRaw)
	}
	end, ok := filter.ParseTime(endRaw)
	if !ok {
		return nil, models.Validationf("invalid end_date %q", endRaw)
	}
	if len(endRaw) == len("2006-01-02") {
		end = end.Add(24*time.Hour - time.Second)
	}
	if end.Before(start) {
		return nil, models.Validationf("end_date is before start_date")
	}
	return &models.DateRange{Start: start, End: end}, nil
}

// bindJSON wraps binding failures in the validation kind.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return models.Validationf("invalid request body: %v", err)
	}
	return nil
}
