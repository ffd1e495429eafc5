package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupPrometheusMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	SetupPrometheusMetrics(r, "")

	RecordBlockResolution("chart", 10*time.Millisecond, true)
	RecordFilterParseFailure()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "mirador_dashboards_block_resolutions_total"))
	assert.True(t, strings.Contains(body, "mirador_dashboards_filter_parse_failures_total"))
}

func TestRecordBlockResolution_ErrorCountsAsError(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("block", "kpi"))
	RecordBlockResolution("kpi", time.Millisecond, false)
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("block", "kpi")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(blockResolutionsTotal.WithLabelValues("kpi", "error")), 1.0)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "/api/v1/dashboard/blocks/:id", normalizeEndpoint("/api/v1/dashboard/blocks/42"))
	assert.Equal(t, "/health", normalizeEndpoint("/health"))
}
