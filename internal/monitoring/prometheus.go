// Package monitoring exposes the Prometheus metrics of the dashboard engine.
//
// Usage:
//
//	router := gin.New()
//	router.Use(monitoring.HTTPMetricsMiddleware())
//	monitoring.SetupPrometheusMetrics(router, "/metrics")
//
// Available Metrics:
//
// HTTP Metrics:
//   - mirador_dashboards_http_requests_total{method, endpoint, status_code, company_id}
//   - mirador_dashboards_http_request_duration_seconds{method, endpoint, company_id}
//   - mirador_dashboards_active_connections
//
// Block Metrics:
//   - mirador_dashboards_block_resolutions_total{type, status}
//   - mirador_dashboards_block_resolution_duration_seconds{type}
//   - mirador_dashboards_dashboard_resolution_duration_seconds
//   - mirador_dashboards_filter_parse_failures_total
//
// Data Source Metrics:
//   - mirador_dashboards_datasource_queries_total{operation, entity, status}
//   - mirador_dashboards_datasource_query_duration_seconds{operation, entity}
//
// Store Metrics:
//   - mirador_dashboards_store_operations_total{operation, table, status}
//
// Cache Metrics:
//   - mirador_dashboards_cache_operations_total{operation, result}
//
// Error Metrics:
//   - mirador_dashboards_errors_total{type, component}
package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_dashboards_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "company_id"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_dashboards_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "company_id"},
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_dashboards_active_connections",
			Help: "Number of active connections",
		},
	)

	blockResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_dashboards_block_resolutions_total",
			Help: "Total number of block resolutions",
		},
		[]string{"type", "status"}, // status: success, error
	)

	blockResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_dashboards_block_resolution_duration_seconds",
			Help:    "Block resolution duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"type"},
	)

	dashboardResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mirador_dashboards_dashboard_resolution_duration_seconds",
			Help:    "Duration of a full dashboard resolution in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	filterParseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mirador_dashboards_filter_parse_failures_total",
			Help: "Number of stored block filters that failed to parse",
		},
	)

	datasourceQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_dashboards_datasource_queries_total",
			Help: "Total number of data source queries",
		},
		[]string{"operation", "entity", "status"},
	)

	datasourceQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_dashboards_datasource_query_duration_seconds",
			Help:    "Data source query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "entity"},
	)

	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_dashboards_store_operations_total",
			Help: "Total number of block and menu store operations",
		},
		[]string{"operation", "table", "status"},
	)

	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_dashboards_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, error
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_dashboards_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// SetupPrometheusMetrics registers the collectors and exposes them at path,
// /metrics when empty.
func SetupPrometheusMetrics(router gin.IRoutes, path string) {
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mirador_dashboards_build_info",
		Help: "Build information for mirador-dashboards",
		ConstLabels: prometheus.Labels{
			"component": "mirador-dashboards",
		},
	}, func() float64 { return 1 }))

	// Registration errors mean the collector is already registered.
	_ = prometheus.Register(httpRequestsTotal)
	_ = prometheus.Register(httpRequestDuration)
	_ = prometheus.Register(activeConnections)
	_ = prometheus.Register(blockResolutionsTotal)
	_ = prometheus.Register(blockResolutionDuration)
	_ = prometheus.Register(dashboardResolutionDuration)
	_ = prometheus.Register(filterParseFailuresTotal)
	_ = prometheus.Register(datasourceQueriesTotal)
	_ = prometheus.Register(datasourceQueryDuration)
	_ = prometheus.Register(storeOperationsTotal)
	_ = prometheus.Register(cacheOperationsTotal)
	_ = prometheus.Register(errorsTotal)

	if path == "" {
		path = "/metrics"
	}
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		// Prefer the route template so ids do not explode label cardinality.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = normalizeEndpoint(c.Request.URL.Path)
		}
		companyID := c.GetString("company_id")
		if companyID == "" {
			companyID = "unknown"
		}

		statusCode := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, companyID).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint, companyID).Observe(time.Since(start).Seconds())

		if c.Writer.Status() >= 400 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordBlockResolution records the outcome of resolving one block.
func RecordBlockResolution(blockType string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("block", blockType).Inc()
	}
	blockResolutionsTotal.WithLabelValues(blockType, status).Inc()
	blockResolutionDuration.WithLabelValues(blockType).Observe(duration.Seconds())
}

// RecordDashboardResolution records the duration of a full dashboard fetch.
func RecordDashboardResolution(duration time.Duration) {
	dashboardResolutionDuration.Observe(duration.Seconds())
}

// RecordFilterParseFailure counts a stored filter that degraded to empty.
func RecordFilterParseFailure() {
	filterParseFailuresTotal.Inc()
}

// RecordDatasourceQuery records data source query metrics
func RecordDatasourceQuery(operation, entity string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("datasource", entity).Inc()
	}
	datasourceQueriesTotal.WithLabelValues(operation, entity, status).Inc()
	datasourceQueryDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
}

// RecordStoreOperation records block and menu store operation metrics
func RecordStoreOperation(operation, table string, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("store", table).Inc()
	}
	storeOperationsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordCacheOperation records cache operation metrics
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// normalizeEndpoint replaces numeric path segments with :id.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if i > 0 && isNumeric(part) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
