package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/platformbuilds/mirador-dashboards/internal/api/handlers"
	"github.com/platformbuilds/mirador-dashboards/internal/api/middleware"
	"github.com/platformbuilds/mirador-dashboards/internal/config"
	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
	"github.com/platformbuilds/mirador-dashboards/internal/services"
	"github.com/platformbuilds/mirador-dashboards/pkg/cache"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// Version is reported by the health endpoints.
var Version = "dev"

// Services are the domain services the HTTP layer routes to.
type Services struct {
	Resolver *services.Resolver
	Blocks   *services.BlockManager
	Layout   *services.LayoutManager
	Menus    *services.MenuManager
	Settings *services.SettingsStore
	// Probes are extra readiness checks, keyed by dependency name.
	Probes map[string]handlers.Pinger
}

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.ValkeyCluster
	services   Services
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(cfg *config.Config, log logger.Logger, valkeyCache cache.ValkeyCluster, svc Services) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   cfg,
		logger:   log,
		cache:    valkeyCache,
		services: svc,
		router:   gin.New(),
	}
	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	if s.config.Tracing.Enabled {
		s.router.Use(otelgin.Middleware(s.config.Tracing.ServiceName))
	}
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))
	if s.config.Monitoring.Enabled {
		s.router.Use(monitoring.HTTPMetricsMiddleware())
	}

	if s.config.Auth.Enabled {
		s.router.Use(middleware.AuthMiddleware(s.config.Auth, s.logger))
	} else {
		s.router.Use(middleware.NoAuthMiddleware(s.config.Auth))
		s.logger.Warn("Authentication is DISABLED by configuration; identity comes from X-User-* headers or defaults")
	}
	s.router.Use(middleware.ErrorHandler(s.logger))

	if s.config.Monitoring.Enabled {
		monitoring.SetupPrometheusMetrics(s.router, s.config.Monitoring.MetricsPath)
	}
}

func (s *Server) setupRoutes() {
	health := handlers.NewHealthHandler(s.cache, s.services.Probes, Version, s.logger)
	s.router.GET("/health", health.HealthCheck)
	s.router.GET("/ready", health.ReadinessCheck)

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", health.HealthCheck)
	v1.GET("/ready", health.ReadinessCheck)

	dashboard := handlers.NewDashboardHandler(s.services.Resolver, s.services.Blocks, s.services.Layout, s.services.Settings, s.logger)
	d := v1.Group("/dashboard")
	d.GET("/search", dashboard.Search)
	d.GET("/roles", dashboard.Roles)
	d.GET("/actions/:actionId/vals", dashboard.Vals)
	d.POST("/layout", dashboard.SaveLayout)
	d.GET("/settings", dashboard.Settings)

	blocks := handlers.NewBlockHandler(s.services.Blocks, s.logger)
	b := v1.Group("/blocks")
	b.POST("", blocks.Create)
	b.GET("/:id", blocks.Get)
	b.PUT("/:id", blocks.Update)
	b.DELETE("/:id", blocks.Delete)
	b.POST("/:id/duplicate", blocks.Duplicate)
	b.POST("/:id/archive", blocks.Archive)
	b.POST("/:id/unarchive", blocks.Unarchive)
	b.POST("/:id/refresh", blocks.Refresh)

	menus := handlers.NewMenuHandler(s.services.Menus, s.logger)
	m := v1.Group("/menus")
	m.GET("", menus.List)
	m.POST("", menus.Create)
	m.PUT("/:id", menus.Update)
	m.DELETE("/:id", menus.Delete)
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Dashboard API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down dashboard API gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
