package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/api"
	"github.com/platformbuilds/mirador-dashboards/internal/api/handlers"
	"github.com/platformbuilds/mirador-dashboards/internal/config"
	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/datasource/memory"
	"github.com/platformbuilds/mirador-dashboards/internal/datasource/sqlite"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/repo"
	"github.com/platformbuilds/mirador-dashboards/internal/services"
	"github.com/platformbuilds/mirador-dashboards/internal/tracing"
	"github.com/platformbuilds/mirador-dashboards/pkg/cache"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// stores bundles the record store and the definition stores of one driver.
type stores struct {
	data   datasource.Store
	blocks repo.BlockStore
	menus  repo.MenuStore
	probes map[string]handlers.Pinger
	close  func() error
}

type dbPinger struct{ db *sql.DB }

func (p dbPinger) HealthCheck(ctx context.Context) error { return p.db.PingContext(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting mirador-dashboards", "version", api.Version, "environment", cfg.Environment, "config", cfg.File())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		tp, err := tracing.NewTracerProvider(ctx, tracing.Options{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: api.Version,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			SampleRatio:    cfg.Tracing.SampleRatio,
			Insecure:       cfg.Tracing.Insecure,
		})
		if err != nil {
			logger.Fatal("Failed to initialize tracing", "error", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Tracer shutdown failed", "error", err)
			}
		}()
		logger.Info("Tracing enabled", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	valkeyCache := newCache(cfg, logger)
	if s, ok := valkeyCache.(cache.Stopper); ok {
		defer s.Stop()
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize stores", "driver", cfg.Datasource.Driver, "error", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("Failed to close stores", "error", err)
		}
	}()

	settings := services.NewSettingsStore(cfg.Dashboard)
	ds := datasource.WithMetrics(st.data, cfg.Datasource.QueryTimeout)
	parser := filter.NewParser(logger)
	resolver := services.NewResolver(st.blocks, ds, parser, valkeyCache, settings, tracing.NewDashboardTracer("mirador-dashboards/resolver"), logger)
	blocks := services.NewBlockManager(st.blocks, st.menus, ds, services.NewValueComputer(ds, parser, logger), settings, resolver, logger)
	menus := services.NewMenuManager(st.menus, st.blocks, resolver, logger)

	if path := cfg.Dashboard.SeedFile; path != "" {
		seed, err := repo.LoadSeed(path)
		if err != nil {
			logger.Fatal("Failed to load seed file", "path", path, "error", err)
		}
		owner := models.Identity{
			UserID:    cfg.Auth.DefaultUserID,
			CompanyID: cfg.Auth.DefaultCompanyID,
			Roles:     []string{models.RoleAdmin},
		}
		if _, err := services.ApplySeed(ctx, seed, st.data, menus, blocks, owner, logger); err != nil {
			logger.Fatal("Failed to apply seed file", "path", path, "error", err)
		}
	}

	if file := cfg.File(); file != "" {
		watcher := config.NewSettingsWatcher(file, cfg.Dashboard, logger)
		watcher.Subscribe(func(s config.DashboardSettings) {
			s.SeedFile = cfg.Dashboard.SeedFile
			settings.Set(s)
			logger.Info("Dashboard settings reloaded", "resolve_concurrency", s.ResolveConcurrency, "cache_duration", s.CacheDuration)
		})
		go func() {
			if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Settings watcher stopped", "error", err)
			}
		}()
	}

	apiServer := api.NewServer(cfg, logger, valkeyCache, api.Services{
		Resolver: resolver,
		Blocks:   blocks,
		Layout:   services.NewLayoutManager(st.blocks, resolver, logger),
		Menus:    menus,
		Settings: settings,
		Probes:   st.probes,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
		cancel()
		return
	}
	logger.Info("mirador-dashboards shutdown complete")
}

// newCache picks the dashboard vals cache: in-process without nodes, a
// single client for one node, a cluster client otherwise. Remote caches
// start on the in-process fallback and swap once Valkey answers.
func newCache(cfg *config.Config, log logger.Logger) cache.ValkeyCluster {
	ttl := cfg.Cache.TTLDuration()
	fallback := cache.NewNoopValkeyCache(ttl, log)
	retry := cfg.Cache.RetryInterval
	if retry <= 0 {
		retry = 30 * time.Second
	}

	switch len(cfg.Cache.Nodes) {
	case 0:
		log.Info("No Valkey nodes configured, using in-process cache")
		return fallback
	case 1:
		log.Info("Valkey single-node cache configured", "addr", cfg.Cache.Nodes[0])
		return cache.NewAutoSwapForSingle(cfg.Cache.Nodes[0], cfg.Cache.DB, cfg.Cache.Password, ttl, retry, log, fallback)
	default:
		log.Info("Valkey cluster cache configured", "nodes", len(cfg.Cache.Nodes))
		return cache.NewAutoSwapForCluster(cfg.Cache.Nodes, cfg.Cache.Password, ttl, retry, log, fallback)
	}
}

func openStores(ctx context.Context, cfg *config.Config, log logger.Logger) (*stores, error) {
	if cfg.Datasource.Driver == "memory" {
		log.Warn("Using in-memory stores; definitions and records are lost on restart")
		return &stores{
			data:   memory.New(),
			blocks: repo.NewMemoryBlockStore(),
			menus:  repo.NewMemoryMenuStore(),
			close:  func() error { return nil },
		}, nil
	}

	db, err := sqlite.Open(ctx, cfg.Datasource.DSN, cfg.Datasource.MaxConnections)
	if err != nil {
		return nil, err
	}
	if err := repo.MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	data, err := sqlite.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Info("SQLite stores ready", "dsn", cfg.Datasource.DSN)
	return &stores{
		data:   data,
		blocks: repo.NewSQLiteBlockStore(db),
		menus:  repo.NewSQLiteMenuStore(db),
		probes: map[string]handlers.Pinger{"sqlite": dbPinger{db: db}},
		close:  db.Close,
	}, nil
}
