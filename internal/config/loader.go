package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// Load reads configuration with priority order:
// 1. Environment variables (explicit names, then MIRADOR_ prefixed keys)
// 2. Configuration file (CONFIG_PATH, or config.yaml in the search paths)
// 3. Default values
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_PATH"))
}

// LoadFrom is Load with an explicit config file. An empty path searches
// /etc/mirador-dashboards, ./configs and the working directory.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mirador-dashboards/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("MIRADOR")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.file = v.ConfigFileUsed()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Empty node list keeps the cache in-process
	v.SetDefault("cache.nodes", []string{})
	v.SetDefault("cache.ttl", 300)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.retry_interval", "5s")

	v.SetDefault("datasource.driver", "sqlite")
	v.SetDefault("datasource.dsn", "file:dashboards.db")
	v.SetDefault("datasource.max_connections", 10)
	v.SetDefault("datasource.query_timeout", "10s")

	v.SetDefault("dashboard.default_tile_color", "#1f6abb")
	v.SetDefault("dashboard.default_text_color", "#FFFFFF")
	v.SetDefault("dashboard.random_tile_color", true)
	v.SetDefault("dashboard.grid_cell_height", 80)
	v.SetDefault("dashboard.grid_columns", 12)
	v.SetDefault("dashboard.enable_animations", true)
	v.SetDefault("dashboard.max_blocks_per_user", 50)
	v.SetDefault("dashboard.default_chart_type", "bar")
	v.SetDefault("dashboard.auto_refresh_interval", 60)
	v.SetDefault("dashboard.enable_data_export", true)
	v.SetDefault("dashboard.show_quick_stats", true)
	v.SetDefault("dashboard.date_range_default", "this_month")
	v.SetDefault("dashboard.cache_duration", 5)
	v.SetDefault("dashboard.max_table_limit", 500)
	v.SetDefault("dashboard.resolve_concurrency", 8)
	v.SetDefault("dashboard.block_timeout", "5s")
	v.SetDefault("dashboard.date_field", "create_date")
	v.SetDefault("dashboard.seed_file", "")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.default_user_id", 1)
	v.SetDefault("auth.default_company_id", 1)
	v.SetDefault("auth.default_roles", []string{models.RoleUser, models.RoleManager, models.RoleAdmin})

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-User-ID", "X-Company-ID", "X-User-Roles", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID", "X-Cache"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "mirador-dashboards")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)
}

// overrideWithEnvVars handles the unprefixed variables used by deployments.
func overrideWithEnvVars(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	if cacheNodes := os.Getenv("VALKEY_NODES"); cacheNodes != "" {
		v.Set("cache.nodes", splitList(cacheNodes))
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if ttl, err := strconv.Atoi(cacheTTL); err == nil {
			v.Set("cache.ttl", ttl)
		}
	}

	if dsn := os.Getenv("DATASOURCE_DSN"); dsn != "" {
		v.Set("datasource.dsn", dsn)
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		v.Set("auth.jwt_secret", jwtSecret)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validEnvironments = []string{"development", "staging", "production", "test"}
	validDrivers      = []string{"sqlite", "memory"}
	validDateRanges   = []string{"today", "yesterday", "this_week", "last_week", "this_month", "last_month", "this_quarter", "this_year"}
)

func validateConfig(config *Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if config.Cache.TTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}
	if config.Cache.RetryInterval < 0 {
		return fmt.Errorf("cache retry interval must not be negative")
	}

	if !contains(validDrivers, config.Datasource.Driver) {
		return fmt.Errorf("invalid datasource driver: %s", config.Datasource.Driver)
	}
	if config.Datasource.Driver == "sqlite" && config.Datasource.DSN == "" {
		return fmt.Errorf("datasource DSN is required for the sqlite driver")
	}
	if config.Datasource.QueryTimeout < 0 {
		return fmt.Errorf("datasource query timeout must not be negative")
	}

	if err := ValidateSettings(config.Dashboard); err != nil {
		return err
	}

	if config.Auth.Enabled && config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required when auth is enabled")
	}

	if config.Tracing.Enabled && config.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when tracing is enabled")
	}
	if config.Tracing.SampleRatio < 0 || config.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be between 0 and 1")
	}

	return nil
}

// ValidateSettings checks the dashboard settings on their own, so reloaded
// settings can be rejected without touching the rest of the config.
func ValidateSettings(s DashboardSettings) error {
	if !models.IsHexColor(s.DefaultTileColor) {
		return fmt.Errorf("invalid default tile color: %q", s.DefaultTileColor)
	}
	if !models.IsHexColor(s.DefaultTextColor) {
		return fmt.Errorf("invalid default text color: %q", s.DefaultTextColor)
	}
	if s.GridCellHeight < 1 || s.GridColumns < 1 {
		return fmt.Errorf("grid cell height and columns must be positive")
	}
	if s.MaxBlocksPerUser < 0 {
		return fmt.Errorf("max blocks per user must not be negative")
	}
	if !models.ChartType(s.DefaultChartType).Valid() {
		return fmt.Errorf("invalid default chart type: %s", s.DefaultChartType)
	}
	if s.AutoRefreshInterval < 0 || s.CacheDuration < 0 || s.BlockTimeout < 0 {
		return fmt.Errorf("dashboard intervals must not be negative")
	}
	if !contains(validDateRanges, s.DateRangeDefault) {
		return fmt.Errorf("invalid default date range: %s", s.DateRangeDefault)
	}
	if s.MaxTableLimit < 1 {
		return fmt.Errorf("max table limit must be at least 1")
	}
	if s.ResolveConcurrency < 1 {
		return fmt.Errorf("resolve concurrency must be at least 1")
	}
	if s.DateField == "" {
		return fmt.Errorf("dashboard date field is required")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
