package config

import "time"

// Config is the process configuration of the dashboards service.
type Config struct {
	Environment string            `mapstructure:"environment" yaml:"environment"`
	Port        int               `mapstructure:"port" yaml:"port"`
	LogLevel    string            `mapstructure:"log_level" yaml:"log_level"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Datasource  DatasourceConfig  `mapstructure:"datasource" yaml:"datasource"`
	Dashboard   DashboardSettings `mapstructure:"dashboard" yaml:"dashboard"`
	Auth        AuthConfig        `mapstructure:"auth" yaml:"auth"`
	CORS        CORSConfig        `mapstructure:"cors" yaml:"cors"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring" yaml:"monitoring"`
	Tracing     TracingConfig     `mapstructure:"tracing" yaml:"tracing"`

	// path of the file the config was read from, empty when none was found
	file string
}

// File returns the config file that was loaded, or "" when running on
// defaults and environment only.
func (c *Config) File() string { return c.file }

// CacheConfig handles Valkey caching configuration. An empty node list keeps
// the cache in-process.
type CacheConfig struct {
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
	// RetryInterval is how often an unreachable Valkey is re-dialed.
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// TTLDuration returns TTL as a time.Duration.
func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// DatasourceConfig selects the record store the blocks query.
type DatasourceConfig struct {
	Driver         string        `mapstructure:"driver" yaml:"driver"` // sqlite | memory
	DSN            string        `mapstructure:"dsn" yaml:"dsn"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
}

// DashboardSettings are the user-facing dashboard settings. They can be
// reloaded at runtime through SettingsWatcher.
type DashboardSettings struct {
	DefaultTileColor    string        `mapstructure:"default_tile_color" yaml:"default_tile_color" json:"default_tile_color"`
	DefaultTextColor    string        `mapstructure:"default_text_color" yaml:"default_text_color" json:"default_text_color"`
	RandomTileColor     bool          `mapstructure:"random_tile_color" yaml:"random_tile_color" json:"random_tile_color"`
	GridCellHeight      int           `mapstructure:"grid_cell_height" yaml:"grid_cell_height" json:"grid_cell_height"`
	GridColumns         int           `mapstructure:"grid_columns" yaml:"grid_columns" json:"grid_columns"`
	EnableAnimations    bool          `mapstructure:"enable_animations" yaml:"enable_animations" json:"enable_animations"`
	MaxBlocksPerUser    int           `mapstructure:"max_blocks_per_user" yaml:"max_blocks_per_user" json:"max_blocks_per_user"`
	DefaultChartType    string        `mapstructure:"default_chart_type" yaml:"default_chart_type" json:"default_chart_type"`
	AutoRefreshInterval int           `mapstructure:"auto_refresh_interval" yaml:"auto_refresh_interval" json:"auto_refresh_interval"` // seconds, 0 disables
	EnableDataExport    bool          `mapstructure:"enable_data_export" yaml:"enable_data_export" json:"enable_data_export"`
	ShowQuickStats      bool          `mapstructure:"show_quick_stats" yaml:"show_quick_stats" json:"show_quick_stats"`
	DateRangeDefault    string        `mapstructure:"date_range_default" yaml:"date_range_default" json:"date_range_default"`
	CacheDuration       int           `mapstructure:"cache_duration" yaml:"cache_duration" json:"cache_duration"` // minutes, 0 disables
	MaxTableLimit       int           `mapstructure:"max_table_limit" yaml:"max_table_limit" json:"max_table_limit"`
	ResolveConcurrency  int           `mapstructure:"resolve_concurrency" yaml:"resolve_concurrency" json:"resolve_concurrency"`
	BlockTimeout        time.Duration `mapstructure:"block_timeout" yaml:"block_timeout" json:"block_timeout"`
	DateField           string        `mapstructure:"date_field" yaml:"date_field" json:"date_field"`
	SeedFile            string        `mapstructure:"seed_file" yaml:"seed_file" json:"-"`
}

// CacheTTL returns CacheDuration as a time.Duration.
func (s DashboardSettings) CacheTTL() time.Duration {
	return time.Duration(s.CacheDuration) * time.Minute
}

// AuthConfig controls how the caller identity is derived. With auth disabled
// the identity comes from the X-User-* headers or the configured defaults.
type AuthConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret        string   `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	DefaultUserID    int64    `mapstructure:"default_user_id" yaml:"default_user_id"`
	DefaultCompanyID int64    `mapstructure:"default_company_id" yaml:"default_company_id"`
	DefaultRoles     []string `mapstructure:"default_roles" yaml:"default_roles"`
}

// CORSConfig handles Cross-Origin Resource Sharing
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
	Insecure     bool    `mapstructure:"insecure" yaml:"insecure"`
}
