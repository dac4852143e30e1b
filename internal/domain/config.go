package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Session     SessionConfig    `mapstructure:"session"`
	Vision      VisionConfig     `mapstructure:"vision"`
	Classifier  ClassifierConfig `mapstructure:"classifier"`
	Locator     LocatorConfig    `mapstructure:"locator"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Security    SecurityConfig   `mapstructure:"security"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	CertFile       string        `mapstructure:"cert_file"`
	KeyFile        string        `mapstructure:"key_file"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// SessionConfig controls where session slots live and for how long.
type SessionConfig struct {
	Backend       string        `mapstructure:"backend"` // "memory", "redis"
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
	MaxImages     int           `mapstructure:"max_images"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	ImageCacheMax int           `mapstructure:"image_cache_max"`
}

// VisionConfig controls the image signal extractor.
type VisionConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Method      string        `mapstructure:"method"` // "brightness", "contour"
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	MaxPixels   int           `mapstructure:"max_pixels"`
	Workers     int           `mapstructure:"workers"`
}

// ThresholdConfig is a pair of strict lower bounds on an image signal.
type ThresholdConfig struct {
	Severe   int `mapstructure:"severe"`
	Moderate int `mapstructure:"moderate"`
}

// ClassifierConfig holds the image-path thresholds per signal method.
type ClassifierConfig struct {
	Brightness ThresholdConfig `mapstructure:"brightness"`
	Contour    ThresholdConfig `mapstructure:"contour"`
}

// LocatorConfig selects and tunes the facility locator.
type LocatorConfig struct {
	Backend       string             `mapstructure:"backend"` // "static", "directory", "remote"
	RadiusMeters  int                `mapstructure:"radius_meters"`
	Categories    []string           `mapstructure:"categories"`
	DefaultCenter Coordinates        `mapstructure:"default_center"`
	MaxResults    int                `mapstructure:"max_results"`
	CacheSize     int                `mapstructure:"cache_size"`
	CacheTTL      time.Duration      `mapstructure:"cache_ttl"`
	Remote        RemotePlacesConfig `mapstructure:"remote"`
	Fixtures      []FacilityRecord   `mapstructure:"fixtures"`
}

// RemotePlacesConfig configures the nearby-search HTTP service.
type RemotePlacesConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// DatabaseConfig represents database connection configuration for the
// facility directory
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "sqlite", "postgres"
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// CacheConfig represents Redis configuration
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// SecurityConfig controls request protection middleware.
type SecurityConfig struct {
	CSRFEnabled    bool    `mapstructure:"csrf_enabled"`
	CSRFKey        string  `mapstructure:"csrf_key"`
	RateLimit      float64 `mapstructure:"rate_limit"` // requests per second per client
	RateBurst      int     `mapstructure:"rate_burst"`
	LimiterEntries int     `mapstructure:"limiter_entries"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
