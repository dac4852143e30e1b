package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/injury-assessment-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// NewManagerFromFile loads configuration from an explicit file path.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	m.v.SetConfigFile(path)
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/injury-assessment/")
	}

	v.SetEnvPrefix("INJURY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Config file is optional: defaults and environment variables suffice
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "20s")
	v.SetDefault("server.tls_enabled", false)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Session defaults
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.cookie_name", "injury_session")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.max_images", 10)
	v.SetDefault("session.max_image_bytes", 6<<20)
	v.SetDefault("session.image_cache_max", 500)

	// Vision defaults
	v.SetDefault("vision.enabled", true)
	v.SetDefault("vision.method", "brightness")
	v.SetDefault("vision.load_timeout", "10s")
	v.SetDefault("vision.max_pixels", 40_000_000)
	v.SetDefault("vision.workers", 2)

	// Classifier thresholds, strict lower bounds on the image signal
	v.SetDefault("classifier.brightness.severe", 1000)
	v.SetDefault("classifier.brightness.moderate", 500)
	v.SetDefault("classifier.contour.severe", 2000)
	v.SetDefault("classifier.contour.moderate", 500)

	// Locator defaults
	v.SetDefault("locator.backend", "static")
	v.SetDefault("locator.radius_meters", 10000)
	v.SetDefault("locator.categories", []string{"hospital", "health"})
	v.SetDefault("locator.default_center.latitude", 37.7749)
	v.SetDefault("locator.default_center.longitude", -122.4194)
	v.SetDefault("locator.max_results", 20)
	v.SetDefault("locator.cache_size", 256)
	v.SetDefault("locator.cache_ttl", "10m")
	v.SetDefault("locator.remote.base_url", "https://places.example.com/v1/")
	v.SetDefault("locator.remote.timeout", "10s")
	v.SetDefault("locator.remote.rate_limit", 5)
	v.SetDefault("locator.remote.retry_count", 2)

	// Database defaults (facility directory)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/facilities.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "injury_assessment")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults (session backend "redis")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Security defaults
	v.SetDefault("security.csrf_enabled", false)
	v.SetDefault("security.csrf_key", "")
	v.SetDefault("security.rate_limit", 10.0)
	v.SetDefault("security.rate_burst", 20)
	v.SetDefault("security.limiter_entries", 4096)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.TLSEnabled && (config.Server.CertFile == "" || config.Server.KeyFile == "") {
		return fmt.Errorf("TLS enabled but cert_file or key_file missing")
	}

	switch config.Session.Backend {
	case "memory":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required for redis session backend")
		}
	default:
		return fmt.Errorf("invalid session backend: %s", config.Session.Backend)
	}
	if config.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if config.Session.MaxImageBytes <= 0 {
		return fmt.Errorf("session max_image_bytes must be positive")
	}

	if config.Vision.Method != string(domain.SignalBrightness) && config.Vision.Method != string(domain.SignalContour) {
		return fmt.Errorf("invalid vision method: %s", config.Vision.Method)
	}

	for name, th := range map[string]domain.ThresholdConfig{
		"brightness": config.Classifier.Brightness,
		"contour":    config.Classifier.Contour,
	} {
		if th.Moderate < 0 || th.Severe <= th.Moderate {
			return fmt.Errorf("invalid %s thresholds: severe %d must exceed moderate %d", name, th.Severe, th.Moderate)
		}
	}

	switch config.Locator.Backend {
	case "static":
	case "directory":
		if err := validateDatabase(config.Database); err != nil {
			return err
		}
	case "remote":
		if config.Locator.Remote.BaseURL == "" {
			return fmt.Errorf("remote locator base URL is required")
		}
	default:
		return fmt.Errorf("invalid locator backend: %s", config.Locator.Backend)
	}
	if config.Locator.RadiusMeters <= 0 {
		return fmt.Errorf("locator radius must be positive")
	}
	if err := config.Locator.DefaultCenter.Validate(); err != nil {
		return fmt.Errorf("invalid locator default center: %w", err)
	}

	if config.Security.CSRFEnabled && len(config.Security.CSRFKey) != 32 {
		return fmt.Errorf("CSRF key must be 32 bytes when CSRF protection is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

func validateDatabase(db domain.DatabaseConfig) error {
	switch db.Driver {
	case "sqlite":
		if db.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if db.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if db.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if db.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", db.Driver)
	}
	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	if db.Driver == "sqlite" {
		return db.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the postgres URL form used by the migration runner
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
