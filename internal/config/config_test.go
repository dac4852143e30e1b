package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injury-assessment-server/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "injury_session", cfg.Session.CookieName)
	assert.Equal(t, int64(6<<20), cfg.Session.MaxImageBytes)
	assert.Equal(t, "brightness", cfg.Vision.Method)
	assert.Equal(t, 1000, cfg.Classifier.Brightness.Severe)
	assert.Equal(t, 500, cfg.Classifier.Brightness.Moderate)
	assert.Equal(t, 2000, cfg.Classifier.Contour.Severe)
	assert.Equal(t, 500, cfg.Classifier.Contour.Moderate)
	assert.Equal(t, "static", cfg.Locator.Backend)
	assert.Equal(t, 10000, cfg.Locator.RadiusMeters)
	assert.Equal(t, []string{"hospital", "health"}, cfg.Locator.Categories)
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INJURY_SERVER_PORT", "9191")
	t.Setenv("INJURY_SESSION_BACKEND", "redis")
	t.Setenv("INJURY_CACHE_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("INJURY_ENVIRONMENT", "production")

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, 9191, m.GetServerConfig().Port)
	assert.Equal(t, "redis", m.GetConfig().Session.Backend)
	assert.Equal(t, "redis://cache:6379/2", m.GetRedisConnectionString())
	assert.True(t, m.IsProduction())
}

func TestNewManagerFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
locator:
  backend: directory
  radius_meters: 2500
  fixtures:
    - name: Test Clinic
      address: 1 Main St
      latitude: 40.0
      longitude: -73.0
database:
  driver: postgres
  host: db
  database: facilities
  username: svc
  password: secret
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := NewManagerFromFile(path)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, "directory", cfg.Locator.Backend)
	assert.Equal(t, 2500, cfg.Locator.RadiusMeters)
	require.Len(t, cfg.Locator.Fixtures, 1)
	assert.Equal(t, "Test Clinic", cfg.Locator.Fixtures[0].Name)
	assert.Equal(t, "host=db port=5432 user=svc password=secret dbname=facilities sslmode=disable", m.GetDatabaseConnectionString())
	assert.Equal(t, "postgres://svc:secret@db:5432/facilities?sslmode=disable", m.GetDatabaseURL())
}

func TestNewManagerFromFile_Missing(t *testing.T) {
	_, err := NewManagerFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *domain.Config)
		wantErr string
	}{
		{"bad port", func(c *domain.Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad session backend", func(c *domain.Config) { c.Session.Backend = "disk" }, "invalid session backend"},
		{"redis without url", func(c *domain.Config) {
			c.Session.Backend = "redis"
			c.Cache.RedisURL = ""
		}, "Redis URL is required"},
		{"bad vision method", func(c *domain.Config) { c.Vision.Method = "edges" }, "invalid vision method"},
		{"inverted thresholds", func(c *domain.Config) {
			c.Classifier.Brightness = domain.ThresholdConfig{Severe: 400, Moderate: 500}
		}, "invalid brightness thresholds"},
		{"bad locator backend", func(c *domain.Config) { c.Locator.Backend = "gps" }, "invalid locator backend"},
		{"remote without url", func(c *domain.Config) {
			c.Locator.Backend = "remote"
			c.Locator.Remote.BaseURL = ""
		}, "remote locator base URL"},
		{"bad radius", func(c *domain.Config) { c.Locator.RadiusMeters = 0 }, "radius must be positive"},
		{"short csrf key", func(c *domain.Config) {
			c.Security.CSRFEnabled = true
			c.Security.CSRFKey = "short"
		}, "CSRF key"},
		{"bad log level", func(c *domain.Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"directory with bad driver", func(c *domain.Config) {
			c.Locator.Backend = "directory"
			c.Database.Driver = "mysql"
		}, "invalid database driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			m, err := NewManager()
			require.NoError(t, err)

			tt.mutate(m.GetConfig())
			err = m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(domain.LoggingConfig{Level: "debug", Format: "text"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger = NewLogger(domain.LoggingConfig{Level: "nonsense", Output: "stderr"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stderr, logger.Out)
}
