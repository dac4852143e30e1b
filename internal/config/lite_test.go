package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "static", cfg.LocatorBackend)
	assert.Equal(t, 10000, cfg.RadiusMeters)
	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.BrightnessSevere)
	assert.Equal(t, 500, cfg.BrightnessModerate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, "static", cfg.LocatorBackend)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("INJURY_DATA_DIR", "/tmp/test-injury")
	t.Setenv("INJURY_LOCATOR_BACKEND", "directory")
	t.Setenv("INJURY_LOCATOR_RADIUS_METERS", "5000")
	t.Setenv("INJURY_CACHE_MAX_ITEMS", "50")
	t.Setenv("INJURY_CACHE_TTL", "1m")
	t.Setenv("INJURY_BRIGHTNESS_SEVERE", "1200")
	t.Setenv("INJURY_BRIGHTNESS_MODERATE", "600")
	t.Setenv("INJURY_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-injury", cfg.DataDir)
	assert.Equal(t, "directory", cfg.LocatorBackend)
	assert.Equal(t, 5000, cfg.RadiusMeters)
	assert.Equal(t, 50, cfg.CacheMaxItems)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1200, cfg.BrightnessSevere)
	assert.Equal(t, 600, cfg.BrightnessModerate)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_InvalidOverridesIgnored(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("INJURY_LOCATOR_BACKEND", "remote")
	t.Setenv("INJURY_LOCATOR_RADIUS_METERS", "-3")
	t.Setenv("INJURY_BRIGHTNESS_SEVERE", "100")
	t.Setenv("INJURY_BRIGHTNESS_MODERATE", "900")

	cfg := LoadLiteConfig()

	assert.Equal(t, "static", cfg.LocatorBackend)
	assert.Equal(t, 10000, cfg.RadiusMeters)
	assert.Equal(t, 1000, cfg.BrightnessSevere)
	assert.Equal(t, 500, cfg.BrightnessModerate)
}

func TestLiteConfig_FacilitiesDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.injury-assessment"}

	assert.Equal(t, "/home/user/.injury-assessment/facilities.db", cfg.FacilitiesDBPath())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "injury")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err := os.Stat(cfg.DataDir)
	assert.NoError(t, err)
}

func TestLiteConfig_DerivedConfigs(t *testing.T) {
	cfg := DefaultLiteConfig()

	cc := cfg.ClassifierConfig()
	assert.Equal(t, 1000, cc.Brightness.Severe)
	assert.Equal(t, 2000, cc.Contour.Severe)

	lc := cfg.LocatorConfig()
	assert.Equal(t, []string{"hospital", "health"}, lc.Categories)
	assert.Equal(t, 10000, lc.RadiusMeters)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"INJURY_DATA_DIR",
		"INJURY_LOCATOR_BACKEND",
		"INJURY_LOCATOR_RADIUS_METERS",
		"INJURY_CACHE_MAX_ITEMS",
		"INJURY_CACHE_TTL",
		"INJURY_BRIGHTNESS_SEVERE",
		"INJURY_BRIGHTNESS_MODERATE",
		"INJURY_LOG_LEVEL",
		"INJURY_LOG_FORMAT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
