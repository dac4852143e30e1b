// Package config provides configuration management for the assessment services.
// This file contains the lightweight configuration for the standalone MCP tool server.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/injury-assessment-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the facility directory database

	// Locator settings
	LocatorBackend string        // static or directory
	RadiusMeters   int           // Search radius around the caller's position
	CacheMaxItems  int           // Maximum entries in the locator result cache
	CacheTTL       time.Duration // Locator result cache TTL

	// Image path thresholds
	BrightnessSevere   int
	BrightnessModerate int

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".injury-assessment")

	return &LiteConfig{
		DataDir:            dataDir,
		LocatorBackend:     "static",
		RadiusMeters:       10000,
		CacheMaxItems:      256,
		CacheTTL:           10 * time.Minute,
		BrightnessSevere:   1000,
		BrightnessModerate: 500,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("INJURY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("INJURY_LOCATOR_BACKEND"); v == "static" || v == "directory" {
		cfg.LocatorBackend = v
	}
	if v := os.Getenv("INJURY_LOCATOR_RADIUS_METERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RadiusMeters = n
		}
	}
	if v := os.Getenv("INJURY_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("INJURY_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	severe, moderate := cfg.BrightnessSevere, cfg.BrightnessModerate
	if v := os.Getenv("INJURY_BRIGHTNESS_SEVERE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			severe = n
		}
	}
	if v := os.Getenv("INJURY_BRIGHTNESS_MODERATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			moderate = n
		}
	}
	// Keep the pair ordered; an inverted override is ignored as a whole
	if moderate >= 0 && severe > moderate {
		cfg.BrightnessSevere, cfg.BrightnessModerate = severe, moderate
	}

	if v := os.Getenv("INJURY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("INJURY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// FacilitiesDBPath returns the path to the facility directory SQLite database.
func (c *LiteConfig) FacilitiesDBPath() string {
	return filepath.Join(c.DataDir, "facilities.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// ClassifierConfig returns the thresholds in the shape the classifier takes.
func (c *LiteConfig) ClassifierConfig() domain.ClassifierConfig {
	return domain.ClassifierConfig{
		Brightness: domain.ThresholdConfig{Severe: c.BrightnessSevere, Moderate: c.BrightnessModerate},
		Contour:    domain.ThresholdConfig{Severe: 2000, Moderate: 500},
	}
}

// LocatorConfig returns locator settings for the tool server.
func (c *LiteConfig) LocatorConfig() domain.LocatorConfig {
	return domain.LocatorConfig{
		Backend:       c.LocatorBackend,
		RadiusMeters:  c.RadiusMeters,
		Categories:    []string{"hospital", "health"},
		DefaultCenter: domain.Coordinates{Latitude: 37.7749, Longitude: -122.4194},
		MaxResults:    20,
		CacheSize:     c.CacheMaxItems,
		CacheTTL:      c.CacheTTL,
	}
}
