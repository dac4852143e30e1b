package domain

import (
	"context"
)

// SessionStore holds per-session slots. Get reports absence with found=false
// and a nil error; absence is never an error.
//
// Every ClearAll increments the session generation. SetIfGeneration and
// WriteIf write only while the generation still equals the given value, so
// results computed before a clear are dropped instead of resurrecting
// cleared state.
type SessionStore interface {
	Set(ctx context.Context, sessionID string, slot Slot, value []byte) error
	Get(ctx context.Context, sessionID string, slot Slot) (value []byte, found bool, err error)
	ClearAll(ctx context.Context, sessionID string) error
	Generation(ctx context.Context, sessionID string) (int64, error)
	SetIfGeneration(ctx context.Context, sessionID string, generation int64, slot Slot, value []byte) (bool, error)
	WriteIf(ctx context.Context, sessionID string, w ConditionalWrite) (bool, error)
	Close() error
}

// ConditionalWrite is an all-or-nothing write of several slots. It applies
// only while the session generation equals Generation and none of the
// Absent slots is set.
type ConditionalWrite struct {
	Generation int64
	Values     map[Slot][]byte
	Absent     []Slot
}

// FacilityLocator returns urgent-care facilities near center. A nil center
// means the caller has no position; implementations fall back to a default.
type FacilityLocator interface {
	Locate(ctx context.Context, center *Coordinates) ([]FacilityRecord, error)
}

// FacilityDirectory is durable, read-mostly facility reference data.
// Nearby returns records ranked nearest first with DistanceKm set.
type FacilityDirectory interface {
	Upsert(ctx context.Context, entry *FacilityEntry) error
	Nearby(ctx context.Context, center Coordinates, radiusMeters int, categories []string, limit int) ([]FacilityRecord, error)
	List(ctx context.Context, limit, offset int) ([]*FacilityEntry, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// SignalExtractor turns image bytes into a scalar signal. It never fails:
// on any problem it returns a zero signal with Fallback set.
type SignalExtractor interface {
	Extract(ctx context.Context, image []byte) ImageSignal
}

// EventPublisher delivers session events to connected browsers.
type EventPublisher interface {
	Publish(sessionID string, event SessionEvent)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
