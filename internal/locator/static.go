// Package locator finds urgent-care facilities near a position. Backends
// are a fixed list, the facility directory and a remote nearby-search
// service; any of them can be wrapped in a result cache.
package locator

import (
	"context"

	"github.com/injury-assessment-server/internal/domain"
)

// DefaultFixtures are used when no facilities are configured. They sit
// around the default center.
var DefaultFixtures = []domain.FacilityRecord{
	{Name: "Zuckerberg San Francisco General Hospital", Address: "1001 Potrero Ave, San Francisco, CA", Category: "hospital", Latitude: 37.7557, Longitude: -122.4048},
	{Name: "UCSF Medical Center at Parnassus", Address: "505 Parnassus Ave, San Francisco, CA", Category: "hospital", Latitude: 37.7632, Longitude: -122.4577},
	{Name: "CPMC Van Ness Campus", Address: "1101 Van Ness Ave, San Francisco, CA", Category: "hospital", Latitude: 37.7855, Longitude: -122.4216},
	{Name: "Saint Francis Memorial Hospital", Address: "900 Hyde St, San Francisco, CA", Category: "hospital", Latitude: 37.7896, Longitude: -122.4169},
	{Name: "Kaiser Permanente San Francisco Medical Center", Address: "2425 Geary Blvd, San Francisco, CA", Category: "hospital", Latitude: 37.7830, Longitude: -122.4424},
	{Name: "Castro Mission Health Center", Address: "3850 17th St, San Francisco, CA", Category: "health", Latitude: 37.7626, Longitude: -122.4313},
}

// Options are the search parameters shared by all backends.
type Options struct {
	RadiusMeters  int
	Categories    []string
	DefaultCenter domain.Coordinates
	MaxResults    int
}

// OptionsFrom extracts search options from locator configuration.
func OptionsFrom(cfg domain.LocatorConfig) Options {
	return Options{
		RadiusMeters:  cfg.RadiusMeters,
		Categories:    cfg.Categories,
		DefaultCenter: cfg.DefaultCenter,
		MaxResults:    cfg.MaxResults,
	}
}

func (o Options) center(c *domain.Coordinates) domain.Coordinates {
	if c == nil {
		return o.DefaultCenter
	}
	return *c
}

func (o Options) query(c *domain.Coordinates) domain.FacilityQuery {
	return domain.FacilityQuery{
		Center:         o.center(c),
		RadiusMeters:   o.RadiusMeters,
		CategoryFilter: o.Categories,
	}
}

// StaticLocator serves a fixed list of facilities.
type StaticLocator struct {
	records []domain.FacilityRecord
	opts    Options
}

// NewStaticLocator creates a locator over records, or DefaultFixtures when
// records is empty.
func NewStaticLocator(records []domain.FacilityRecord, opts Options) *StaticLocator {
	if len(records) == 0 {
		records = DefaultFixtures
	}
	return &StaticLocator{
		records: append([]domain.FacilityRecord(nil), records...),
		opts:    opts,
	}
}

// Locate ranks the fixed list around center.
func (s *StaticLocator) Locate(ctx context.Context, center *domain.Coordinates) ([]domain.FacilityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.opts.query(center)
	return domain.RankByDistance(s.records, q.Center, q.RadiusMeters, q.CategoryFilter, s.opts.MaxResults), nil
}
