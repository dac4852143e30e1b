// Package directory stores the urgent-care facility directory: durable,
// read-mostly reference data queried by distance. It never holds user data.
package directory

import (
	"time"

	"github.com/injury-assessment-server/internal/domain"
)

// ExportVersion is the version of the JSON export format.
const ExportVersion = "1.0"

// Export represents the JSON export format.
type Export struct {
	Version    string                  `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Count      int                     `json:"count"`
	Facilities []*domain.FacilityEntry `json:"facilities"`
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*domain.FacilityEntry, error) {
	e := &domain.FacilityEntry{}
	err := s.Scan(
		&e.ID, &e.Name, &e.Address, &e.Category,
		&e.Latitude, &e.Longitude, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func validateEntry(entry *domain.FacilityEntry) error {
	if entry == nil {
		return domain.NewValidationError("facility", "entry is required", nil)
	}
	if entry.Name == "" {
		return domain.NewValidationError("name", "name is required", entry.Name)
	}
	if err := entry.Position().Validate(); err != nil {
		return domain.NewValidationError("position", err.Error(), entry.Position().String())
	}
	return nil
}
