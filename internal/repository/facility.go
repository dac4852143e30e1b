// Package repository holds the PostgreSQL-backed facility directory.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
)

// FacilityRepository implements domain.FacilityDirectory on PostgreSQL.
type FacilityRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewFacilityRepository creates a new facility repository
func NewFacilityRepository(db *pgxpool.Pool, logger *logrus.Logger) *FacilityRepository {
	return &FacilityRepository{
		db:  db,
		log: logger,
	}
}

// Upsert inserts a facility or updates the one with the same name and address.
func (r *FacilityRepository) Upsert(ctx context.Context, entry *domain.FacilityEntry) error {
	if entry == nil || strings.TrimSpace(entry.Name) == "" {
		return domain.NewValidationError("name", "name is required", nil)
	}
	if err := entry.Position().Validate(); err != nil {
		return domain.NewValidationError("position", err.Error(), entry.Position().String())
	}

	query := `
		INSERT INTO facilities (
			name, address, category, latitude, longitude, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (name, address) DO UPDATE SET
			category = EXCLUDED.category,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		entry.Name,
		entry.Address,
		entry.Category,
		entry.Latitude,
		entry.Longitude,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"name":  entry.Name,
			"error": err,
		}).Error("Failed to upsert facility")
		return fmt.Errorf("upserting facility: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"facility_id": entry.ID,
		"name":        entry.Name,
	}).Debug("Facility upserted")

	return nil
}

// Nearby selects candidates inside the bounding box of the search circle
// and ranks them by great-circle distance.
func (r *FacilityRepository) Nearby(ctx context.Context, center domain.Coordinates, radiusMeters int, categories []string, limit int) ([]domain.FacilityRecord, error) {
	box := domain.BoundingBoxAround(center, radiusMeters)
	if categories == nil {
		categories = []string{}
	}

	query := `
		SELECT id, name, address, category, latitude, longitude, created_at, updated_at
		FROM facilities
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		  AND (cardinality($5::text[]) = 0 OR category = '' OR category = ANY($5::text[]))`

	rows, err := r.db.Query(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, categories)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"center": center.String(),
			"error":  err,
		}).Error("Failed to query nearby facilities")
		return nil, fmt.Errorf("querying nearby facilities: %w", err)
	}

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.FacilityRecord, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, e.FacilityRecord)
	}
	return domain.RankByDistance(candidates, center, radiusMeters, categories, limit), nil
}

// List returns directory entries by id with pagination.
func (r *FacilityRepository) List(ctx context.Context, limit, offset int) ([]*domain.FacilityEntry, error) {
	query := `
		SELECT id, name, address, category, latitude, longitude, created_at, updated_at
		FROM facilities
		ORDER BY id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing facilities: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*domain.FacilityEntry, error) {
	defer rows.Close()

	var entries []*domain.FacilityEntry
	for rows.Next() {
		var e domain.FacilityEntry
		if err := rows.Scan(
			&e.ID,
			&e.Name,
			&e.Address,
			&e.Category,
			&e.Latitude,
			&e.Longitude,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning facility: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facilities: %w", err)
	}
	return entries, nil
}

// Count returns the number of facilities.
func (r *FacilityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM facilities").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting facilities: %w", err)
	}
	return count, nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *FacilityRepository) Close() error {
	return nil
}
