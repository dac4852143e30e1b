package directory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/injury-assessment-server/internal/database"
	"github.com/injury-assessment-server/internal/domain"
)

// SQLiteStore implements domain.FacilityDirectory using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens the directory at dbPath, creating the file and
// applying migrations when needed.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := database.Migrate(ctx, database.DriverSQLite, dbPath, logger); err != nil {
		return nil, fmt.Errorf("failed to migrate facility directory: %w", err)
	}

	db, err := sql.Open(database.DriverSQLite, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// NewSQLiteStoreFromDB wraps an open connection whose schema is already in
// place.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Upsert inserts the facility or updates the row with the same name and
// address.
func (s *SQLiteStore) Upsert(ctx context.Context, entry *domain.FacilityEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM facilities WHERE name = ? AND address = ?",
		entry.Name, entry.Address,
	).Scan(&existingID, &createdAt)

	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE facilities SET
				category = ?,
				latitude = ?,
				longitude = ?,
				updated_at = ?
			WHERE id = ?
		`,
			entry.Category,
			entry.Latitude,
			entry.Longitude,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update facility: %w", err)
		}
		entry.ID = existingID
		entry.CreatedAt = createdAt
		entry.UpdatedAt = now
		return nil
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO facilities (
			name, address, category, latitude, longitude, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Name,
		entry.Address,
		entry.Category,
		entry.Latitude,
		entry.Longitude,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	entry.UpdatedAt = now
	return nil
}

// Nearby selects candidates inside the bounding box of the search circle
// and ranks them by great-circle distance.
func (s *SQLiteStore) Nearby(ctx context.Context, center domain.Coordinates, radiusMeters int, categories []string, limit int) ([]domain.FacilityRecord, error) {
	box := domain.BoundingBoxAround(center, radiusMeters)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, category, latitude, longitude, created_at, updated_at
		FROM facilities
		WHERE latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?
	`, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var candidates []domain.FacilityRecord
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		candidates = append(candidates, e.FacilityRecord)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facilities: %w", err)
	}

	return domain.RankByDistance(candidates, center, radiusMeters, categories, limit), nil
}

// List returns directory entries by id with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.FacilityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, category, latitude, longitude, created_at, updated_at
		FROM facilities
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*domain.FacilityEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count returns the number of facilities.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM facilities").Scan(&count)
	return count, err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
