package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/injury-assessment-server/internal/database"
	"github.com/injury-assessment-server/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    5,
		MinConns:    1,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	if err := database.Migrate(ctx, database.DriverPostgres, config.URL(), logger); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func TestFacilityRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewFacilityRepository(db.Pool, logger)
	ctx := context.Background()

	center := domain.Coordinates{Latitude: 37.7749, Longitude: -122.4194}
	entries := []*domain.FacilityEntry{
		{FacilityRecord: domain.FacilityRecord{Name: "Near Hospital", Address: "1 A St", Category: "hospital", Latitude: 37.7790, Longitude: -122.4190}},
		{FacilityRecord: domain.FacilityRecord{Name: "Mid Health", Address: "2 B St", Category: "health", Latitude: 37.80, Longitude: -122.44}},
		{FacilityRecord: domain.FacilityRecord{Name: "Pharmacy", Address: "3 C St", Category: "pharmacy", Latitude: 37.7750, Longitude: -122.4195}},
		{FacilityRecord: domain.FacilityRecord{Name: "LA ER", Address: "4 D St", Category: "hospital", Latitude: 34.05, Longitude: -118.24}},
	}

	t.Run("upsert", func(t *testing.T) {
		for _, e := range entries {
			require.NoError(t, repo.Upsert(ctx, e))
			assert.NotZero(t, e.ID)
		}

		again := &domain.FacilityEntry{FacilityRecord: domain.FacilityRecord{
			Name: "Near Hospital", Address: "1 A St", Category: "hospital", Latitude: 37.7791, Longitude: -122.4190,
		}}
		require.NoError(t, repo.Upsert(ctx, again))
		assert.Equal(t, entries[0].ID, again.ID)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	t.Run("validation", func(t *testing.T) {
		err := repo.Upsert(ctx, &domain.FacilityEntry{})
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("nearby filters by category and radius", func(t *testing.T) {
		records, err := repo.Nearby(ctx, center, 10000, []string{"hospital", "health"}, 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Near Hospital", records[0].Name)
		assert.Equal(t, "Mid Health", records[1].Name)
	})

	t.Run("nearby without categories", func(t *testing.T) {
		records, err := repo.Nearby(ctx, center, 10000, nil, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Pharmacy", records[0].Name)
	})

	t.Run("list", func(t *testing.T) {
		list, err := repo.List(ctx, 2, 0)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}
