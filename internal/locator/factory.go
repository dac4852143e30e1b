package locator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/database"
	"github.com/injury-assessment-server/internal/directory"
	"github.com/injury-assessment-server/internal/domain"
	"github.com/injury-assessment-server/internal/repository"
	"github.com/injury-assessment-server/pkg/external"
)

// Backend names accepted in locator.backend.
const (
	BackendStatic    = "static"
	BackendDirectory = "directory"
	BackendRemote    = "remote"
)

// Built is a configured locator plus whatever must be released on shutdown.
type Built struct {
	Locator domain.FacilityLocator
	Cache   *CachedLocator
	closers []func()
}

// Close releases backend resources.
func (b *Built) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// New builds the locator selected by cfg.Locator.Backend, wrapped in a
// result cache when cache_size > 0.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*Built, error) {
	opts := OptionsFrom(cfg.Locator)
	built := &Built{}

	var base domain.FacilityLocator
	switch cfg.Locator.Backend {
	case BackendStatic, "":
		base = NewStaticLocator(cfg.Locator.Fixtures, opts)

	case BackendDirectory:
		dir, closeDir, err := openDirectory(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		built.closers = append(built.closers, closeDir)

		seed := cfg.Locator.Fixtures
		if len(seed) == 0 {
			seed = DefaultFixtures
		}
		if _, err := directory.Seed(ctx, dir, seed, logger); err != nil {
			built.Close()
			return nil, fmt.Errorf("seeding facility directory: %w", err)
		}
		base = NewDirectoryLocator(dir, opts)

	case BackendRemote:
		base = NewRemoteLocator(external.NewPlacesClient(cfg.Locator.Remote, logger), opts)

	default:
		return nil, fmt.Errorf("unknown locator backend: %s", cfg.Locator.Backend)
	}

	built.Locator = base
	if cfg.Locator.CacheSize > 0 {
		cached, err := NewCachedLocator(base, opts, cfg.Locator.CacheSize, cfg.Locator.CacheTTL, logger)
		if err != nil {
			built.Close()
			return nil, fmt.Errorf("creating locator cache: %w", err)
		}
		built.Locator = cached
		built.Cache = cached
	}

	logger.WithFields(logrus.Fields{
		"backend":       cfg.Locator.Backend,
		"radius_meters": cfg.Locator.RadiusMeters,
		"cached":        built.Cache != nil,
	}).Info("Facility locator ready")

	return built, nil
}

func openDirectory(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (domain.FacilityDirectory, func(), error) {
	switch cfg.Driver {
	case database.DriverSQLite, "":
		store, err := directory.NewSQLiteStore(ctx, cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case database.DriverPostgres:
		pgCfg := database.ConfigFrom(cfg)
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, database.DriverPostgres, pgCfg.URL(), logger); err != nil {
				return nil, nil, fmt.Errorf("migrating facility directory: %w", err)
			}
		}
		db, err := database.NewConnection(ctx, pgCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewFacilityRepository(db.Pool, logger), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
