package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/api"
	"github.com/injury-assessment-server/internal/config"
	"github.com/injury-assessment-server/internal/domain"
	"github.com/injury-assessment-server/internal/locator"
	"github.com/injury-assessment-server/internal/notify"
	"github.com/injury-assessment-server/internal/service"
	"github.com/injury-assessment-server/internal/session"
	"github.com/injury-assessment-server/pkg/vision"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting injury assessment server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	store, err := openSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	images, err := session.NewImageCache(cfg.Session.ImageCacheMax)
	if err != nil {
		return err
	}

	var loader *vision.Loader
	if cfg.Vision.Enabled {
		loader = vision.NewExtractorLoader(vision.Config{
			Method:    domain.SignalMethod(cfg.Vision.Method),
			MaxPixels: cfg.Vision.MaxPixels,
			Workers:   cfg.Vision.Workers,
		}, cfg.Vision.LoadTimeout, logger)
		loader.Start()
	} else {
		loader = vision.NewLoader(func(context.Context) (domain.SignalExtractor, error) {
			return nil, errors.New("image analysis disabled by configuration")
		}, time.Second, logger)
	}

	built, err := locator.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer built.Close()

	hub := notify.NewHub(cfg.Server.AllowedOrigins, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	svc := service.NewAssessmentService(service.AssessmentDeps{
		Store:      store,
		Classifier: service.NewSeverityClassifier(logger, cfg.Classifier),
		Catalog:    service.NewRecommendationCatalog(),
		Locator:    built.Locator,
		Signals:    loader,
		Images:     images,
		Notifier:   hub,
	}, service.AssessmentConfig{
		MaxImages:       cfg.Session.MaxImages,
		MaxImageBytes:   cfg.Session.MaxImageBytes,
		SignalMethod:    domain.SignalMethod(cfg.Vision.Method),
		AnalysisTimeout: 30 * time.Second,
	}, logger)

	checks := map[string]api.HealthCheck{
		"vision": func(context.Context) (string, bool) {
			state := loader.State()
			return state.String(), state == vision.StateLoaded
		},
		"session_store": func(ctx context.Context) (string, bool) {
			if _, err := store.Generation(ctx, "health"); err != nil {
				return "unavailable", false
			}
			return cfg.Session.Backend, true
		},
	}
	if built.Cache != nil {
		checks["locator_cache"] = func(context.Context) (string, bool) {
			stats := built.Cache.Stats()
			return fmt.Sprintf("hits=%d misses=%d size=%d", stats.Hits, stats.Misses, stats.Size), true
		}
	}

	server, err := api.NewServer(configManager, api.Deps{
		Service: svc,
		Hub:     hub,
		Checks:  checks,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	return server.Start(ctx)
}

func openSessionStore(cfg *domain.Config, logger *logrus.Logger) (domain.SessionStore, error) {
	switch cfg.Session.Backend {
	case "redis":
		client, err := session.NewRedisClient(cfg.Cache)
		if err != nil {
			return nil, err
		}
		logger.Info("Using redis session store")
		return session.NewRedisStore(client, cfg.Session.TTL, logger), nil
	default:
		logger.Info("Using in-memory session store")
		return session.NewMemoryStore(cfg.Session.MaxSessions, cfg.Session.TTL), nil
	}
}
