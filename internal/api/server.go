package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
	"github.com/injury-assessment-server/internal/middleware"
	"github.com/injury-assessment-server/internal/notify"
	"github.com/injury-assessment-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// HealthCheck reports the status of one component.
type HealthCheck func(ctx context.Context) (status string, healthy bool)

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Service *service.AssessmentService
	Hub     *notify.Hub
	Checks  map[string]HealthCheck
	Logger  *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	router        *gin.Engine
	server        *http.Server
	service       *service.AssessmentService
	hub           *notify.Hub
	checks        map[string]HealthCheck
	cookie        middleware.SessionCookie
	maxUpload     int64
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Deps) (*Server, error) {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	server := &Server{
		configManager: configManager,
		router:        router,
		service:       deps.Service,
		hub:           deps.Hub,
		checks:        deps.Checks,
		cookie: middleware.SessionCookie{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
			MaxAge: int(cfg.Session.TTL / time.Second),
		},
		maxUpload: cfg.Session.MaxImageBytes,
		logger:    deps.Logger,
	}
	if server.maxUpload <= 0 {
		server.maxUpload = 6 << 20
	}

	router.Use(server.cookie.Load())

	limiter, err := middleware.NewClientRateLimiter(cfg.Security.RateLimit, cfg.Security.RateBurst, cfg.Security.LimiterEntries)
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}
	router.Use(limiter.Middleware())

	if cfg.Security.CSRFEnabled {
		if len(cfg.Security.CSRFKey) != 32 {
			return nil, errors.New("security.csrf_key must be 32 bytes when CSRF is enabled")
		}
		router.Use(middleware.CSRF([]byte(cfg.Security.CSRFKey), cfg.Server.TLSEnabled, cfg.Server.AllowedOrigins))
	}

	server.setupRoutes(cfg.Server.RequestTimeout)
	return server, nil
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.service.Wait(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(timeout time.Duration) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.GET("/session/events", s.requireSession, s.handleEvents)

	api := v1.Group("", middleware.RequestTimeout(timeout))
	{
		api.GET("/recommendations", s.handleRecommendations)
		api.GET("/facilities", s.handleFacilities)
		api.POST("/session", s.handleStartSession)
	}

	sess := api.Group("/session", s.requireSession)
	{
		sess.GET("", s.handleSnapshot)
		sess.DELETE("", s.handleGoHome)
		sess.POST("/reset", s.handleReset)
		sess.POST("/images", s.handleUploadImages)
		sess.PUT("/images/selection", s.handleSelectImages)
		sess.POST("/questionnaire", s.handleQuestionnaire)
		sess.POST("/analysis", s.handleAnalysis)
		sess.GET("/severity", s.handleSeverity)
		sess.GET("/recommendations", s.handleSessionRecommendations)
	}
}

// handleHealth reports component status. A degraded component still
// answers 200.
func (s *Server) handleHealth(c *gin.Context) {
	components := make(gin.H, len(s.checks))
	degraded := false
	for name, check := range s.checks {
		status, healthy := check(c.Request.Context())
		components[name] = status
		if !healthy {
			degraded = true
		}
	}

	status := "healthy"
	if degraded {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC(),
		"version":    Version,
	})
}
