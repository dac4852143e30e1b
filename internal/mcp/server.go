// Package mcp exposes the stateless assessment operations as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	litecfg "github.com/injury-assessment-server/internal/config"
	"github.com/injury-assessment-server/internal/database"
	"github.com/injury-assessment-server/internal/domain"
	"github.com/injury-assessment-server/internal/locator"
	"github.com/injury-assessment-server/internal/service"
)

// ToolServer serves classify_injury, filter_recommendations and
// locate_facilities. It keeps no per-caller state.
type ToolServer struct {
	config     *litecfg.LiteConfig
	mcpServer  *mcp.Server
	classifier *service.SeverityClassifier
	catalog    *service.RecommendationCatalog
	locator    domain.FacilityLocator
	built      *locator.Built
	logger     *logrus.Logger
}

// Option is a functional option for ToolServer.
type Option func(*ToolServer) error

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *ToolServer) error {
		s.logger = logger
		return nil
	}
}

// WithLocator replaces the configured facility locator.
func WithLocator(l domain.FacilityLocator) Option {
	return func(s *ToolServer) error {
		s.locator = l
		return nil
	}
}

// NewToolServer creates the tool server. It requires no external services:
// the directory backend uses a SQLite file under the data directory.
func NewToolServer(ctx context.Context, cfg *litecfg.LiteConfig, opts ...Option) (*ToolServer, error) {
	server := &ToolServer{
		config: cfg,
		logger: litecfg.NewLogger(domain.LoggingConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: "stderr",
		}),
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	server.classifier = service.NewSeverityClassifier(server.logger, cfg.ClassifierConfig())
	server.catalog = service.NewRecommendationCatalog()

	if server.locator == nil {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		built, err := locator.New(ctx, &domain.Config{
			Locator: cfg.LocatorConfig(),
			Database: domain.DatabaseConfig{
				Driver:      database.DriverSQLite,
				Path:        cfg.FacilitiesDBPath(),
				AutoMigrate: true,
			},
		}, server.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create facility locator: %w", err)
		}
		server.built = built
		server.locator = built.Locator
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    "injury-assessment-tools",
		Version: "v0.1.0",
	}, nil)
	server.registerTools()

	server.logger.Info("Tool server initialized")
	return server, nil
}

func (s *ToolServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolClassifyInjury,
		Description: "Classify injury severity as mild, moderate or severe from questionnaire answers, or from an image signal when no answers are given. With neither it defaults to mild with a notice.",
	}, s.handleClassifyInjury)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolFilterRecommendations,
		Description: "List the self-care recommendations for a severity tier. Severe includes the urgent care item.",
	}, s.handleFilterRecommendations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolLocateFacilities,
		Description: "Find hospitals and health centers near a position, nearest first.",
	}, s.handleLocateFacilities)

	s.logger.WithField("tool_count", 3).Info("Registered MCP tools")
}

// Start runs the server over stdio until ctx ends or the client disconnects.
func (s *ToolServer) Start(ctx context.Context) error {
	s.logger.Info("Starting injury assessment tool server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *ToolServer) Close() error {
	if s.built != nil {
		s.built.Close()
	}
	return nil
}
