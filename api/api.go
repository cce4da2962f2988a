package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/trigger"
)

// Server is the API server for storing and recalling context records.
type Server struct {
	config   Config
	engine   *engine.Engine
	analyzer *trigger.Analyzer
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
// The engine is injected to allow sharing with other components
// (e.g., the worker pool when ingesting contexts asynchronously).
func NewServer(config Config, eng *engine.Engine, analyzer *trigger.Analyzer, logger *zap.Logger) (*Server, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	if analyzer == nil {
		analyzer = trigger.NewAnalyzer(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		engine:   eng,
		analyzer: analyzer,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/contexts", s.handleStoreContext)
	app.Get("/v1/recall", s.handleRecall)
	app.Patch("/v1/contexts/:id/outcome", s.handleUpdateOutcome)
	app.Post("/v1/cleanup", s.handleCleanup)
	app.Get("/v1/sessions/:id", s.handleSessionSummary)
	app.Get("/v1/health", s.handleHealth)
	app.Post("/v1/analyze", s.handleAnalyze)

	return s, nil
}

// MountMCP mounts an MCP streamable HTTP handler at /mcp.
func (s *Server) MountMCP(handler http.Handler) {
	s.app.All("/mcp", adaptor.HTTPHandler(handler))
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
