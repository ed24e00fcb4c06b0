package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/engine"
)

// Server is the API server for the engram engine.
type Server struct {
	config Config
	engine *engine.Engine
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The engine is injected to allow sharing with other components
// (e.g., CLI commands running in-process).
func NewServer(config Config, eng *engine.Engine, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: eng,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/generate", s.handleGenerate)
	app.Get("/memories", s.handleListMemories)
	app.Delete("/memories/:session_id", s.handleClearMemories)
	app.Post("/consolidate", s.handleConsolidate)

	return s
}

// App exposes the underlying fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
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
