package api

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/trackarr/internal/api/handlers"
	"github.com/amaumene/trackarr/internal/api/middleware"
	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	db *models.Database,
	releases handlers.ReleaseService,
	processor handlers.TorrentProcessor,
	torrents handlers.TorrentLister,
	cache *transmission.StatusCache,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "trackarr",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		// Adding a release scrapes the tracker synchronously
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	})
	app.Use(middleware.Logging(logger))

	s := &Server{
		app:    app,
		addr:   ":" + cfg.ServerPort,
		logger: logger,
	}

	health := handlers.NewHealthHandler(logger)
	status := handlers.NewStatusHandler(db, cache, logger)
	release := handlers.NewReleaseHandler(releases, logger)
	settings := handlers.NewSettingsHandler(db, logger)
	webhook := handlers.NewWebhookHandler(processor, logger)
	torrent := handlers.NewTorrentsHandler(torrents, logger)

	app.Get("/health", health.Get)
	app.Get("/status", status.Get)
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	api := app.Group("/api")
	api.Get("/releases", release.List)
	api.Post("/releases", release.Create)
	api.Get("/releases/:id", release.Get)
	api.Delete("/releases/:id", release.Delete)
	api.Put("/releases/:id/tracked", release.SetTracked)
	api.Post("/releases/:id/toggle", release.Toggle)
	api.Get("/torrents", torrent.List)
	api.Get("/settings", settings.Get)
	api.Put("/settings", settings.Put)
	api.Post("/webhook/transmission", webhook.Post)

	return s
}

// App exposes the fiber application, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server and blocks until ctx is done
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}
