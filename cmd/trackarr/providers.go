package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/amaumene/trackarr/internal/api"
	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/scheduler"
	"github.com/amaumene/trackarr/internal/scraper"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/amaumene/trackarr/internal/trackers"
	"github.com/amaumene/trackarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// App holds everything the serve command runs
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Scheduler *scheduler.Scheduler
	Server    *api.Server
}

// CollectApp holds what a one-off collection needs
type CollectApp struct {
	Logger    *logrus.Logger
	DB        *models.Database
	Collector *scraper.Collector
}

// Tracker logins stay valid for a while; expired cookies are also dropped on
// an access error
const cookieTTL = 6 * time.Hour

// Cached client statuses outlive a few download ticks
const statusTTL = 10 * time.Minute

func provideLogger(cfg *config.Config) *logrus.Logger {
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFile)
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")
	return logger
}

// provideDatabase opens the database and seeds the settings row from the
// environment on first start
func provideDatabase(cfg *config.Config, logger *logrus.Logger) (*models.Database, func(), error) {
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	seed := &models.Settings{
		DownloadDir:         cfg.DownloadDir,
		MediaDir:            cfg.MediaDir,
		SyncIntervalMinutes: cfg.SyncIntervalMinutes,
		DeleteAfterDownload: cfg.DeleteAfterDownload,
		NotificationURL:     cfg.NotificationURL,
		Credentials:         map[string]models.Credential{},
	}
	if cfg.KinozalUsername != "" {
		seed.Credentials[trackers.Kinozal.Name()] = models.Credential{
			Username: cfg.KinozalUsername,
			Password: cfg.KinozalPassword,
		}
	}
	if err := db.SeedSettings(seed); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	logger.Info("Database initialized")
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("Failed to close database")
		}
	}
	return db, cleanup, nil
}

func provideBlacklist(cfg *config.Config, logger *logrus.Logger) *utils.Blacklist {
	blacklist, err := utils.LoadBlacklist(cfg.BlacklistFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load blacklist, continuing without it")
		return utils.NewBlacklist()
	}
	logger.WithField("terms", blacklist.Len()).Info("Blacklist loaded")
	return blacklist
}

func provideMetrics() *metrics.Metrics {
	return metrics.New(nil)
}

func provideFetcher(cfg *config.Config) *scraper.Fetcher {
	return scraper.NewFetcher(cfg.FetchTimeout, cfg.FetchAttempts, cfg.TrackerRatePerSecond)
}

func provideAuthenticator(cfg *config.Config, logger *logrus.Logger) *trackers.Authenticator {
	store := trackers.NewMemoryCookieStore(cookieTTL)
	return trackers.NewAuthenticator(store, cfg.FetchTimeout, cfg.FetchAttempts, logger)
}

func provideStatusCache() *transmission.StatusCache {
	return transmission.NewStatusCache(statusTTL)
}

func provideScheduler(cfg *config.Config, update *controllers.UpdateController, download *controllers.DownloadController, logger *logrus.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(update, download, cfg.UpdateTick, cfg.DownloadTick, logger)
}
