package handlers

import (
	"errors"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// SettingsHandler reads and replaces the settings row
type SettingsHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(db *models.Database, logger *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{
		db:     db,
		logger: logger,
	}
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.db.GetSettings()
	if errors.Is(err, models.ErrNotFound) {
		return c.JSON(&models.Settings{})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(settings)
}

// Put handles PUT /api/settings. The last sync time is owned by the update
// worker and is never taken from the request.
func (h *SettingsHandler) Put(c *fiber.Ctx) error {
	var settings models.Settings
	if err := c.BodyParser(&settings); err != nil {
		return badRequest(c, "invalid payload")
	}
	if settings.SyncIntervalMinutes < 0 {
		return badRequest(c, "sync_interval_minutes must not be negative")
	}

	settings.LastSyncAt = nil
	current, err := h.db.GetSettings()
	switch {
	case err == nil:
		settings.LastSyncAt = current.LastSyncAt
	case !errors.Is(err, models.ErrNotFound):
		return writeError(c, err)
	}

	if err := h.db.SaveSettings(&settings); err != nil {
		h.logger.WithError(err).Error("Failed to save settings")
		return writeError(c, err)
	}

	h.logger.WithFields(logrus.Fields{
		"download_dir":          settings.DownloadDir,
		"media_dir":             settings.MediaDir,
		"sync_interval_minutes": settings.SyncIntervalMinutes,
	}).Info("Settings updated")
	return c.JSON(&settings)
}
