package handlers

import (
	"context"
	"errors"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// TorrentProcessor is implemented by controllers.DownloadController
type TorrentProcessor interface {
	ProcessByHash(ctx context.Context, hash string) (*models.Release, error)
}

// WebhookHandler handles Transmission torrent-done callbacks
type WebhookHandler struct {
	processor TorrentProcessor
	logger    *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(processor TorrentProcessor, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// Post handles the webhook endpoint
func (h *WebhookHandler) Post(c *fiber.Ctx) error {
	var payload transmission.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.WithError(err).Error("Failed to decode webhook payload")
		return badRequest(c, "invalid payload")
	}

	hash, err := payload.TorrentHash()
	if err != nil {
		h.logger.WithField("hash", payload.Hash).Warn("Received Transmission webhook without a valid hash")
		return badRequest(c, err.Error())
	}

	h.logger.WithFields(logrus.Fields{
		"hash": hash,
		"name": payload.Name,
	}).Info("Received Transmission webhook")

	release, err := h.processor.ProcessByHash(c.UserContext(), hash)
	if errors.Is(err, models.ErrNotFound) {
		// Torrents added by hand are not ours
		return c.JSON(fiber.Map{"status": "ignored"})
	}
	if err != nil {
		h.logger.WithError(err).WithField("hash", hash).Error("Failed to process webhook")
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":         "ok",
		"release_id":     release.ID,
		"control_status": release.ControlStatus,
	})
}
