package handlers

import (
	"context"

	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// TorrentLister is implemented by transmission.Client
type TorrentLister interface {
	List(ctx context.Context) ([]*transmission.TorrentStatus, error)
}

// TorrentsHandler lists the torrents known to the client
type TorrentsHandler struct {
	client TorrentLister
	logger *logrus.Logger
}

// NewTorrentsHandler creates a new torrents handler
func NewTorrentsHandler(client TorrentLister, logger *logrus.Logger) *TorrentsHandler {
	return &TorrentsHandler{
		client: client,
		logger: logger,
	}
}

// List handles GET /api/torrents
func (h *TorrentsHandler) List(c *fiber.Ctx) error {
	torrents, err := h.client.List(c.UserContext())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list torrents")
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"torrents": torrents,
		"total":    len(torrents),
	})
}
