package handlers

import (
	"time"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	cache  *transmission.StatusCache
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, cache *transmission.StatusCache, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalReleases int64                                  `json:"total_releases"`
	ByStatus      map[models.ControlStatus]int64         `json:"by_status"`
	Torrents      map[uint64]*transmission.TorrentStatus `json:"torrents"`
	LastSyncAt    *time.Time                             `json:"last_sync_at"`
}

// Get handles the status endpoint
func (h *StatusHandler) Get(c *fiber.Ctx) error {
	counts, err := h.db.CountByStatus()
	if err != nil {
		h.logger.WithError(err).Error("Failed to count releases")
		return writeError(c, err)
	}

	response := StatusResponse{
		ByStatus: counts,
		Torrents: h.cache.All(),
	}
	for _, n := range counts {
		response.TotalReleases += n
	}

	if settings, err := h.db.GetSettings(); err == nil && settings.LastSyncAt != nil {
		response.LastSyncAt = settings.LastSyncAt
	}

	return c.JSON(response)
}
