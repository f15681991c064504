package handlers

import (
	"context"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ReleaseService is implemented by controllers.ReleaseController
type ReleaseService interface {
	Add(ctx context.Context, rawURL string, tracked []int) (*models.Release, error)
	SetTrackedEpisodes(ctx context.Context, id uint64, episodes []int) (*models.Release, error)
	Toggle(ctx context.Context, id uint64) (*models.Release, error)
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, page, perPage int) ([]*models.Release, int64, error)
	Get(ctx context.Context, id uint64) (*models.Release, error)
}

// ReleaseHandler serves the release management endpoints
type ReleaseHandler struct {
	releases ReleaseService
	logger   *logrus.Logger
}

// NewReleaseHandler creates a new release handler
func NewReleaseHandler(releases ReleaseService, logger *logrus.Logger) *ReleaseHandler {
	return &ReleaseHandler{
		releases: releases,
		logger:   logger,
	}
}

// AddRequest is the body of POST /api/releases
type AddRequest struct {
	URL     string `json:"url"`
	Tracked []int  `json:"tracked"`
}

// TrackedRequest is the body of PUT /api/releases/:id/tracked
type TrackedRequest struct {
	Episodes []int `json:"episodes"`
}

// ListResponse is one page of releases
type ListResponse struct {
	Releases []*models.Release `json:"releases"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PerPage  int               `json:"per_page"`
}

// List handles GET /api/releases
func (h *ReleaseHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", 20)

	releases, total, err := h.releases.List(c.UserContext(), page, perPage)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list releases")
		return writeError(c, err)
	}

	return c.JSON(ListResponse{
		Releases: releases,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
	})
}

// Create handles POST /api/releases
func (h *ReleaseHandler) Create(c *fiber.Ctx) error {
	var req AddRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if req.URL == "" {
		return badRequest(c, "url is required")
	}

	release, err := h.releases.Add(c.UserContext(), req.URL, req.Tracked)
	if err != nil {
		h.logger.WithError(err).WithField("url", req.URL).Warn("Failed to add release")
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(release)
}

// Get handles GET /api/releases/:id
func (h *ReleaseHandler) Get(c *fiber.Ctx) error {
	id, ok := releaseID(c)
	if !ok {
		return badRequest(c, "invalid release id")
	}

	release, err := h.releases.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(release)
}

// Delete handles DELETE /api/releases/:id
func (h *ReleaseHandler) Delete(c *fiber.Ctx) error {
	id, ok := releaseID(c)
	if !ok {
		return badRequest(c, "invalid release id")
	}

	if err := h.releases.Delete(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetTracked handles PUT /api/releases/:id/tracked
func (h *ReleaseHandler) SetTracked(c *fiber.Ctx) error {
	id, ok := releaseID(c)
	if !ok {
		return badRequest(c, "invalid release id")
	}

	var req TrackedRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid payload")
	}

	release, err := h.releases.SetTrackedEpisodes(c.UserContext(), id, req.Episodes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(release)
}

// Toggle handles POST /api/releases/:id/toggle
func (h *ReleaseHandler) Toggle(c *fiber.Ctx) error {
	id, ok := releaseID(c)
	if !ok {
		return badRequest(c, "invalid release id")
	}

	release, err := h.releases.Toggle(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(release)
}
