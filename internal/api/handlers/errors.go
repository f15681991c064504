package handlers

import (
	"errors"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/scraper"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/amaumene/trackarr/internal/trackers"
	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type kinded interface {
	ErrorKind() string
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var validation *models.ValidationError
	var scrape *scraper.Error
	var auth *trackers.AuthError
	var rpc *transmission.ClientError

	switch {
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &validation):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, scraper.ErrTrackerNotFound), errors.Is(err, scraper.ErrTorrentIDNotFound):
		return fiber.StatusBadRequest
	case errors.As(err, &scrape), errors.As(err, &auth), errors.As(err, &rpc):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError sends err as JSON with the matching status code
func writeError(c *fiber.Ctx, err error) error {
	resp := ErrorResponse{Error: err.Error()}
	var k kinded
	if errors.As(err, &k) {
		resp.Kind = k.ErrorKind()
	}
	return c.Status(statusFor(err)).JSON(resp)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: message})
}

// releaseID parses the :id route parameter
func releaseID(c *fiber.Ctx) (uint64, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint64(id), true
}
