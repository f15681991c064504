package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const updateWorker = "update"

// UpdateController re-scrapes idle releases and requests downloads when a
// tracked episode shows up
type UpdateController struct {
	db        *models.Database
	collector Collector
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *logrus.Logger
	now       func() time.Time
}

// NewUpdateController creates a new update controller
func NewUpdateController(db *models.Database, collector Collector, m *metrics.Metrics, logger *logrus.Logger) *UpdateController {
	return &UpdateController{
		db:        db,
		collector: collector,
		metrics:   m,
		tracer:    otel.Tracer("github.com/amaumene/trackarr/internal/controllers"),
		logger:    logger,
		now:       time.Now,
	}
}

// loadSettings returns the settings row, or empty settings when none exists yet
func loadSettings(db *models.Database) (*models.Settings, error) {
	settings, err := db.GetSettings()
	if errors.Is(err, models.ErrNotFound) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// Run performs one tick. A full pass only happens once the configured sync
// interval has elapsed since the previous one.
func (c *UpdateController) Run(ctx context.Context) error {
	settings, err := loadSettings(c.db)
	if err != nil {
		return err
	}

	now := c.now()
	if !settings.SyncDue(now) {
		c.logger.Debug("Sync interval not elapsed, skipping update pass")
		return nil
	}

	return c.SyncAll(ctx, settings)
}

// SyncAll re-scrapes every idle release regardless of the sync interval
func (c *UpdateController) SyncAll(ctx context.Context, settings *models.Settings) error {
	started := c.now()
	ctx, span := c.tracer.Start(ctx, "update.SyncAll")
	defer span.End()
	defer c.metrics.ObservePass(updateWorker, started)

	releases, err := c.db.GetIdleReleases()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to get idle releases: %w", err)
	}

	c.logger.WithField("count", len(releases)).Info("Starting update pass")

	failed := 0
	for _, release := range releases {
		if err := c.updateRelease(ctx, release, settings); err != nil {
			failed++
			c.metrics.RecordError(updateWorker)
			c.logger.WithError(err).WithFields(logrus.Fields{
				"release_id": release.ID,
				"url":        release.URL,
			}).Warn("Failed to update release")

			release.SetError(err)
			if err := c.db.UpdateReleaseFields(release, "ErrorMessage"); err != nil {
				c.logger.WithError(err).WithField("release_id", release.ID).Error("Failed to persist release error")
			}
		}
	}

	if err := c.db.MarkSynced(started); err != nil {
		return fmt.Errorf("failed to record sync time: %w", err)
	}

	span.SetAttributes(attribute.Int("releases", len(releases)), attribute.Int("failed", failed))
	c.logger.WithFields(logrus.Fields{
		"count":  len(releases),
		"failed": failed,
	}).Info("Update pass completed")
	return nil
}

// updateRelease re-scrapes one release. A changed raw title means the upload
// was revised: the record is refreshed and a download is requested when a
// tracked episode became available. A changed magnet alone is stored without
// re-evaluation.
func (c *UpdateController) updateRelease(ctx context.Context, release *models.Release, settings *models.Settings) error {
	ctx, span := c.tracer.Start(ctx, "update.release", trace.WithAttributes(
		attribute.Int64("release_id", int64(release.ID)),
	))
	defer span.End()

	result, err := c.collector.Collect(ctx, release.URL, settings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	scraped := result.ScrapeResult()

	log := c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"title":      release.Title,
	})

	switch {
	case scraped.RawTitle != release.RawTitle:
		c.warnTitleDrift(release, scraped.Title)

		updated, _, err := c.db.UpsertRelease(scraped)
		if err != nil {
			return err
		}

		// A smaller total can leave tracked episodes out of range
		if err := updated.ValidateTracked(updated.TrackedEpisodes); err != nil {
			log.WithError(err).Warn("Tracked episodes no longer fit the release")
			updated.SetError(err)
			return c.db.UpdateReleaseFields(updated, "ErrorMessage")
		}

		fields := []string{"ErrorMessage"}
		updated.SetError(nil)
		if updated.ControlStatus == models.StatusIdle && updated.HasTrackedAvailable() {
			if err := updated.TransitionTo(models.StatusDownloadRequested); err != nil {
				return err
			}
			fields = append(fields, "ControlStatus")
			log.WithField("episodes", updated.TrackedEpisodes.Intersect(updated.HaveEpisodes)).
				Info("Tracked episodes available, requesting download")
		}
		log.WithField("raw_title", scraped.RawTitle).Info("Release updated on tracker")
		return c.db.UpdateReleaseFields(updated, fields...)

	case scraped.Magnet != release.Magnet:
		log.Debug("Magnet changed, storing without re-evaluation")
		release.Magnet = scraped.Magnet
		release.SetError(release.ValidateTracked(release.TrackedEpisodes))
		return c.db.UpdateReleaseFields(release, "Magnet", "ErrorMessage")

	case release.ErrorMessage != "" && release.ValidateTracked(release.TrackedEpisodes) == nil:
		release.SetError(nil)
		return c.db.UpdateReleaseFields(release, "ErrorMessage")
	}

	return nil
}

// warnTitleDrift logs when the normalized show title changed by more than
// half of its length, which usually means the tracker page now points at a
// different show
func (c *UpdateController) warnTitleDrift(release *models.Release, title string) {
	if release.Title == "" || title == release.Title {
		return
	}
	distance := levenshtein.ComputeDistance(release.Title, title)
	if distance*2 <= len([]rune(release.Title)) {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"old_title":  release.Title,
		"new_title":  title,
		"distance":   distance,
	}).Warn("Show title changed significantly")
}
