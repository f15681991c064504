package controllers

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/trackarr/internal/library"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/sirupsen/logrus"
)

// ReleaseController implements the user-facing release operations
type ReleaseController struct {
	db        *models.Database
	collector Collector
	client    TorrentClient
	cache     *transmission.StatusCache
	logger    *logrus.Logger
}

// NewReleaseController creates a new release controller
func NewReleaseController(db *models.Database, collector Collector, client TorrentClient, cache *transmission.StatusCache, logger *logrus.Logger) *ReleaseController {
	return &ReleaseController{
		db:        db,
		collector: collector,
		client:    client,
		cache:     cache,
		logger:    logger,
	}
}

// Add collects a release page and stores it. Adding a known release
// refreshes it. When tracked is non-nil it replaces the tracked episodes.
func (c *ReleaseController) Add(ctx context.Context, rawURL string, tracked []int) (*models.Release, error) {
	settings, err := loadSettings(c.db)
	if err != nil {
		return nil, err
	}

	result, err := c.collector.Collect(ctx, rawURL, settings)
	if err != nil {
		return nil, err
	}
	scraped := result.ScrapeResult()

	var trackedSet models.EpisodeSet
	if tracked != nil {
		trackedSet = models.NewEpisodeSet(tracked...)
		probe := &models.Release{TotalEpisodes: &scraped.TotalEpisodes}
		if err := probe.ValidateTracked(trackedSet); err != nil {
			return nil, err
		}
	}

	previousRaw := ""
	if existing, err := c.db.GetReleaseByTrackerItem(scraped.Tracker, scraped.TrackerItemID); err == nil {
		previousRaw = existing.RawTitle
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	release, created, err := c.db.UpsertRelease(scraped)
	if err != nil {
		return nil, err
	}
	changed := created || previousRaw != scraped.RawTitle

	fields := []string{}
	if tracked != nil {
		release.TrackedEpisodes = trackedSet
		fields = append(fields, "TrackedEpisodes")
		changed = true
	} else if err := release.ValidateTracked(release.TrackedEpisodes); err != nil {
		// The refreshed total no longer covers the stored tracked set
		release.SetError(err)
		fields = append(fields, "ErrorMessage")
		changed = false
	}
	if changed && release.ControlStatus == models.StatusIdle && release.HasTrackedAvailable() {
		if err := release.TransitionTo(models.StatusDownloadRequested); err != nil {
			return nil, err
		}
		fields = append(fields, "ControlStatus")
	}
	if len(fields) > 0 {
		if err := c.db.UpdateReleaseFields(release, fields...); err != nil {
			return nil, err
		}
	}

	c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"tracker":    release.Tracker,
		"title":      release.Title,
		"created":    created,
		"status":     release.ControlStatus,
	}).Info("Release added")

	return release, nil
}

// SetTrackedEpisodes replaces the tracked episodes of a release. An idle
// release with a tracked episode already available is queued for download.
func (c *ReleaseController) SetTrackedEpisodes(ctx context.Context, id uint64, episodes []int) (*models.Release, error) {
	release, err := c.db.GetReleaseByID(id)
	if err != nil {
		return nil, err
	}

	if err := release.SetTracked(episodes...); err != nil {
		return nil, err
	}

	fields := []string{"TrackedEpisodes"}
	if release.ControlStatus == models.StatusIdle && release.HasTrackedAvailable() {
		if err := release.TransitionTo(models.StatusDownloadRequested); err != nil {
			return nil, err
		}
		fields = append(fields, "ControlStatus")
	}

	if err := c.db.UpdateReleaseFields(release, fields...); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"tracked":    release.TrackedEpisodes,
		"status":     release.ControlStatus,
	}).Info("Tracked episodes updated")
	return release, nil
}

// Toggle pauses an idle release or resumes a paused one
func (c *ReleaseController) Toggle(ctx context.Context, id uint64) (*models.Release, error) {
	release, err := c.db.GetReleaseByID(id)
	if err != nil {
		return nil, err
	}

	if err := release.Toggle(); err != nil {
		return nil, err
	}
	if err := c.db.UpdateReleaseFields(release, "ControlStatus"); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"status":     release.ControlStatus,
	}).Info("Release toggled")
	return release, nil
}

// Delete removes a release together with its placed files and its torrent.
// File and torrent removal are best effort.
func (c *ReleaseController) Delete(ctx context.Context, id uint64) error {
	release, err := c.db.GetReleaseByID(id)
	if err != nil {
		return err
	}

	log := c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"title":      release.Title,
	})

	if failed := library.RemoveFiles(release.Files); len(failed) > 0 {
		log.WithField("files", failed).Warn("Failed to remove some library files")
	}

	if release.ClientTorrentID != nil {
		err := c.client.Remove(ctx, *release.ClientTorrentID, true)
		if err != nil && !errors.Is(err, transmission.ErrTorrentNotFound) {
			log.WithError(err).Warn("Failed to remove torrent from client")
		}
	}

	c.cache.Delete(release.ID)

	if err := c.db.DeleteRelease(release.ID); err != nil {
		return fmt.Errorf("failed to delete release %d: %w", release.ID, err)
	}

	log.Info("Release deleted")
	return nil
}

// List returns one page of releases and the total count
func (c *ReleaseController) List(ctx context.Context, page, perPage int) ([]*models.Release, int64, error) {
	return c.db.ListReleases(page, perPage)
}

// Get returns a release by ID
func (c *ReleaseController) Get(ctx context.Context, id uint64) (*models.Release, error) {
	return c.db.GetReleaseByID(id)
}
