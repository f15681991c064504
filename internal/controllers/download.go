package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/trackarr/internal/library"
	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const downloadWorker = "download"

// DownloadController drives active releases through the torrent client
// and places finished episodes into the library
type DownloadController struct {
	db         *models.Database
	client     TorrentClient
	reconciler *library.Reconciler
	notifier   Notifier
	cache      *transmission.StatusCache
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *logrus.Logger
	now        func() time.Time

	// Serializes scheduled passes with webhook-triggered steps
	mu        sync.Mutex
	lastPrune time.Time
}

// NewDownloadController creates a new download controller
func NewDownloadController(
	db *models.Database,
	client TorrentClient,
	reconciler *library.Reconciler,
	notifier Notifier,
	cache *transmission.StatusCache,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *DownloadController {
	return &DownloadController{
		db:         db,
		client:     client,
		reconciler: reconciler,
		notifier:   notifier,
		cache:      cache,
		metrics:    m,
		tracer:     otel.Tracer("github.com/amaumene/trackarr/internal/controllers"),
		logger:     logger,
		now:        time.Now,
	}
}

// Run performs one tick: every active release gets one step, then placed
// files of inactive releases are checked once per sync interval.
func (c *DownloadController) Run(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := c.now()
	ctx, span := c.tracer.Start(ctx, "download.Run")
	defer span.End()
	defer c.metrics.ObservePass(downloadWorker, started)

	settings, err := loadSettings(c.db)
	if err != nil {
		return err
	}

	releases, err := c.db.GetActiveReleases()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to get active releases: %w", err)
	}

	for _, release := range releases {
		if err := c.step(ctx, release, settings); err != nil {
			c.metrics.RecordError(downloadWorker)
			c.logger.WithError(err).WithFields(logrus.Fields{
				"release_id": release.ID,
				"status":     release.ControlStatus,
			}).Warn("Download step failed")
		}
	}

	if c.lastPrune.IsZero() || started.Sub(c.lastPrune) >= settings.SyncInterval() {
		c.pruneFiles()
		c.lastPrune = started
	}

	c.refreshCounts()
	return nil
}

// ProcessByHash runs the worker for the release owning a client torrent.
// It keeps stepping while the release advances, so a finished torrent is
// placed right away.
func (c *DownloadController) ProcessByHash(ctx context.Context, hash string) (*models.Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	release, err := c.db.GetReleaseByClientTorrentID(hash)
	if err != nil {
		return nil, fmt.Errorf("no release for torrent %s: %w", hash, err)
	}

	settings, err := loadSettings(c.db)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"hash":       hash,
		"status":     release.ControlStatus,
	}).Info("Processing torrent notification")

	for release.ControlStatus.IsActive() {
		before := release.ControlStatus
		if err := c.step(ctx, release, settings); err != nil {
			return release, err
		}
		if release.ControlStatus == before {
			break
		}
	}

	c.refreshCounts()
	return release, nil
}

// step advances one release according to its status
func (c *DownloadController) step(ctx context.Context, release *models.Release, settings *models.Settings) error {
	ctx, span := c.tracer.Start(ctx, "download.step", trace.WithAttributes(
		attribute.Int64("release_id", int64(release.ID)),
		attribute.String("status", string(release.ControlStatus)),
	))
	defer span.End()

	var err error
	switch release.ControlStatus {
	case models.StatusDownloadRequested:
		err = c.startDownload(ctx, release, settings)
	case models.StatusDownloading:
		err = c.checkDownload(ctx, release)
	case models.StatusDownloadCompleted, models.StatusProcessing:
		// A release still in processing was interrupted; placement is
		// idempotent so it is simply run again
		err = c.process(ctx, release, settings)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// startDownload adds the magnet to the client
func (c *DownloadController) startDownload(ctx context.Context, release *models.Release, settings *models.Settings) error {
	hash, err := c.client.Add(ctx, release.Magnet, settings.DownloadDir)
	if err != nil {
		return c.fail(release, fmt.Errorf("failed to add torrent: %w", err))
	}

	if err := release.TransitionTo(models.StatusDownloading); err != nil {
		return err
	}
	release.ClientTorrentID = &hash
	release.SetError(nil)

	c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"title":      release.Title,
		"hash":       hash,
	}).Info("Download started")

	return c.db.UpdateReleaseFields(release, "ControlStatus", "ClientTorrentID", "ErrorMessage")
}

// checkDownload polls the client. File selection is brought in line with
// the tracked set first; a tick that re-wants a file never completes, since
// the client's done date still describes the previous selection.
func (c *DownloadController) checkDownload(ctx context.Context, release *models.Release) error {
	status, err := c.status(ctx, release)
	if err != nil || status == nil {
		return err
	}

	wanted, unwanted := library.SelectFiles(status.Files, release.TrackedEpisodes)

	if len(wanted) == 0 && status.Completed() && status.PercentDone >= 1 {
		if err := release.TransitionTo(models.StatusDownloadCompleted); err != nil {
			return err
		}
		release.SetError(nil)
		c.logger.WithFields(logrus.Fields{
			"release_id": release.ID,
			"title":      release.Title,
			"done_date":  status.DoneDate,
		}).Info("Download completed")
		return c.db.UpdateReleaseFields(release, "ControlStatus", "ErrorMessage")
	}

	if len(wanted) > 0 || len(unwanted) > 0 {
		if err := c.client.SetFiles(ctx, *release.ClientTorrentID, wanted, unwanted); err != nil {
			return c.fail(release, fmt.Errorf("failed to update file selection: %w", err))
		}
		c.logger.WithFields(logrus.Fields{
			"release_id": release.ID,
			"wanted":     len(wanted),
			"unwanted":   len(unwanted),
		}).Debug("Updated file selection")
	}

	if release.ErrorMessage == "" {
		return nil
	}
	release.SetError(nil)
	return c.db.UpdateReleaseFields(release, "ErrorMessage")
}

// process reconciles a finished torrent into the library and returns the
// release to idle. Episodes that could not be placed stay tracked.
func (c *DownloadController) process(ctx context.Context, release *models.Release, settings *models.Settings) error {
	if release.ControlStatus == models.StatusDownloadCompleted {
		if err := release.TransitionTo(models.StatusProcessing); err != nil {
			return err
		}
		if err := c.db.UpdateReleaseFields(release, "ControlStatus"); err != nil {
			return err
		}
	}

	status, err := c.status(ctx, release)
	if err != nil || status == nil {
		return err
	}

	log := c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"title":      release.Title,
	})

	placed, placeErr := c.reconciler.Reconcile(release, status, settings.DownloadDir, settings.MediaDir)

	episodes := make([]int, 0, len(placed))
	paths := make([]string, 0, len(placed))
	for episode, path := range placed {
		episodes = append(episodes, episode)
		paths = append(paths, path)
	}
	release.AddFiles(paths...)
	release.TrackedEpisodes = release.TrackedEpisodes.Without(episodes...)
	release.SetError(placeErr)
	c.metrics.EpisodesPlaced(len(placed))

	if placeErr != nil {
		log.WithError(placeErr).Error("Failed to place some episodes")
	}

	if len(placed) > 0 {
		season := 1
		if release.Season != nil {
			season = *release.Season
		}
		if err := c.notifier.NotifyPlaced(settings.NotificationURL, release.Title, season, placed); err != nil {
			log.WithError(err).Warn("Failed to send notification")
		}
	}

	hash := *release.ClientTorrentID
	if placeErr == nil && len(release.TrackedEpisodes) == 0 && settings.DeleteAfterDownload {
		if err := c.client.Remove(ctx, hash, true); err != nil && !errors.Is(err, transmission.ErrTorrentNotFound) {
			log.WithError(err).Warn("Failed to remove torrent from client")
		}
	}

	if err := release.TransitionTo(models.StatusIdle); err != nil {
		return err
	}
	release.ClientTorrentID = nil
	c.cache.Delete(release.ID)

	log.WithFields(logrus.Fields{
		"placed":    len(placed),
		"remaining": len(release.TrackedEpisodes),
	}).Info("Processing completed")

	return c.db.UpdateReleaseFields(release, "ControlStatus", "ClientTorrentID", "Files", "TrackedEpisodes", "ErrorMessage")
}

// status queries the client and caches the result. A missing torrent resets
// the release to idle and returns a nil status without error.
func (c *DownloadController) status(ctx context.Context, release *models.Release) (*transmission.TorrentStatus, error) {
	if release.ClientTorrentID == nil {
		return nil, c.reset(release)
	}

	status, err := c.client.Status(ctx, *release.ClientTorrentID)
	if errors.Is(err, transmission.ErrTorrentNotFound) {
		return nil, c.reset(release)
	}
	if err != nil {
		return nil, c.fail(release, fmt.Errorf("failed to get torrent status: %w", err))
	}

	c.cache.Set(release.ID, status)
	return status, nil
}

// reset drops a release whose torrent disappeared back to idle
func (c *DownloadController) reset(release *models.Release) error {
	c.logger.WithFields(logrus.Fields{
		"release_id": release.ID,
		"title":      release.Title,
		"status":     release.ControlStatus,
	}).Warn("Torrent missing from client, resetting release to idle")

	release.ResetToIdle()
	c.cache.Delete(release.ID)
	return c.db.UpdateReleaseFields(release, "ControlStatus", "ClientTorrentID")
}

// fail stores err on the release and returns it. The status is kept so the
// step is retried on the next tick.
func (c *DownloadController) fail(release *models.Release, err error) error {
	release.SetError(err)
	if dbErr := c.db.UpdateReleaseFields(release, "ErrorMessage"); dbErr != nil {
		c.logger.WithError(dbErr).WithField("release_id", release.ID).Error("Failed to persist release error")
	}
	return err
}

// pruneFiles forgets placed files that no longer exist on disk
func (c *DownloadController) pruneFiles() {
	releases, err := c.db.GetReleasesByStatus(models.StatusIdle, models.StatusPaused)
	if err != nil {
		c.logger.WithError(err).Error("Failed to get releases for file pruning")
		return
	}

	for _, release := range releases {
		if len(release.Files) == 0 {
			continue
		}
		kept, missing := library.PruneMissing(release.Files)
		if len(missing) == 0 {
			continue
		}

		c.logger.WithFields(logrus.Fields{
			"release_id": release.ID,
			"title":      release.Title,
			"missing":    missing,
		}).Info("Pruning missing library files")

		release.Files = kept
		if err := c.db.UpdateReleaseFields(release, "Files"); err != nil {
			c.logger.WithError(err).WithField("release_id", release.ID).Error("Failed to prune files")
		}
	}
}

// refreshCounts publishes the number of releases per status
func (c *DownloadController) refreshCounts() {
	counts, err := c.db.CountByStatus()
	if err != nil {
		c.logger.WithError(err).Debug("Failed to count releases")
		return
	}
	out := make(map[string]int64, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	c.metrics.SetReleaseCounts(out)
}
