package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the gorm connection
type Database struct {
	db *gorm.DB
}

// NewDatabase opens (and migrates) the SQLite database at path
func NewDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Release{}, &Settings{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Release operations

// UpsertRelease creates or refreshes the release identified by
// (Tracker, TrackerItemID). User-owned fields (tracked episodes, files,
// status) are left untouched on update.
func (d *Database) UpsertRelease(result ScrapeResult) (*Release, bool, error) {
	var release Release
	created := false

	err := d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tracker = ? AND tracker_item_id = ?", result.Tracker, result.TrackerItemID).
			First(&release).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			release = Release{
				ControlStatus:   StatusIdle,
				TrackedEpisodes: EpisodeSet{},
				Files:           []string{},
			}
			result.Apply(&release)
			created = true
			return tx.Create(&release).Error
		case err != nil:
			return err
		}

		result.Apply(&release)
		return tx.Model(&release).
			Select("URL", "Magnet", "RawTitle", "Title", "Season", "TotalEpisodes", "HaveEpisodes", "UpdatedAt").
			Updates(&release).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert release %s/%s: %w", result.Tracker, result.TrackerItemID, err)
	}

	return &release, created, nil
}

// UpdateRelease persists every column of the release
func (d *Database) UpdateRelease(release *Release) error {
	release.UpdatedAt = time.Now()
	return d.db.Save(release).Error
}

// UpdateReleaseFields persists only the named fields. Workers use this so
// that concurrent edits of other columns are not overwritten.
func (d *Database) UpdateReleaseFields(release *Release, fields ...string) error {
	release.UpdatedAt = time.Now()
	columns := append([]string{"UpdatedAt"}, fields...)
	return d.db.Model(release).Select(columns).Updates(release).Error
}

// GetReleaseByID retrieves a release by ID
func (d *Database) GetReleaseByID(id uint64) (*Release, error) {
	var release Release
	if err := d.db.First(&release, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &release, nil
}

// GetReleaseByTrackerItem retrieves a release by its tracker identity
func (d *Database) GetReleaseByTrackerItem(tracker, itemID string) (*Release, error) {
	var release Release
	err := d.db.Where("tracker = ? AND tracker_item_id = ?", tracker, itemID).First(&release).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &release, nil
}

// GetReleaseByClientTorrentID retrieves the release owning a client torrent hash
func (d *Database) GetReleaseByClientTorrentID(hash string) (*Release, error) {
	var release Release
	if err := d.db.Where("client_torrent_id = ?", hash).First(&release).Error; err != nil {
		return nil, notFound(err)
	}
	return &release, nil
}

// ListReleases returns one page of releases, newest first, plus the total count
func (d *Database) ListReleases(page, perPage int) ([]*Release, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var total int64
	if err := d.db.Model(&Release{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var releases []*Release
	err := d.db.Order("id DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&releases).Error
	return releases, total, err
}

// GetReleasesByStatus retrieves releases in any of the given statuses
func (d *Database) GetReleasesByStatus(statuses ...ControlStatus) ([]*Release, error) {
	var releases []*Release
	err := d.db.Where("control_status IN ?", statuses).Order("id").Find(&releases).Error
	return releases, err
}

// GetIdleReleases retrieves releases polled by the update worker
func (d *Database) GetIdleReleases() ([]*Release, error) {
	return d.GetReleasesByStatus(StatusIdle)
}

// GetActiveReleases retrieves releases owned by the download worker
func (d *Database) GetActiveReleases() ([]*Release, error) {
	return d.GetReleasesByStatus(ActiveStatuses...)
}

// CountByStatus returns the number of releases per status
func (d *Database) CountByStatus() (map[ControlStatus]int64, error) {
	type row struct {
		ControlStatus ControlStatus
		Count         int64
	}
	var rows []row
	err := d.db.Model(&Release{}).
		Select("control_status, COUNT(*) AS count").
		Group("control_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[ControlStatus]int64, len(AllStatuses))
	for _, status := range AllStatuses {
		counts[status] = 0
	}
	for _, r := range rows {
		counts[r.ControlStatus] = r.Count
	}
	return counts, nil
}

// DeleteRelease deletes a release by ID
func (d *Database) DeleteRelease(id uint64) error {
	res := d.db.Delete(&Release{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Settings operations

// GetSettings returns the settings row
func (d *Database) GetSettings() (*Settings, error) {
	var settings Settings
	if err := d.db.First(&settings, settingsID).Error; err != nil {
		return nil, notFound(err)
	}
	return &settings, nil
}

// SeedSettings stores defaults when no settings row exists yet
func (d *Database) SeedSettings(defaults *Settings) error {
	_, err := d.GetSettings()
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	defaults.ID = settingsID
	return d.db.Create(defaults).Error
}

// SaveSettings persists the settings row
func (d *Database) SaveSettings(settings *Settings) error {
	settings.ID = settingsID
	return d.db.Save(settings).Error
}

// MarkSynced records the time of the last full update pass, creating the
// settings row when needed
func (d *Database) MarkSynced(at time.Time) error {
	res := d.db.Model(&Settings{ID: settingsID}).Update("last_sync_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return d.db.Create(&Settings{ID: settingsID, LastSyncAt: &at}).Error
	}
	return nil
}
