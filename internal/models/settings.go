package models

import "time"

// settingsID is the primary key of the single settings row
const settingsID = 1

// Credential holds a tracker login
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Settings holds the user-editable configuration read by the workers
type Settings struct {
	ID uint `gorm:"primaryKey" json:"-"`

	DownloadDir         string `json:"download_dir"`
	MediaDir            string `json:"media_dir"`
	SyncIntervalMinutes int    `json:"sync_interval_minutes"`
	DeleteAfterDownload bool   `json:"delete_after_download"`

	// Keyed by tracker name
	Credentials map[string]Credential `gorm:"serializer:json" json:"credentials"`

	// Shoutrrr URL, empty disables notifications
	NotificationURL string `json:"notification_url"`

	LastSyncAt *time.Time `json:"last_sync_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SyncInterval returns the configured interval, falling back to one hour
func (s *Settings) SyncInterval() time.Duration {
	if s.SyncIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.SyncIntervalMinutes) * time.Minute
}

// SyncDue reports whether a full update pass should run at now
func (s *Settings) SyncDue(now time.Time) bool {
	if s.LastSyncAt == nil {
		return true
	}
	return now.Sub(*s.LastSyncAt) >= s.SyncInterval()
}

// CredentialFor returns the stored login for a tracker
func (s *Settings) CredentialFor(tracker string) (Credential, bool) {
	if s == nil {
		return Credential{}, false
	}
	cred, ok := s.Credentials[tracker]
	if !ok || cred.Username == "" {
		return Credential{}, false
	}
	return cred, true
}
