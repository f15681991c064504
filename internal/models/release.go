package models

import (
	"fmt"
	"sort"
	"time"
)

// Release is one tracked upload of a show/season on a tracker
type Release struct {
	ID            uint64 `gorm:"primaryKey" json:"id"`
	Tracker       string `gorm:"uniqueIndex:idx_tracker_item;not null" json:"tracker"`
	TrackerItemID string `gorm:"uniqueIndex:idx_tracker_item;not null" json:"tracker_item_id"`

	URL    string `json:"url"`
	Magnet string `json:"magnet"`

	RawTitle string `json:"raw_title"`
	Title    string `json:"title"` // Normalized show name

	Season        *int `json:"season"`
	TotalEpisodes *int `json:"total_episodes"`

	HaveEpisodes    EpisodeSet `gorm:"serializer:json" json:"have_episodes"`
	TrackedEpisodes EpisodeSet `gorm:"serializer:json" json:"tracked_episodes"`

	// Absolute paths already placed in the media library
	Files []string `gorm:"serializer:json" json:"files"`

	ControlStatus   ControlStatus `gorm:"index;not null;default:idle" json:"control_status"`
	ClientTorrentID *string       `gorm:"index" json:"client_torrent_id"` // Torrent hash in the client
	ErrorMessage    string        `json:"error_message"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EpisodeSet is a sorted set of episode numbers
type EpisodeSet []int

// NewEpisodeSet builds a set from arbitrary numbers, dropping duplicates
func NewEpisodeSet(episodes ...int) EpisodeSet {
	seen := make(map[int]struct{}, len(episodes))
	set := make(EpisodeSet, 0, len(episodes))
	for _, ep := range episodes {
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		set = append(set, ep)
	}
	sort.Ints(set)
	return set
}

// EpisodeRange returns the set [start, end]
func EpisodeRange(start, end int) EpisodeSet {
	if end < start {
		return EpisodeSet{}
	}
	set := make(EpisodeSet, 0, end-start+1)
	for ep := start; ep <= end; ep++ {
		set = append(set, ep)
	}
	return set
}

// Contains reports whether the episode is in the set
func (s EpisodeSet) Contains(episode int) bool {
	i := sort.SearchInts(s, episode)
	return i < len(s) && s[i] == episode
}

// Intersect returns the episodes present in both sets
func (s EpisodeSet) Intersect(other EpisodeSet) EpisodeSet {
	out := EpisodeSet{}
	for _, ep := range s {
		if other.Contains(ep) {
			out = append(out, ep)
		}
	}
	return out
}

// Without returns s minus the given episodes
func (s EpisodeSet) Without(episodes ...int) EpisodeSet {
	drop := NewEpisodeSet(episodes...)
	out := EpisodeSet{}
	for _, ep := range s {
		if !drop.Contains(ep) {
			out = append(out, ep)
		}
	}
	return out
}

// HasTrackedAvailable reports whether any tracked episode is present in the release
func (r *Release) HasTrackedAvailable() bool {
	return len(r.TrackedEpisodes.Intersect(r.HaveEpisodes)) > 0
}

// ValidateTracked checks that every episode is within [1, TotalEpisodes].
// When the total is unknown only the lower bound is enforced.
func (r *Release) ValidateTracked(episodes EpisodeSet) error {
	for _, ep := range episodes {
		if ep < 1 {
			return &ValidationError{
				Kind:    ValidationEpisodeOutOfRange,
				Message: fmt.Sprintf("episode %d must be at least 1", ep),
			}
		}
		if r.TotalEpisodes != nil && ep > *r.TotalEpisodes {
			return &ValidationError{
				Kind:    ValidationEpisodeOutOfRange,
				Message: fmt.Sprintf("episode %d exceeds total episodes %d", ep, *r.TotalEpisodes),
			}
		}
	}
	return nil
}

// SetTracked validates and replaces the tracked episodes
func (r *Release) SetTracked(episodes ...int) error {
	set := NewEpisodeSet(episodes...)
	if err := r.ValidateTracked(set); err != nil {
		return err
	}
	r.TrackedEpisodes = set
	return nil
}

// TransitionTo moves the release to next if the lifecycle allows it
func (r *Release) TransitionTo(next ControlStatus) error {
	if !r.ControlStatus.CanTransitionTo(next) {
		return &ValidationError{
			Kind:    ValidationInvalidTransition,
			Message: fmt.Sprintf("cannot move release %d from %s to %s", r.ID, r.ControlStatus, next),
		}
	}
	r.ControlStatus = next
	return nil
}

// Toggle switches between idle and paused. Any other status is rejected.
func (r *Release) Toggle() error {
	switch r.ControlStatus {
	case StatusIdle:
		r.ControlStatus = StatusPaused
	case StatusPaused:
		r.ControlStatus = StatusIdle
	default:
		return &ValidationError{
			Kind:    ValidationInvalidTransition,
			Message: fmt.Sprintf("release %d is %s; only idle and paused releases can be toggled", r.ID, r.ControlStatus),
		}
	}
	return nil
}

// ResetToIdle drops an active release back to idle when its torrent is gone
func (r *Release) ResetToIdle() {
	r.ControlStatus = StatusIdle
	r.ClientTorrentID = nil
}

// AddFiles merges placed paths into Files, keeping order and uniqueness
func (r *Release) AddFiles(paths ...string) {
	seen := make(map[string]struct{}, len(r.Files))
	for _, f := range r.Files {
		seen[f] = struct{}{}
	}
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		r.Files = append(r.Files, p)
	}
}

// SetError records err as the release's last error; nil clears it
func (r *Release) SetError(err error) {
	if err == nil {
		r.ErrorMessage = ""
		return
	}
	r.ErrorMessage = err.Error()
}

// ScrapeResult holds the tracker-side fields written by an upsert
type ScrapeResult struct {
	Tracker       string
	TrackerItemID string
	URL           string
	Magnet        string
	RawTitle      string
	Title         string
	Season        int
	StartEpisode  int
	EndEpisode    int
	TotalEpisodes int
}

// Apply copies the scraped fields onto the release, replacing have/total/magnet
func (s ScrapeResult) Apply(r *Release) {
	season := s.Season
	total := s.TotalEpisodes
	r.Tracker = s.Tracker
	r.TrackerItemID = s.TrackerItemID
	r.URL = s.URL
	r.Magnet = s.Magnet
	r.RawTitle = s.RawTitle
	r.Title = s.Title
	r.Season = &season
	r.TotalEpisodes = &total
	r.HaveEpisodes = EpisodeRange(s.StartEpisode, s.EndEpisode)
}
