package models

// ControlStatus represents the lifecycle state of a release
type ControlStatus string

const (
	StatusIdle              ControlStatus = "idle"
	StatusPaused            ControlStatus = "paused"
	StatusDownloadRequested ControlStatus = "downloadRequested"
	StatusDownloading       ControlStatus = "downloading"
	StatusDownloadCompleted ControlStatus = "downloadCompleted"
	StatusProcessing        ControlStatus = "processing"
)

// ActiveStatuses are the statuses owned by the download worker
var ActiveStatuses = []ControlStatus{
	StatusDownloadRequested,
	StatusDownloading,
	StatusDownloadCompleted,
	StatusProcessing,
}

// AllStatuses lists every known status, in lifecycle order
var AllStatuses = []ControlStatus{
	StatusIdle,
	StatusPaused,
	StatusDownloadRequested,
	StatusDownloading,
	StatusDownloadCompleted,
	StatusProcessing,
}

// IsActive reports whether the download worker is responsible for the status
func (s ControlStatus) IsActive() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// IsValid reports whether the status is one of the known statuses
func (s ControlStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// transitions lists the allowed worker-driven moves. Moves to idle on a
// missing torrent are handled separately by ResetToIdle.
var transitions = map[ControlStatus][]ControlStatus{
	StatusIdle:              {StatusDownloadRequested, StatusPaused},
	StatusPaused:            {StatusIdle},
	StatusDownloadRequested: {StatusDownloading},
	StatusDownloading:       {StatusDownloadCompleted},
	StatusDownloadCompleted: {StatusProcessing},
	StatusProcessing:        {StatusIdle},
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s ControlStatus) CanTransitionTo(next ControlStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
