package scraper

import (
	"errors"
	"fmt"
)

// Kind classifies a scrape failure
type Kind string

const (
	KindTrackerNotFound     Kind = "tracker_not_found"
	KindTorrentIDNotFound   Kind = "torrent_id_not_found"
	KindFetch               Kind = "fetch"
	KindDecode              Kind = "decode"
	KindChallengeDetected   Kind = "challenge_detected"
	KindAccessDenied        Kind = "access_denied"
	KindTitleNotFound       Kind = "title_not_found"
	KindShowTitleEmpty      Kind = "show_title_empty"
	KindEpisodeInfoNotFound Kind = "episode_info_not_found"
	KindMagnetNotFound      Kind = "magnet_not_found"
	KindMagnetMatchNotFound Kind = "magnet_match_not_found"
)

// Error is returned by every stage of a collection
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("scrape %s: %s", e.URL, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any scrape Error of the same kind
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// ErrorKind returns the classification string of the error
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

var (
	ErrTrackerNotFound     = &Error{Kind: KindTrackerNotFound}
	ErrTorrentIDNotFound   = &Error{Kind: KindTorrentIDNotFound}
	ErrFetch               = &Error{Kind: KindFetch}
	ErrDecode              = &Error{Kind: KindDecode}
	ErrChallengeDetected   = &Error{Kind: KindChallengeDetected}
	ErrAccessDenied        = &Error{Kind: KindAccessDenied}
	ErrTitleNotFound       = &Error{Kind: KindTitleNotFound}
	ErrShowTitleEmpty      = &Error{Kind: KindShowTitleEmpty}
	ErrEpisodeInfoNotFound = &Error{Kind: KindEpisodeInfoNotFound}
	ErrMagnetNotFound      = &Error{Kind: KindMagnetNotFound}
	ErrMagnetMatchNotFound = &Error{Kind: KindMagnetMatchNotFound}
)

func newError(kind Kind, url string, err error) *Error {
	return &Error{Kind: kind, URL: url, Err: err}
}
