package utils

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrEpisodeNotFound is returned when no strategy recognizes an episode number
var ErrEpisodeNotFound = errors.New("episode number not found")

// episodeStrategy is one step of the file-name fallback chain
type episodeStrategy struct {
	name  string
	regex *regexp.Regexp
}

// Tried in order; the first match wins. The last strategy is a lossy
// heuristic: it only accepts 2-3 digit tokens that are not glued to letters
// or other digits, which keeps "1080p", "x264" and years out.
var episodeStrategies = []episodeStrategy{
	{name: "season_episode", regex: regexp.MustCompile(`(?i)S\d{1,2}E(\d{1,3})`)},
	{name: "numeric_pair", regex: regexp.MustCompile(`(?i)(?:^|[^\d])\d{1,2}\s*(?:x|×|-)\s*(\d{2,3})(?:[^\d]|$)`)},
	{name: "episode_marker", regex: regexp.MustCompile(`(?i)(?:^|[^a-z])E(\d{1,3})(?:[^\d]|$)`)},
	{name: "isolated_number", regex: regexp.MustCompile(`(?i)(?:^|[^\da-z])(\d{2,3})(?:[^\da-z]|$)`)},
}

// ExtractEpisodeNumber parses the episode number from a client-reported file
// name. Only the base name is inspected.
func ExtractEpisodeNumber(name string) (int, error) {
	base := filepath.Base(filepath.ToSlash(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	for _, strategy := range episodeStrategies {
		matches := strategy.regex.FindStringSubmatch(base)
		if len(matches) < 2 {
			continue
		}
		episode, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		return episode, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrEpisodeNotFound, name)
}

// videoExtensions are the file types placed into the library
var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".avi":  {},
	".m4v":  {},
	".mov":  {},
	".wmv":  {},
	".ts":   {},
	".m2ts": {},
	".webm": {},
}

// IsVideoFile reports whether the file has a recognized video extension
func IsVideoFile(name string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
