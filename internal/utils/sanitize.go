package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// unsafeChars are removed from names used as directories in the library
var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

var whitespace = regexp.MustCompile(`\s+`)

// SanitizeTitle strips filesystem-unsafe characters and collapses whitespace
func SanitizeTitle(title string) string {
	cleaned := unsafeChars.ReplaceAllString(title, "")
	cleaned = whitespace.ReplaceAllString(cleaned, " ")
	return strings.Trim(cleaned, " .")
}

// EpisodeFileName formats the library file name for an episode, e.g. S01E03.mkv
func EpisodeFileName(season, episode int, ext string) string {
	return fmt.Sprintf("S%02dE%02d%s", season, episode, strings.ToLower(ext))
}
