package scraper

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/amaumene/trackarr/internal/trackers"
)

// Anti-bot interstitials served instead of the requested page
var challengeSelectors = []string{
	"#challenge-form",
	"#challenge-running",
	"#cf-wrapper",
	".cf-browser-verification",
	"#ddos-guard",
}

var challengeTitles = []string{
	"just a moment",
	"attention required",
	"ddos-guard",
}

// SeasonInfo is the season and episode range announced by a release title
type SeasonInfo struct {
	Season        int `json:"season"`
	StartEpisode  int `json:"start_episode"`
	EndEpisode    int `json:"end_episode"`
	TotalEpisodes int `json:"total_episodes"`
}

// CheckAccess fails when the page was served with an access-denied status
func CheckAccess(status int, doc *goquery.Document, pageURL string) error {
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		return nil
	}
	if IsChallenge(doc) {
		return newError(KindChallengeDetected, pageURL, fmt.Errorf("status %d", status))
	}
	return newError(KindAccessDenied, pageURL, fmt.Errorf("status %d", status))
}

// IsChallenge reports whether doc is an anti-bot challenge page
func IsChallenge(doc *goquery.Document) bool {
	for _, sel := range challengeSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, marker := range challengeTitles {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// ExtractRawTitle returns the release title found by the tracker's selector
func ExtractRawTitle(doc *goquery.Document, t *trackers.Tracker, pageURL string) (string, error) {
	raw := strings.Join(strings.Fields(doc.Find(t.TitleSelector).First().Text()), " ")
	if raw == "" {
		return "", newError(KindTitleNotFound, pageURL, fmt.Errorf("selector %q", t.TitleSelector))
	}
	return raw, nil
}

// DeriveShowTitle normalizes the raw title to the show name
func DeriveShowTitle(raw string, t *trackers.Tracker, pageURL string) (string, error) {
	show := strings.TrimSpace(t.ParseTitle(raw))
	if show == "" {
		return "", newError(KindShowTitleEmpty, pageURL, nil)
	}
	return show, nil
}

// ExtractSeasonInfo tries the tracker's season patterns in order
func ExtractSeasonInfo(raw string, t *trackers.Tracker, pageURL string) (SeasonInfo, error) {
	for _, re := range t.SeasonPatterns {
		m := re.FindStringSubmatch(raw)
		switch len(m) {
		case 5:
			return SeasonInfo{
				Season:        atoi(m[1]),
				StartEpisode:  atoi(m[2]),
				EndEpisode:    atoi(m[3]),
				TotalEpisodes: atoi(m[4]),
			}, nil
		case 4:
			episode := atoi(m[2])
			return SeasonInfo{
				Season:        atoi(m[1]),
				StartEpisode:  episode,
				EndEpisode:    episode,
				TotalEpisodes: atoi(m[3]),
			}, nil
		}
	}
	return SeasonInfo{}, newError(KindEpisodeInfoNotFound, pageURL, fmt.Errorf("title %q", raw))
}

// ExtractMagnet applies a magnet rule: a magnet href on any matched element
// wins, otherwise the text pattern is tried on each element.
func ExtractMagnet(doc *goquery.Document, rule trackers.MagnetRule, pageURL string) (string, error) {
	sel := doc.Find(rule.Selector)
	if sel.Length() == 0 {
		return "", newError(KindMagnetNotFound, pageURL, fmt.Errorf("selector %q", rule.Selector))
	}

	var magnet string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if strings.HasPrefix(strings.ToLower(href), "magnet:") {
			magnet = href
			return false
		}
		return true
	})
	if magnet != "" {
		return magnet, nil
	}

	if rule.TextPattern != nil {
		sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := rule.TextPattern.FindStringSubmatch(s.Text()); len(m) >= 2 {
				magnet = fmt.Sprintf(rule.Format, m[1])
				return false
			}
			return true
		})
	}
	if magnet == "" {
		return "", newError(KindMagnetMatchNotFound, pageURL, nil)
	}
	return magnet, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
