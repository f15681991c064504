package trackers

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Kind identifies a supported tracker
type Kind int

const (
	KindRutracker Kind = iota + 1
	KindKinozal
	KindNNMClub
)

func (k Kind) String() string {
	switch k {
	case KindRutracker:
		return "rutracker"
	case KindKinozal:
		return "kinozal"
	case KindNNMClub:
		return "nnmclub"
	}
	return fmt.Sprintf("tracker(%d)", int(k))
}

// MagnetRule describes where the magnet link lives on a page. Elements
// matched by Selector are first checked for a magnet href; otherwise
// TextPattern (one capture group) is applied to their text and the capture
// is substituted into Format.
type MagnetRule struct {
	Selector    string
	TextPattern *regexp.Regexp
	Format      string
}

// LoginForm describes a tracker's login POST
type LoginForm struct {
	Path          string
	UsernameField string
	PasswordField string
	Extra         url.Values
}

// Tracker is one entry of the catalog. Per-tracker behaviour is carried by
// the entry itself.
type Tracker struct {
	Kind  Kind
	Hosts []string

	// IDPattern extracts the tracker item id from the release URL
	IDPattern *regexp.Regexp

	TitleSelector string
	ParseTitle    func(raw string) string

	// Tried in order; 5-group (season, start, end, total) or
	// 4-group (season, episode, total) matches
	SeasonPatterns []*regexp.Regexp

	Magnet MagnetRule

	// MagnetPage derives the second page holding the magnet. Nil means the
	// magnet is on the release page.
	MagnetPage func(release *url.URL, id string) string

	RequiresAuth bool
	Login        LoginForm

	// Used when the page does not declare its encoding
	DefaultEncoding encoding.Encoding
}

// Name returns the catalog key stored on releases
func (t *Tracker) Name() string {
	return t.Kind.String()
}

// ExtractID returns the tracker item id from a release URL
func (t *Tracker) ExtractID(u *url.URL) (string, bool) {
	m := t.IDPattern.FindStringSubmatch(u.RawQuery)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// BaseURL returns scheme://host of a release URL
func BaseURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// firstSegment returns the text before the first " / "
func firstSegment(raw string) string {
	if i := strings.Index(raw, " / "); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// beforeParen returns the text before the first " ("
func beforeParen(raw string) string {
	if i := strings.Index(raw, " ("); i >= 0 {
		raw = raw[:i]
	}
	return firstSegment(raw)
}

var magnetURI = regexp.MustCompile(`(magnet:\?[^\s"'<>]+)`)

// Rutracker is the catalog entry for rutracker.org and its mirrors
var Rutracker = Tracker{
	Kind:          KindRutracker,
	Hosts:         []string{"rutracker.org", "rutracker.net", "rutracker.nl"},
	IDPattern:     regexp.MustCompile(`(?:^|&)t=(\d+)`),
	TitleSelector: "h1.maintitle a",
	ParseTitle:    firstSegment,
	SeasonPatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)Сезон:\s*(\d+)\s*/\s*Серии:\s*(\d+)\s*-\s*(\d+)\s*из\s*(\d+)`),
		regexp.MustCompile(`(?i)Сезон:\s*(\d+)\s*/\s*Серия:\s*(\d+)\s*из\s*(\d+)`),
	},
	Magnet: MagnetRule{
		Selector:    "a.magnet-link",
		TextPattern: magnetURI,
		Format:      "%s",
	},
	DefaultEncoding: charmap.Windows1251,
}

// Kinozal is the catalog entry for kinozal.tv and its mirrors. The magnet
// is built from the info hash on the authenticated details page.
var Kinozal = Tracker{
	Kind:          KindKinozal,
	Hosts:         []string{"kinozal.tv", "kinozal.me", "kinozal.guru"},
	IDPattern:     regexp.MustCompile(`(?:^|&)id=(\d+)`),
	TitleSelector: "h1 a",
	ParseTitle:    beforeParen,
	SeasonPatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\((\d+)\s*сезон:\s*(\d+)\s*-\s*(\d+)\s*серии\s*из\s*(\d+)\)`),
		regexp.MustCompile(`(?i)\((\d+)\s*сезон:\s*(\d+)\s*серия\s*из\s*(\d+)\)`),
	},
	Magnet: MagnetRule{
		Selector:    "li",
		TextPattern: regexp.MustCompile(`(?i)Инфо хеш:\s*([0-9a-f]{40})`),
		Format:      "magnet:?xt=urn:btih:%s",
	},
	MagnetPage: func(release *url.URL, id string) string {
		return fmt.Sprintf("%s/get_srv_details.php?id=%s&action=2", BaseURL(release), url.QueryEscape(id))
	},
	RequiresAuth: true,
	Login: LoginForm{
		Path:          "/takelogin.php",
		UsernameField: "username",
		PasswordField: "password",
		Extra:         url.Values{"returnto": {""}},
	},
	DefaultEncoding: charmap.Windows1251,
}

// NNMClub is the catalog entry for nnmclub.to and nnm-club.me
var NNMClub = Tracker{
	Kind:          KindNNMClub,
	Hosts:         []string{"nnmclub.to", "nnm-club.me"},
	IDPattern:     regexp.MustCompile(`(?:^|&)t=(\d+)`),
	TitleSelector: "a.maintitle",
	ParseTitle:    firstSegment,
	SeasonPatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\[S(\d{1,2})\].*?Серии\s*(\d+)\s*-\s*(\d+)\s*из\s*(\d+)`),
		regexp.MustCompile(`(?i)\[S(\d{1,2})\].*?Серия\s*(\d+)\s*из\s*(\d+)`),
	},
	Magnet: MagnetRule{
		Selector:    `a[href^="magnet:"]`,
		TextPattern: magnetURI,
		Format:      "%s",
	},
	DefaultEncoding: charmap.Windows1251,
}

// Catalog resolves release URLs to trackers
type Catalog struct {
	trackers []*Tracker
}

// NewCatalog creates a catalog from the given entries
func NewCatalog(trackers ...*Tracker) *Catalog {
	return &Catalog{trackers: trackers}
}

// DefaultCatalog returns the catalog of every supported tracker
func DefaultCatalog() *Catalog {
	rutracker, kinozal, nnmclub := Rutracker, Kinozal, NNMClub
	return NewCatalog(&rutracker, &kinozal, &nnmclub)
}

// Resolve returns the tracker serving host. The port and a leading "www."
// are ignored.
func (c *Catalog) Resolve(host string) (*Tracker, bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")

	for _, t := range c.trackers {
		for _, h := range t.Hosts {
			if h == host {
				return t, true
			}
		}
	}
	return nil, false
}

// Get returns the tracker with the given catalog key
func (c *Catalog) Get(name string) (*Tracker, bool) {
	for _, t := range c.trackers {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
