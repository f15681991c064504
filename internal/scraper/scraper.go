package scraper

import (
	"context"
	"errors"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/trackers"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is everything collected from a release page
type Result struct {
	Tracker    string     `json:"tracker"`
	TorrentID  string     `json:"torrent_id"`
	URL        string     `json:"url"`
	RawTitle   string     `json:"raw_title"`
	ShowTitle  string     `json:"show_title"`
	SeasonInfo SeasonInfo `json:"season_info"`
	Magnet     string     `json:"magnet"`
}

// ScrapeResult converts the collection into the fields written by an upsert
func (r *Result) ScrapeResult() models.ScrapeResult {
	return models.ScrapeResult{
		Tracker:       r.Tracker,
		TrackerItemID: r.TorrentID,
		URL:           r.URL,
		Magnet:        r.Magnet,
		RawTitle:      r.RawTitle,
		Title:         r.ShowTitle,
		Season:        r.SeasonInfo.Season,
		StartEpisode:  r.SeasonInfo.StartEpisode,
		EndEpisode:    r.SeasonInfo.EndEpisode,
		TotalEpisodes: r.SeasonInfo.TotalEpisodes,
	}
}

// CredentialSource looks up tracker logins. *models.Settings implements it.
type CredentialSource interface {
	CredentialFor(tracker string) (models.Credential, bool)
}

// Stage results. Each stage takes the previous value and returns a new one.

type target struct {
	tracker *trackers.Tracker
	url     *url.URL
	id      string
}

type loaded struct {
	target
	doc    *goquery.Document
	status int
}

type titled struct {
	target
	raw  string
	show string
}

type seasoned struct {
	titled
	info SeasonInfo
}

// Collector runs the collection pipeline against the tracker catalog
type Collector struct {
	catalog *trackers.Catalog
	fetcher *Fetcher
	auth    *trackers.Authenticator
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *logrus.Logger
}

// NewCollector creates a collector
func NewCollector(catalog *trackers.Catalog, fetcher *Fetcher, auth *trackers.Authenticator, m *metrics.Metrics, logger *logrus.Logger) *Collector {
	return &Collector{
		catalog: catalog,
		fetcher: fetcher,
		auth:    auth,
		metrics: m,
		tracer:  otel.Tracer("github.com/amaumene/trackarr/internal/scraper"),
		logger:  logger,
	}
}

// Collect scrapes a release page. It either returns a complete result or
// an error; partial results are never returned.
func (c *Collector) Collect(ctx context.Context, rawURL string, creds CredentialSource) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "scraper.Collect", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	result, err := c.collect(ctx, rawURL, creds)

	trackerName := "unknown"
	if result != nil {
		trackerName = result.Tracker
	} else if t, ok := c.resolveHost(rawURL); ok {
		trackerName = t.Name()
	}
	span.SetAttributes(attribute.String("tracker", trackerName))

	if err != nil {
		outcome := "error"
		var scrapeErr *Error
		if errors.As(err, &scrapeErr) {
			outcome = string(scrapeErr.Kind)
		}
		var authErr *trackers.AuthError
		if errors.As(err, &authErr) {
			outcome = "auth_" + string(authErr.Kind)
		}
		c.metrics.ObserveScrape(trackerName, outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.metrics.ObserveScrape(trackerName, "success")
	c.logger.WithFields(logrus.Fields{
		"tracker":    result.Tracker,
		"torrent_id": result.TorrentID,
		"title":      result.ShowTitle,
		"season":     result.SeasonInfo.Season,
		"episodes":   []int{result.SeasonInfo.StartEpisode, result.SeasonInfo.EndEpisode},
	}).Debug("Collected release page")
	return result, nil
}

func (c *Collector) collect(ctx context.Context, rawURL string, creds CredentialSource) (*Result, error) {
	tgt, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}

	page, err := c.load(ctx, tgt, rawURL, "")
	if err != nil {
		return nil, err
	}
	if err := CheckAccess(page.status, page.doc, rawURL); err != nil {
		return nil, err
	}

	ttl, err := title(page)
	if err != nil {
		return nil, err
	}

	ssn, err := season(ttl)
	if err != nil {
		return nil, err
	}

	magnet, err := c.magnet(ctx, page, creds)
	if err != nil {
		return nil, err
	}

	return &Result{
		Tracker:    ssn.tracker.Name(),
		TorrentID:  ssn.id,
		URL:        rawURL,
		RawTitle:   ssn.raw,
		ShowTitle:  ssn.show,
		SeasonInfo: ssn.info,
		Magnet:     magnet,
	}, nil
}

func (c *Collector) resolveHost(rawURL string) (*trackers.Tracker, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	return c.catalog.Resolve(u.Host)
}

// resolve maps the URL to its catalog entry and tracker item id
func (c *Collector) resolve(rawURL string) (target, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return target{}, newError(KindTrackerNotFound, rawURL, err)
	}
	t, ok := c.catalog.Resolve(u.Host)
	if !ok {
		return target{}, newError(KindTrackerNotFound, rawURL, nil)
	}
	id, ok := t.ExtractID(u)
	if !ok {
		return target{}, newError(KindTorrentIDNotFound, rawURL, nil)
	}
	return target{tracker: t, url: u, id: id}, nil
}

// load fetches and decodes one page of the target's tracker
func (c *Collector) load(ctx context.Context, tgt target, pageURL, cookies string) (loaded, error) {
	page, err := c.fetcher.Fetch(ctx, pageURL, cookies)
	if err != nil {
		return loaded{}, err
	}
	doc, err := Decode(page, tgt.tracker.DefaultEncoding)
	if err != nil {
		return loaded{}, err
	}
	return loaded{target: tgt, doc: doc, status: page.StatusCode}, nil
}

func title(page loaded) (titled, error) {
	pageURL := page.url.String()
	raw, err := ExtractRawTitle(page.doc, page.tracker, pageURL)
	if err != nil {
		return titled{}, err
	}
	show, err := DeriveShowTitle(raw, page.tracker, pageURL)
	if err != nil {
		return titled{}, err
	}
	return titled{target: page.target, raw: raw, show: show}, nil
}

func season(t titled) (seasoned, error) {
	info, err := ExtractSeasonInfo(t.raw, t.tracker, t.url.String())
	if err != nil {
		return seasoned{}, err
	}
	return seasoned{titled: t, info: info}, nil
}

// magnet extracts the magnet from the release page or, for trackers that
// publish it elsewhere, from the derived second page.
func (c *Collector) magnet(ctx context.Context, page loaded, creds CredentialSource) (string, error) {
	t := page.tracker
	if t.MagnetPage == nil {
		return ExtractMagnet(page.doc, t.Magnet, page.url.String())
	}

	pageURL := t.MagnetPage(page.url, page.id)
	baseURL := trackers.BaseURL(page.url)

	var cred *models.Credential
	cookies := ""
	if t.RequiresAuth {
		if creds != nil {
			if found, ok := creds.CredentialFor(t.Name()); ok {
				cred = &found
			}
		}
		var err error
		cookies, err = c.auth.Cookies(ctx, t, baseURL, cred)
		if err != nil {
			return "", err
		}
	}

	second, err := c.load(ctx, page.target, pageURL, cookies)
	if err != nil {
		return "", err
	}
	if err := CheckAccess(second.status, second.doc, pageURL); err != nil {
		if cred != nil {
			// Stale session; the next collection logs in again
			c.auth.Invalidate(t, baseURL, cred.Username)
		}
		return "", err
	}
	return ExtractMagnet(second.doc, t.Magnet, pageURL)
}
