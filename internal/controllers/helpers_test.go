package controllers

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/scraper"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "trackarr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func saveSettings(t *testing.T, db *models.Database, settings *models.Settings) {
	t.Helper()
	require.NoError(t, db.SaveSettings(settings))
}

func rutrackerResult(id, rawTitle string, start, end, total int, magnet string) *scraper.Result {
	return &scraper.Result{
		Tracker:   "rutracker",
		TorrentID: id,
		URL:       "https://rutracker.org/forum/viewtopic.php?t=" + id,
		RawTitle:  rawTitle,
		ShowTitle: "Show",
		SeasonInfo: scraper.SeasonInfo{
			Season:        1,
			StartEpisode:  start,
			EndEpisode:    end,
			TotalEpisodes: total,
		},
		Magnet: magnet,
	}
}

// seedRelease stores a release the way a first collection would and then
// applies the user and worker owned fields
func seedRelease(t *testing.T, db *models.Database, result *scraper.Result, status models.ControlStatus, tracked []int, hash string) *models.Release {
	t.Helper()
	release, _, err := db.UpsertRelease(result.ScrapeResult())
	require.NoError(t, err)

	release.ControlStatus = status
	release.TrackedEpisodes = models.NewEpisodeSet(tracked...)
	if hash != "" {
		release.ClientTorrentID = &hash
	}
	require.NoError(t, db.UpdateRelease(release))
	return release
}

func reload(t *testing.T, db *models.Database, id uint64) *models.Release {
	t.Helper()
	release, err := db.GetReleaseByID(id)
	require.NoError(t, err)
	return release
}

type fakeCollector struct {
	mu      sync.Mutex
	results map[string]*scraper.Result
	errs    map[string]error
	calls   []string
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		results: make(map[string]*scraper.Result),
		errs:    make(map[string]error),
	}
}

func (f *fakeCollector) set(result *scraper.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[result.URL] = result
}

func (f *fakeCollector) Collect(ctx context.Context, rawURL string, creds scraper.CredentialSource) (*scraper.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	result, ok := f.results[rawURL]
	if !ok {
		return nil, scraper.ErrTrackerNotFound
	}
	copied := *result
	return &copied, nil
}

type setFilesCall struct {
	hash     string
	wanted   []int
	unwanted []int
}

type removeCall struct {
	hash       string
	deleteData bool
}

type fakeTorrentClient struct {
	mu       sync.Mutex
	torrents map[string]*transmission.TorrentStatus
	addHash  string
	addErr   error
	added    []string
	addDirs  []string
	setFiles []setFilesCall
	removed  []removeCall
}

func newFakeTorrentClient() *fakeTorrentClient {
	return &fakeTorrentClient{torrents: make(map[string]*transmission.TorrentStatus)}
}

func (f *fakeTorrentClient) Add(ctx context.Context, magnet, downloadDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, magnet)
	f.addDirs = append(f.addDirs, downloadDir)
	return f.addHash, nil
}

func (f *fakeTorrentClient) Status(ctx context.Context, hash string) (*transmission.TorrentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.torrents[hash]
	if !ok {
		return nil, &transmission.ClientError{Kind: transmission.KindTorrentNotFound, Hash: hash}
	}
	return status, nil
}

func (f *fakeTorrentClient) SetFiles(ctx context.Context, hash string, wanted, unwanted []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setFiles = append(f.setFiles, setFilesCall{hash: hash, wanted: wanted, unwanted: unwanted})
	return nil
}

func (f *fakeTorrentClient) Remove(ctx context.Context, hash string, deleteData bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.torrents[hash]; !ok {
		return &transmission.ClientError{Kind: transmission.KindTorrentNotFound, Hash: hash}
	}
	delete(f.torrents, hash)
	f.removed = append(f.removed, removeCall{hash: hash, deleteData: deleteData})
	return nil
}

type notification struct {
	url    string
	title  string
	season int
	placed map[int]string
}

type fakeNotifier struct {
	sent []notification
	err  error
}

func (f *fakeNotifier) NotifyPlaced(serviceURL, title string, season int, placed map[int]string) error {
	f.sent = append(f.sent, notification{url: serviceURL, title: title, season: season, placed: placed})
	return f.err
}

var errUnreachable = errors.New("tracker unreachable")

func doneAt() time.Time {
	return time.Unix(1700000000, 0)
}
