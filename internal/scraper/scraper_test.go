package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/trackers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const testHash = "0123456789ABCDEF0123456789ABCDEF01234567"

func cp1251(t *testing.T, s string) string {
	t.Helper()
	encoded, err := charmap.Windows1251.NewEncoder().String(s)
	require.NoError(t, err)
	return encoded
}

func rutrackerPage(title, magnetLink string) string {
	return fmt.Sprintf(`<html><head><title>rutracker</title></head><body>
<h1 class="maintitle"><a href="viewtopic.php?t=100">%s</a></h1>
<div class="attach">%s</div>
</body></html>`, title, magnetLink)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestCollector serves the given tracker entry from a local server
func newTestCollector(tracker trackers.Tracker, handler http.Handler) (*Collector, *httptest.Server) {
	server := httptest.NewServer(handler)
	tracker.Hosts = []string{"127.0.0.1"}

	fetcher := NewFetcher(2*time.Second, 2, 0)
	fetcher.retryDelay = time.Millisecond
	logger := testLogger()
	auth := trackers.NewAuthenticator(trackers.NewMemoryCookieStore(time.Hour), 2*time.Second, 1, logger)

	return NewCollector(trackers.NewCatalog(&tracker), fetcher, auth, nil, logger), server
}

func TestCollect_Rutracker(t *testing.T) {
	title := "Игра престолов / Game of Thrones / Сезон: 2 / Серии: 3-5 из 10 (Алан Тейлор) [2012, WEB-DL 1080p]"
	magnet := "magnet:?xt=urn:btih:" + testHash + "&tr=http%3A%2F%2Fbt.example"
	body := cp1251(t, rutrackerPage(title, `<a class="magnet-link" href="`+magnet+`">magnet</a>`))

	collector, server := newTestCollector(trackers.Rutracker, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	pageURL := server.URL + "/forum/viewtopic.php?t=100"
	result, err := collector.Collect(context.Background(), pageURL, nil)
	require.NoError(t, err)

	assert.Equal(t, &Result{
		Tracker:   "rutracker",
		TorrentID: "100",
		URL:       pageURL,
		RawTitle:  title,
		ShowTitle: "Игра престолов",
		SeasonInfo: SeasonInfo{
			Season:        2,
			StartEpisode:  3,
			EndEpisode:    5,
			TotalEpisodes: 10,
		},
		Magnet: magnet,
	}, result)

	sr := result.ScrapeResult()
	assert.Equal(t, "100", sr.TrackerItemID)
	assert.Equal(t, "Игра престолов", sr.Title)
	assert.Equal(t, 10, sr.TotalEpisodes)
}

func TestCollect_SingleEpisode(t *testing.T) {
	body := cp1251(t, rutrackerPage(
		"Шоу / Show / Сезон: 1 / Серия: 7 из 12 [2020]",
		`<a class="magnet-link" href="magnet:?xt=urn:btih:`+testHash+`">magnet</a>`,
	))

	collector, server := newTestCollector(trackers.Rutracker, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	result, err := collector.Collect(context.Background(), server.URL+"/forum/viewtopic.php?t=7", nil)
	require.NoError(t, err)
	assert.Equal(t, SeasonInfo{Season: 1, StartEpisode: 7, EndEpisode: 7, TotalEpisodes: 12}, result.SeasonInfo)
}

func TestCollect_MagnetFromText(t *testing.T) {
	body := rutrackerPage(
		"Шоу / Show / Сезон: 1 / Серии: 1-2 из 2",
		`<a class="magnet-link" href="dl.php?t=1">magnet:?xt=urn:btih:`+testHash+` </a>`,
	)

	collector, server := newTestCollector(trackers.Rutracker, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	result, err := collector.Collect(context.Background(), server.URL+"/forum/viewtopic.php?t=1", nil)
	require.NoError(t, err)
	assert.Equal(t, "magnet:?xt=urn:btih:"+testHash, result.Magnet)
}

func TestCollect_Errors(t *testing.T) {
	validTitle := "Шоу / Show / Сезон: 1 / Серии: 1-2 из 2"
	validMagnet := `<a class="magnet-link" href="magnet:?xt=urn:btih:` + testHash + `">m</a>`

	tests := []struct {
		name    string
		status  int
		body    string
		path    string
		wantErr error
	}{
		{
			name:    "missing torrent id",
			path:    "/forum/viewtopic.php?f=1",
			body:    rutrackerPage(validTitle, validMagnet),
			wantErr: ErrTorrentIDNotFound,
		},
		{
			name:    "challenge",
			status:  http.StatusForbidden,
			body:    `<html><head><title>Just a moment...</title></head><body><form id="challenge-form"></form></body></html>`,
			wantErr: ErrChallengeDetected,
		},
		{
			name:    "access denied",
			status:  http.StatusForbidden,
			body:    `<html><head><title>Forbidden</title></head><body>nope</body></html>`,
			wantErr: ErrAccessDenied,
		},
		{
			name:    "not found is not retried",
			status:  http.StatusNotFound,
			body:    "gone",
			wantErr: ErrFetch,
		},
		{
			name:    "no title",
			body:    `<html><body><h1>nothing</h1></body></html>`,
			wantErr: ErrTitleNotFound,
		},
		{
			name:    "no season info",
			body:    rutrackerPage("Шоу / Show [2020, WEB-DL]", validMagnet),
			wantErr: ErrEpisodeInfoNotFound,
		},
		{
			name:    "no magnet element",
			body:    rutrackerPage(validTitle, ""),
			wantErr: ErrMagnetNotFound,
		},
		{
			name:    "magnet element without link",
			body:    rutrackerPage(validTitle, `<a class="magnet-link" href="/dl.php?t=1">download</a>`),
			wantErr: ErrMagnetMatchNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, server := newTestCollector(trackers.Rutracker, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			path := tt.path
			if path == "" {
				path = "/forum/viewtopic.php?t=1"
			}

			result, err := collector.Collect(context.Background(), server.URL+path, nil)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCollect_TrackerNotFound(t *testing.T) {
	collector := NewCollector(trackers.DefaultCatalog(), NewFetcher(time.Second, 1, 0), nil, nil, testLogger())

	_, err := collector.Collect(context.Background(), "https://example.com/viewtopic.php?t=1", nil)
	assert.ErrorIs(t, err, ErrTrackerNotFound)

	_, err = collector.Collect(context.Background(), "not a url", nil)
	assert.ErrorIs(t, err, ErrTrackerNotFound)
}

func TestCollect_RetriesServerErrors(t *testing.T) {
	var calls int32
	body := rutrackerPage(
		"Шоу / Show / Сезон: 1 / Серии: 1-2 из 2",
		`<a class="magnet-link" href="magnet:?xt=urn:btih:`+testHash+`">m</a>`,
	)

	collector, server := newTestCollector(trackers.Rutracker, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	_, err := collector.Collect(context.Background(), server.URL+"/forum/viewtopic.php?t=1", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCollect_FetchExhausted(t *testing.T) {
	var calls int32
	collector, server := newTestCollector(trackers.Rutracker, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := collector.Collect(context.Background(), server.URL+"/forum/viewtopic.php?t=1", nil)
	require.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCollect_AttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(50*time.Millisecond, 2, 0)
	fetcher.retryDelay = time.Millisecond

	start := time.Now()
	_, err := fetcher.Fetch(context.Background(), server.URL, "")
	require.ErrorIs(t, err, ErrFetch)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func kinozalMux(t *testing.T, logins *int32) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/details.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, cp1251(t, `<html><body><h1><a href="/details.php?id=555">Ходячие мертвецы (11 сезон: 1-8 серии из 24) / The Walking Dead / 2021</a></h1></body></html>`))
	})
	mux.HandleFunc("/takelogin.php", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(logins, 1)
		http.SetCookie(w, &http.Cookie{Name: "uid", Value: "7"})
		http.SetCookie(w, &http.Cookie{Name: "pass", Value: "hash"})
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/get_srv_details.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "555", r.URL.Query().Get("id"))
		assert.Equal(t, "2", r.URL.Query().Get("action"))
		if r.Header.Get("Cookie") != "uid=7; pass=hash" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "login required")
			return
		}
		fmt.Fprint(w, cp1251(t, `<ul><li>Размер: 10 ГБ</li><li>Инфо хеш: `+testHash+`</li></ul>`))
	})
	return mux
}

func TestCollect_KinozalSecondPage(t *testing.T) {
	var logins int32
	collector, server := newTestCollector(trackers.Kinozal, kinozalMux(t, &logins))
	defer server.Close()

	settings := &models.Settings{
		Credentials: map[string]models.Credential{
			"kinozal": {Username: "alice", Password: "secret"},
		},
	}

	pageURL := server.URL + "/details.php?id=555"
	result, err := collector.Collect(context.Background(), pageURL, settings)
	require.NoError(t, err)

	assert.Equal(t, "kinozal", result.Tracker)
	assert.Equal(t, "555", result.TorrentID)
	assert.Equal(t, "Ходячие мертвецы", result.ShowTitle)
	assert.Equal(t, SeasonInfo{Season: 11, StartEpisode: 1, EndEpisode: 8, TotalEpisodes: 24}, result.SeasonInfo)
	assert.Equal(t, "magnet:?xt=urn:btih:"+testHash, result.Magnet)

	// Session is reused
	_, err = collector.Collect(context.Background(), pageURL, settings)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}

func TestCollect_KinozalMissingCredentials(t *testing.T) {
	var logins int32
	collector, server := newTestCollector(trackers.Kinozal, kinozalMux(t, &logins))
	defer server.Close()

	_, err := collector.Collect(context.Background(), server.URL+"/details.php?id=555", &models.Settings{})
	assert.ErrorIs(t, err, trackers.ErrMissingCredentials)
	assert.Equal(t, int32(0), atomic.LoadInt32(&logins))
}
