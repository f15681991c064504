package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveScrape("rutracker", "success")
	m.ObserveScrape("rutracker", "success")
	m.ObserveScrape("kinozal", "challenge_detected")
	m.EpisodesPlaced(3)
	m.EpisodesPlaced(0)
	m.RecordError("update")
	m.SetReleaseCounts(map[string]int64{"idle": 4, "downloading": 1})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scrapesTotal.WithLabelValues("rutracker", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scrapesTotal.WithLabelValues("kinozal", "challenge_detected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.episodesPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordErrors.WithLabelValues("update")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.releasesByStatus.WithLabelValues("idle")))
}

func TestMetrics_PassHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePass("download", time.Now().Add(-time.Second))

	assert.Equal(t, 1, testutil.CollectAndCount(m.passDuration))
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.EpisodesPlaced(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "trackarr_episodes_placed_total 1"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveScrape("rutracker", "success")
		m.ObservePass("update", time.Now())
		m.RecordError("update")
		m.EpisodesPlaced(2)
		m.SetReleaseCounts(map[string]int64{"idle": 1})
	})
}
