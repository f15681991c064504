package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEpisodeNumber(t *testing.T) {
	tests := []struct {
		name string
		file string
		want int
	}{
		{"season episode", "Show.S01E05.1080p.WEB-DL.mkv", 5},
		{"season episode lowercase", "show.s02e11.mkv", 11},
		{"numeric pair", "Show 1x07.avi", 7},
		{"episode marker", "Show.E12.mkv", 12},
		{"dotted season episode", "Show.S01.E04.WEB-DL.mkv", 4},
		{"isolated number", "Show - 003 [1080p].mkv", 3},
		{"base name only", "Season 10/Show S01E02.mkv", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractEpisodeNumber(tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractEpisodeNumber_NotFound(t *testing.T) {
	for _, file := range []string{"Show.1080p.x264.mkv", "Show.Complete.mkv", "Show 2023.mkv"} {
		_, err := ExtractEpisodeNumber(file)
		assert.True(t, errors.Is(err, ErrEpisodeNotFound), file)
	}
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("a/Show.S01E01.MKV"))
	assert.True(t, IsVideoFile("Show.mp4"))
	assert.False(t, IsVideoFile("Show.srt"))
	assert.False(t, IsVideoFile("Show.nfo"))
	assert.False(t, IsVideoFile("Show"))
}
