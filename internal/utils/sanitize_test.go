package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTitle(t *testing.T) {
	tests := map[string]string{
		"Show: Part 1?":        "Show Part 1",
		"  A   B. ":            "A B",
		"AC/DC":                "ACDC",
		"Тайны   следствия":    "Тайны следствия",
		`Who "Is" <It>|Really`: "Who Is ItReally",
	}

	for in, want := range tests {
		assert.Equal(t, want, SanitizeTitle(in), in)
	}
}

func TestEpisodeFileName(t *testing.T) {
	assert.Equal(t, "S01E03.mkv", EpisodeFileName(1, 3, ".MKV"))
	assert.Equal(t, "S02E112.mp4", EpisodeFileName(2, 112, ".mp4"))
}
