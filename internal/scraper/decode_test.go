package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestDetectEncoding(t *testing.T) {
	cp := cp1251(t, "<html><body>Сезон</body></html>")

	tests := []struct {
		name     string
		page     *Page
		wantName string
	}{
		{
			name:     "undeclared uses fallback",
			page:     &Page{Body: []byte(cp), ContentType: "text/html"},
			wantName: "fallback",
		},
		{
			name:     "header charset",
			page:     &Page{Body: []byte(cp), ContentType: "text/html; charset=windows-1251"},
			wantName: "windows-1251",
		},
		{
			name:     "meta charset",
			page:     &Page{Body: []byte(`<html><head><meta charset="koi8-r"></head></html>`), ContentType: "text/html"},
			wantName: "koi8-r",
		},
		{
			name:     "mislabelled utf-8 header",
			page:     &Page{Body: []byte(cp), ContentType: "text/html; charset=utf-8"},
			wantName: "fallback",
		},
		{
			name:     "utf-8 header",
			page:     &Page{Body: []byte("<html>Сезон</html>"), ContentType: "text/html; charset=utf-8"},
			wantName: "utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, name := DetectEncoding(tt.page, charmap.Windows1251)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestDecode_Windows1251(t *testing.T) {
	page := &Page{
		URL:         "http://test",
		ContentType: "text/html",
		Body:        []byte(cp1251(t, `<html><body><h1>Сезон: 2 / Серии: 3-5 из 10</h1></body></html>`)),
	}

	doc, err := Decode(page, charmap.Windows1251)
	require.NoError(t, err)
	assert.Equal(t, "Сезон: 2 / Серии: 3-5 из 10", doc.Find("h1").Text())
}

func TestDecode_MislabelledUTF8(t *testing.T) {
	page := &Page{
		URL:         "http://test",
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(cp1251(t, `<html><body><h1>Сезон: 2 / Серии: 3-5 из 10</h1></body></html>`)),
	}

	doc, err := Decode(page, charmap.Windows1251)
	require.NoError(t, err)
	assert.Equal(t, "Сезон: 2 / Серии: 3-5 из 10", doc.Find("h1").Text())
}
