package scraper

import (
	"bytes"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// DetectEncoding picks the page encoding from its BOM, Content-Type header or
// meta tags. When none of them declares one, fallback is used instead of the
// HTML5 windows-1252 default. A UTF-8 label on bytes that are not valid UTF-8
// is ignored in favour of fallback too.
func DetectEncoding(page *Page, fallback encoding.Encoding) (encoding.Encoding, string) {
	enc, name, certain := charset.DetermineEncoding(page.Body, page.ContentType)
	if fallback == nil {
		return enc, name
	}
	switch {
	case !certain && name == "windows-1252":
		return fallback, "fallback"
	case name == "utf-8" && !utf8.Valid(page.Body):
		return fallback, "fallback"
	}
	return enc, name
}

// Decode converts the page body to UTF-8 and parses it
func Decode(page *Page, fallback encoding.Encoding) (*goquery.Document, error) {
	enc, _ := DetectEncoding(page, fallback)

	reader := transform.NewReader(bytes.NewReader(page.Body), enc.NewDecoder())
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, newError(KindDecode, page.URL, err)
	}
	return doc, nil
}
