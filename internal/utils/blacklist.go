package utils

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Blacklist excludes client-reported files from placement. Terms match
// case-insensitively anywhere in a file's base name.
type Blacklist struct {
	terms    []string
	patterns []string // lowercased terms
}

// NewBlacklist creates a blacklist from terms
func NewBlacklist(terms ...string) *Blacklist {
	b := &Blacklist{}
	for _, term := range terms {
		b.add(term)
	}
	return b
}

func (b *Blacklist) add(term string) {
	term = strings.TrimSpace(term)
	if term == "" || strings.HasPrefix(term, "#") {
		return
	}
	b.terms = append(b.terms, term)
	b.patterns = append(b.patterns, strings.ToLower(term))
}

// LoadBlacklist reads one term per line; blank lines and # comments are
// ignored. A missing file yields an empty blacklist.
func LoadBlacklist(path string) (*Blacklist, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewBlacklist(), nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadBlacklist(file)
}

// ReadBlacklist parses blacklist terms from r
func ReadBlacklist(r io.Reader) (*Blacklist, error) {
	b := NewBlacklist()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// Len returns the number of terms
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.terms)
}

// IsBlacklisted reports whether the base name of name contains a term, and
// which one
func (b *Blacklist) IsBlacklisted(name string) (bool, string) {
	if b == nil {
		return false, ""
	}
	base := strings.ToLower(filepath.Base(name))
	for i, pattern := range b.patterns {
		if strings.Contains(base, pattern) {
			return true, b.terms[i]
		}
	}
	return false, ""
}
