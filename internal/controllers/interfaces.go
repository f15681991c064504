package controllers

import (
	"context"

	"github.com/amaumene/trackarr/internal/scraper"
	"github.com/amaumene/trackarr/internal/services/transmission"
)

// Collector scrapes a release page
type Collector interface {
	Collect(ctx context.Context, rawURL string, creds scraper.CredentialSource) (*scraper.Result, error)
}

// TorrentClient is the subset of the Transmission client used by the workers
type TorrentClient interface {
	Add(ctx context.Context, magnet, downloadDir string) (string, error)
	Status(ctx context.Context, hash string) (*transmission.TorrentStatus, error)
	SetFiles(ctx context.Context, hash string, wanted, unwanted []int) error
	Remove(ctx context.Context, hash string, deleteData bool) error
}

// Notifier announces newly placed episodes
type Notifier interface {
	NotifyPlaced(serviceURL, title string, season int, placed map[int]string) error
}
