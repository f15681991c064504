package transmission

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/hekmon/transmissionrpc/v3"
	"github.com/sirupsen/logrus"
)

// TorrentFile is one file of a torrent as reported by the client
type TorrentFile struct {
	Index          int    `json:"index"`
	Name           string `json:"name"` // Relative to the download dir, usually "<torrent name>/<path>"
	Length         int64  `json:"length"`
	BytesCompleted int64  `json:"bytes_completed"`
	Wanted         bool   `json:"wanted"`
}

// TorrentStatus is a snapshot of a torrent in the client
type TorrentStatus struct {
	Hash        string        `json:"hash"`
	Name        string        `json:"name"`
	State       string        `json:"state"`
	PercentDone float64       `json:"percent_done"`
	DoneDate    time.Time     `json:"done_date"`
	DownloadDir string        `json:"download_dir"`
	Files       []TorrentFile `json:"files"`
}

// Completed reports whether the client recorded a valid completion time
func (s *TorrentStatus) Completed() bool {
	return !s.DoneDate.IsZero() && s.DoneDate.Unix() > 0
}

// retry runs op, retrying RPC failures. TorrentNotFound and NoHash are final.
func (c *Client) retry(ctx context.Context, op func() error) error {
	return retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrTorrentNotFound) && !errors.Is(err, ErrNoHash)
		}),
	)
}

func normalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// Add adds a magnet to the client and returns the torrent hash. A torrent
// that is already present is reported with its existing hash.
func (c *Client) Add(ctx context.Context, magnet, downloadDir string) (string, error) {
	payload := transmissionrpc.TorrentAddPayload{
		Filename: &magnet,
	}
	if downloadDir != "" {
		payload.DownloadDir = &downloadDir
	}

	var hash string
	err := c.retry(ctx, func() error {
		torrent, err := c.rpc.TorrentAdd(ctx, payload)
		if err != nil {
			return &ClientError{Kind: KindRPC, Err: err}
		}
		if torrent.HashString == nil || *torrent.HashString == "" {
			return &ClientError{Kind: KindNoHash}
		}
		hash = normalizeHash(*torrent.HashString)
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"hash":         hash,
		"download_dir": downloadDir,
	}).Info("Added torrent to Transmission")
	return hash, nil
}

// get fetches one torrent by hash
func (c *Client) get(ctx context.Context, hash string) (*transmissionrpc.Torrent, error) {
	var found *transmissionrpc.Torrent
	err := c.retry(ctx, func() error {
		torrents, err := c.rpc.TorrentGetAllForHashes(ctx, []string{hash})
		if err != nil {
			return &ClientError{Kind: KindRPC, Hash: hash, Err: err}
		}
		for i := range torrents {
			if torrents[i].HashString != nil && normalizeHash(*torrents[i].HashString) == hash {
				found = &torrents[i]
				return nil
			}
		}
		return &ClientError{Kind: KindTorrentNotFound, Hash: hash}
	})
	return found, err
}

// Status returns the current state of a torrent. ErrTorrentNotFound is
// returned when the client no longer knows the hash.
func (c *Client) Status(ctx context.Context, hash string) (*TorrentStatus, error) {
	torrent, err := c.get(ctx, normalizeHash(hash))
	if err != nil {
		return nil, err
	}
	return toStatus(torrent), nil
}

// SetFiles marks files, by index, as wanted or unwanted
func (c *Client) SetFiles(ctx context.Context, hash string, wanted, unwanted []int) error {
	if len(wanted) == 0 && len(unwanted) == 0 {
		return nil
	}
	hash = normalizeHash(hash)

	torrent, err := c.get(ctx, hash)
	if err != nil {
		return err
	}

	payload := transmissionrpc.TorrentSetPayload{
		IDs:           []int64{*torrent.ID},
		FilesWanted:   toInt64s(wanted),
		FilesUnwanted: toInt64s(unwanted),
	}
	err = c.retry(ctx, func() error {
		if err := c.rpc.TorrentSet(ctx, payload); err != nil {
			return &ClientError{Kind: KindRPC, Hash: hash, Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"hash":     hash,
		"wanted":   len(wanted),
		"unwanted": len(unwanted),
	}).Debug("Updated torrent file selection")
	return nil
}

// Remove deletes a torrent from the client, optionally with its data
func (c *Client) Remove(ctx context.Context, hash string, deleteData bool) error {
	hash = normalizeHash(hash)

	torrent, err := c.get(ctx, hash)
	if err != nil {
		return err
	}

	payload := transmissionrpc.TorrentRemovePayload{
		IDs:             []int64{*torrent.ID},
		DeleteLocalData: deleteData,
	}
	err = c.retry(ctx, func() error {
		if err := c.rpc.TorrentRemove(ctx, payload); err != nil {
			return &ClientError{Kind: KindRPC, Hash: hash, Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"hash":        hash,
		"delete_data": deleteData,
	}).Info("Removed torrent from Transmission")
	return nil
}

// List returns every torrent known to the client
func (c *Client) List(ctx context.Context) ([]*TorrentStatus, error) {
	var torrents []transmissionrpc.Torrent
	err := c.retry(ctx, func() error {
		var err error
		torrents, err = c.rpc.TorrentGetAll(ctx)
		if err != nil {
			return &ClientError{Kind: KindRPC, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	statuses := make([]*TorrentStatus, 0, len(torrents))
	for i := range torrents {
		statuses = append(statuses, toStatus(&torrents[i]))
	}
	return statuses, nil
}

func toStatus(t *transmissionrpc.Torrent) *TorrentStatus {
	status := &TorrentStatus{}
	if t.HashString != nil {
		status.Hash = normalizeHash(*t.HashString)
	}
	if t.Name != nil {
		status.Name = *t.Name
	}
	if t.Status != nil {
		status.State = t.Status.String()
	}
	if t.PercentDone != nil {
		status.PercentDone = *t.PercentDone
	}
	if t.DoneDate != nil {
		status.DoneDate = *t.DoneDate
	}
	if t.DownloadDir != nil {
		status.DownloadDir = *t.DownloadDir
	}

	status.Files = make([]TorrentFile, 0, len(t.Files))
	for i, f := range t.Files {
		file := TorrentFile{
			Index:          i,
			Name:           f.Name,
			Length:         f.Length,
			BytesCompleted: f.BytesCompleted,
			Wanted:         true,
		}
		if i < len(t.FileStats) {
			file.Wanted = t.FileStats[i].Wanted
		}
		status.Files = append(status.Files, file)
	}
	return status
}

func toInt64s(values []int) []int64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}
