package transmission

import (
	"fmt"
	"regexp"
)

var infoHash = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// WebhookPayload is posted by Transmission's torrent-done script, e.g.
//
//	curl -d "{\"hash\":\"$TR_TORRENT_HASH\",\"name\":\"$TR_TORRENT_NAME\"}" .../api/webhook/transmission
type WebhookPayload struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
}

// TorrentHash validates and returns the normalized hash of the finished torrent
func (p *WebhookPayload) TorrentHash() (string, error) {
	if !infoHash.MatchString(p.Hash) {
		return "", fmt.Errorf("invalid torrent hash: %q", p.Hash)
	}
	return normalizeHash(p.Hash), nil
}
