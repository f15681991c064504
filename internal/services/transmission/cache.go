package transmission

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// StatusCache holds the last client status seen per release. Entries expire
// so that stale statuses of forgotten releases do not linger.
type StatusCache struct {
	cache *cache.Cache
}

// NewStatusCache creates a cache whose entries expire after ttl
func NewStatusCache(ttl time.Duration) *StatusCache {
	return &StatusCache{cache: cache.New(ttl, 2*ttl)}
}

func statusKey(releaseID uint64) string {
	return strconv.FormatUint(releaseID, 10)
}

// Set stores the status of a release
func (c *StatusCache) Set(releaseID uint64, status *TorrentStatus) {
	c.cache.SetDefault(statusKey(releaseID), status)
}

// Get returns the cached status of a release
func (c *StatusCache) Get(releaseID uint64) (*TorrentStatus, bool) {
	v, ok := c.cache.Get(statusKey(releaseID))
	if !ok {
		return nil, false
	}
	return v.(*TorrentStatus), true
}

// Delete invalidates the entry of a release
func (c *StatusCache) Delete(releaseID uint64) {
	c.cache.Delete(statusKey(releaseID))
}

// All returns every cached status keyed by release id
func (c *StatusCache) All() map[uint64]*TorrentStatus {
	items := c.cache.Items()
	out := make(map[uint64]*TorrentStatus, len(items))
	for key, item := range items {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = item.Object.(*TorrentStatus)
	}
	return out
}
