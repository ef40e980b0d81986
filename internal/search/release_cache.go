package search

import (
	"sync"

	"releasefinder/internal/domain"
)

// releaseCache is the process-wide store of canonical releases keyed by id.
// Every read and write returns or stores a clone so callers never share slices.
type releaseCache struct {
	mu    sync.RWMutex
	items map[string]domain.CanonicalRelease
}

func newReleaseCache() *releaseCache {
	return &releaseCache{items: make(map[string]domain.CanonicalRelease)}
}

func (c *releaseCache) get(id string) (domain.CanonicalRelease, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	release, ok := c.items[id]
	if !ok {
		return domain.CanonicalRelease{}, false
	}
	return release.Clone(), true
}

// storeAll caches releases whose id is not cached yet and returns the cached
// version of every id in input order. A cached release changes only through
// attachTracks, so an id seen by one session keeps its data while other
// searches re-aggregate the same group differently.
func (c *releaseCache) storeAll(releases []domain.CanonicalRelease) []domain.CanonicalRelease {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CanonicalRelease, len(releases))
	for i, release := range releases {
		cached, ok := c.items[release.ID]
		if !ok {
			cached = release.Clone()
			c.items[release.ID] = cached
		}
		out[i] = cached.Clone()
	}
	return out
}

// attachTracks replaces the tracklist only with a longer one. It returns the
// stored release after the update.
func (c *releaseCache) attachTracks(id string, tracks []string) (domain.CanonicalRelease, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	release, ok := c.items[id]
	if !ok {
		return domain.CanonicalRelease{}, false
	}
	if len(tracks) > len(release.TrackTitles) {
		release.TrackTitles = append([]string(nil), tracks...)
		if release.MinTracks == 0 && release.MaxTracks == 0 {
			release.MinTracks = len(tracks)
			release.MaxTracks = len(tracks)
		}
		c.items[id] = release
	}
	return release.Clone(), true
}

func (c *releaseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]domain.CanonicalRelease)
}

func (c *releaseCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
