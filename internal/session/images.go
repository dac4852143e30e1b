package session

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const defaultImageCacheSize = 500

// ImageCache holds uploaded image bytes for the lifetime of a session. Only
// references are stored in the session; the bytes are never persisted.
type ImageCache struct {
	mu     sync.Mutex
	cache  *lru.Cache
	owners map[string]map[string]struct{}
}

// NewImageCache creates a cache bounded to size images.
func NewImageCache(size int) (*ImageCache, error) {
	if size <= 0 {
		size = defaultImageCacheSize
	}

	ic := &ImageCache{owners: make(map[string]map[string]struct{})}
	cache, err := lru.NewWithEvict(size, ic.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}
	ic.cache = cache
	return ic, nil
}

type imageKey struct {
	sessionID string
	imageID   string
}

// onEvict keeps owners in step with the lru. mu is never held while
// calling into the lru.
func (c *ImageCache) onEvict(key interface{}, _ interface{}) {
	k := key.(imageKey)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forget(k)
}

func (c *ImageCache) forget(k imageKey) {
	ids := c.owners[k.sessionID]
	delete(ids, k.imageID)
	if len(ids) == 0 {
		delete(c.owners, k.sessionID)
	}
}

// Put stores data for the image.
func (c *ImageCache) Put(sessionID, imageID string, data []byte) {
	c.mu.Lock()
	ids, ok := c.owners[sessionID]
	if !ok {
		ids = make(map[string]struct{})
		c.owners[sessionID] = ids
	}
	ids[imageID] = struct{}{}
	c.mu.Unlock()

	c.cache.Add(imageKey{sessionID, imageID}, data)
}

// Get returns the bytes of an image, if still cached.
func (c *ImageCache) Get(sessionID, imageID string) ([]byte, bool) {
	v, ok := c.cache.Get(imageKey{sessionID, imageID})
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Purge removes every image of the session.
func (c *ImageCache) Purge(sessionID string) int {
	c.mu.Lock()
	keys := make([]imageKey, 0, len(c.owners[sessionID]))
	for id := range c.owners[sessionID] {
		keys = append(keys, imageKey{sessionID, id})
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.cache.Remove(k)
	}
	return len(keys)
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	return c.cache.Len()
}
