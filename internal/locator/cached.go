package locator

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
)

type cachedResult struct {
	records   []domain.FacilityRecord
	expiresAt time.Time
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// CachedLocator memoizes successful lookups per rounded center. Errors are
// never cached.
type CachedLocator struct {
	next   domain.FacilityLocator
	opts   Options
	cache  *lru.Cache
	ttl    time.Duration
	logger *logrus.Logger

	hits   int64
	misses int64
}

// NewCachedLocator wraps next with an LRU of size entries.
func NewCachedLocator(next domain.FacilityLocator, opts Options, size int, ttl time.Duration, logger *logrus.Logger) (*CachedLocator, error) {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedLocator{
		next:   next,
		opts:   opts,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Locate returns cached records for the center when fresh.
func (c *CachedLocator) Locate(ctx context.Context, center *domain.Coordinates) ([]domain.FacilityRecord, error) {
	key := c.opts.center(center).String()

	if v, ok := c.cache.Get(key); ok {
		entry := v.(*cachedResult)
		if time.Now().Before(entry.expiresAt) {
			atomic.AddInt64(&c.hits, 1)
			return copyRecords(entry.records), nil
		}
		c.cache.Remove(key)
	}
	atomic.AddInt64(&c.misses, 1)

	records, err := c.next.Locate(ctx, center)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, &cachedResult{
		records:   copyRecords(records),
		expiresAt: time.Now().Add(c.ttl),
	})
	c.logger.WithFields(logrus.Fields{
		"key":     key,
		"results": len(records),
	}).Debug("Cached facility lookup")

	return records, nil
}

// Stats returns hit and miss counts.
func (c *CachedLocator) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Size:   c.cache.Len(),
	}
}

func copyRecords(in []domain.FacilityRecord) []domain.FacilityRecord {
	out := make([]domain.FacilityRecord, len(in))
	for i, r := range in {
		if r.DistanceKm != nil {
			d := *r.DistanceKm
			r.DistanceKm = &d
		}
		out[i] = r
	}
	return out
}
