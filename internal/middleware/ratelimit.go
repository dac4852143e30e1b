package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/injury-assessment-server/internal/domain"
)

// ClientRateLimiter hands out one token bucket per client, keeping the most
// recently seen clients only.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache
	limit    rate.Limit
	burst    int
}

// NewClientRateLimiter allows perSecond requests with the given burst per
// client. A non-positive perSecond disables limiting.
func NewClientRateLimiter(perSecond float64, burst, entries int) (*ClientRateLimiter, error) {
	if entries <= 0 {
		entries = 10000
	}
	if burst <= 0 {
		burst = 1
	}
	cache, err := lru.New(entries)
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &ClientRateLimiter{limiters: cache, limit: limit, burst: burst}, nil
}

// Allow reports whether key may make a request now.
func (l *ClientRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := l.limiters.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests over the limit with 429. Clients are keyed by
// session when one is loaded, else by IP.
func (l *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, ok := SessionID(c); ok {
			key = "session:" + id
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewAPIError(
				domain.ErrCodeRateLimit, "Too many requests", "", c.GetString(CorrelationIDKey)))
			return
		}
		c.Next()
	}
}
