// ratelimit.go enforces per-organization ingest rate limits. When Redis is
// available the limiter is a shared GCRA bucket so all replicas see the same
// budget; without Redis each replica falls back to a local token bucket.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request from a key is allowed.
type Limiter interface {
	Allow(c *gin.Context, key string) (allowed bool, remaining int)
}

// RateLimit rejects requests over the per-key budget with a 429. The key is
// the authenticated organization when present, the client IP otherwise, so the
// limiter also covers unauthenticated probes.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		allowed, remaining := limiter.Allow(c, key)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if orgID, exists := c.Get(OrganizationIDKey); exists {
		if id, ok := orgID.(string); ok && id != "" {
			return "org:" + id
		}
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}

// RedisLimiter is a GCRA limiter shared across replicas through Redis.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter creates a per-minute limiter on the given Redis client.
func NewRedisLimiter(rdb redis.UniversalClient, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   redis_rate.PerMinute(perMinute),
	}
}

// Allow consumes one token from the key's bucket. A Redis failure allows the
// request; rate limiting degrades open rather than taking ingest down with it.
func (l *RedisLimiter) Allow(c *gin.Context, key string) (bool, int) {
	res, err := l.limiter.Allow(c.Request.Context(), "ratelimit:"+key, l.limit)
	if err != nil {
		return true, l.limit.Rate
	}
	return res.Allowed > 0, res.Remaining
}

// LocalLimiter is a single-process token bucket used when Redis is not
// configured. Buckets refill continuously at the per-minute rate and idle
// entries are dropped by a background sweep.
type LocalLimiter struct {
	perMinute int
	burst     float64

	mu      sync.Mutex
	buckets map[string]*localBucket
	stopCh  chan struct{}
}

type localBucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewLocalLimiter creates a local limiter and starts its cleanup sweep.
func NewLocalLimiter(perMinute int) *LocalLimiter {
	l := &LocalLimiter{
		perMinute: perMinute,
		burst:     float64(perMinute),
		buckets:   make(map[string]*localBucket),
		stopCh:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Stop ends the cleanup sweep.
func (l *LocalLimiter) Stop() {
	close(l.stopCh)
}

func (l *LocalLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, bucket := range l.buckets {
				if now.Sub(bucket.lastUpdate) > 10*time.Minute {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Allow consumes one token from the key's bucket.
func (l *LocalLimiter) Allow(_ *gin.Context, key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &localBucket{tokens: l.burst - 1, lastUpdate: now}
		return true, int(l.burst - 1)
	}

	refill := now.Sub(bucket.lastUpdate).Seconds() * float64(l.perMinute) / 60.0
	bucket.tokens = min(l.burst, bucket.tokens+refill)
	bucket.lastUpdate = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, int(bucket.tokens)
	}
	return false, 0
}
