package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/response"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether one more request for key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitConfig holds token bucket settings
type RateLimitConfig struct {
	// RequestsPerSecond is the refill rate
	RequestsPerSecond float64
	// Burst is the bucket capacity
	Burst int
	// KeyPrefix namespaces Redis keys
	KeyPrefix string
	// EntryTTL drops idle local buckets
	EntryTTL time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		KeyPrefix:         "storefront:ratelimit:",
		EntryTTL:          time.Minute,
	}
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// LocalRateLimiter is an in-process token bucket per key
type LocalRateLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	sweptAt time.Time
}

// NewLocalRateLimiter creates a local limiter
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	if config.EntryTTL <= 0 {
		config.EntryTTL = time.Minute
	}
	return &LocalRateLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes a token from key's bucket
func (l *LocalRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.config.Burst), lastUpdate: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.tokens = min(float64(l.config.Burst), b.tokens+elapsed*l.config.RequestsPerSecond)
	b.lastUpdate = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// sweep drops buckets idle for longer than EntryTTL, at most once per TTL
func (l *LocalRateLimiter) sweep(now time.Time) {
	if now.Sub(l.sweptAt) < l.config.EntryTTL {
		return
	}
	cutoff := now.Add(-l.config.EntryTTL)
	for key, b := range l.buckets {
		if b.lastUpdate.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
	l.sweptAt = now
}

// tokenBucketScript refills and takes one token atomically. Returns 1 when allowed.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call("HMGET", key, "tokens", "last_update")
local tokens = tonumber(data[1]) or burst
local last_update = tonumber(data[2]) or now

tokens = math.min(burst, tokens + math.max(0, now - last_update) * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_update", now)
redis.call("EXPIRE", key, ttl)
return allowed
`)

// RedisRateLimiter shares buckets across instances through Redis
type RedisRateLimiter struct {
	client redis.Scripter
	config RateLimitConfig
	now    func() time.Time
}

// NewRedisRateLimiter creates a Redis-backed limiter. *database.RedisClient
// satisfies redis.Scripter.
func NewRedisRateLimiter(client redis.Scripter, config RateLimitConfig) *RedisRateLimiter {
	if config.EntryTTL <= 0 {
		config.EntryTTL = time.Minute
	}
	return &RedisRateLimiter{client: client, config: config, now: time.Now}
}

// Allow takes a token from key's shared bucket
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(l.now().UnixNano()) / 1e9
	ttl := int(l.config.EntryTTL.Seconds())
	if ttl < 1 {
		ttl = 1
	}

	allowed, err := tokenBucketScript.Run(ctx, l.client,
		[]string{l.config.KeyPrefix + key},
		l.config.RequestsPerSecond, l.config.Burst, now, ttl,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return allowed == 1, nil
}

// RateLimit rejects requests over the limit with 429. Requests are keyed by
// client IP; session ids are client-chosen and would let a caller reset its
// bucket. Limiter errors let the request through.
func RateLimit(limiter Limiter, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(c *gin.Context) {
		key := getClientIP(c)

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.WithContext(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.TooManyRequests(""))
			return
		}
		c.Next()
	}
}
