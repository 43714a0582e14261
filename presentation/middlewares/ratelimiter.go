package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	// Name keeps the counters of differently configured route groups apart.
	Name              string
	RequestsPerWindow int
	Window            time.Duration
	BlockDuration     time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Name:              "default",
		RequestsPerWindow: 150,
		Window:            time.Minute,
		BlockDuration:     time.Minute * 5,
	}
}

const rateLimitScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local expiry = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local currentCount = redis.call('ZCARD', key)

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, expiry)

local remaining = math.max(limit - currentCount - 1, 0)
local allowed = currentCount < limit

return {allowed and 1 or 0, remaining, currentCount + 1}
`

const checkBlockScript = `
local blockKey = KEYS[1]

local exists = redis.call('EXISTS', blockKey)
if exists == 0 then
    return {0, 0}
end

local ttl = redis.call('TTL', blockKey)
return {1, ttl}
`

type rateDecision struct {
	allowed    bool
	blocked    bool
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

type limiter interface {
	allow(ctx context.Context, userID string) (rateDecision, error)
}

// RateLimiterMiddleware limits requests per user with a sliding window kept in
// Redis. With a nil client it falls back to a token bucket per user held in
// process memory, which is only accurate for a single instance.
func RateLimiterMiddleware(redisClient *redis.Client, logger *logger.Logger, config RateLimiterConfig) gin.HandlerFunc {
	var l limiter
	if redisClient != nil {
		l = &redisLimiter{client: redisClient, config: config}
	} else {
		l = newLocalLimiter(config)
	}
	return rateLimit(l, logger, config)
}

func rateLimit(l limiter, logger *logger.Logger, config RateLimiterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserIDFromContext(c)
		if !exists {
			// identity middleware handles this
			c.Next()
			return
		}

		decision, err := l.allow(c.Request.Context(), userID)
		if err != nil {
			logger.Error("failed to check rate limit", zap.Error(err), zap.String("userID", userID))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.reset.Unix(), 10))

		if decision.allowed {
			c.Next()
			return
		}

		retryAfter := int(decision.retryAfter.Seconds())
		c.Header("Retry-After", strconv.Itoa(retryAfter))

		message := fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %v.", config.RequestsPerWindow, config.Window)
		if decision.blocked {
			message = "Too many requests. You have been temporarily blocked."
		} else {
			logger.Warn("rate limit exceeded",
				zap.String("userID", userID),
				zap.String("limiter", config.Name),
				zap.String("path", c.Request.URL.Path),
			)
		}

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limit_exceeded",
			"message":     message,
			"retry_after": retryAfter,
		})
	}
}

type redisLimiter struct {
	client *redis.Client
	config RateLimiterConfig
}

func (l *redisLimiter) allow(ctx context.Context, userID string) (rateDecision, error) {
	now := time.Now()
	blockKey := fmt.Sprintf("ratelimit:%s:block:%s", l.config.Name, userID)

	blockResult, err := l.client.Eval(ctx, checkBlockScript, []string{blockKey}).Int64Slice()
	if err != nil {
		return rateDecision{}, fmt.Errorf("block check script failed: %w", err)
	}
	if blockResult[0] == 1 {
		ttl := time.Duration(blockResult[1]) * time.Second
		return rateDecision{blocked: true, reset: now.Add(ttl), retryAfter: ttl}, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", l.config.Name, userID)
	result, err := l.client.Eval(ctx, rateLimitScript,
		[]string{key},
		now.UnixNano(),
		l.config.Window.Nanoseconds(),
		l.config.RequestsPerWindow,
		int(l.config.Window.Seconds())+60,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return rateDecision{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	decision := rateDecision{
		allowed:   result[0] == 1,
		remaining: int(result[1]),
		reset:     now.Add(l.config.Window),
	}
	if !decision.allowed {
		if err := l.client.Set(ctx, blockKey, "1", l.config.BlockDuration).Err(); err != nil {
			return rateDecision{}, fmt.Errorf("failed to block user: %w", err)
		}
		decision.retryAfter = l.config.BlockDuration
	}
	return decision, nil
}

type localLimiter struct {
	mu       sync.Mutex
	config   RateLimiterConfig
	buckets  map[string]*rate.Limiter
	blocked  map[string]time.Time
	now      func() time.Time
	lastSeen map[string]time.Time
}

func newLocalLimiter(config RateLimiterConfig) *localLimiter {
	return &localLimiter{
		config:   config,
		buckets:  make(map[string]*rate.Limiter),
		blocked:  make(map[string]time.Time),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (l *localLimiter) allow(_ context.Context, userID string) (rateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	if until, ok := l.blocked[userID]; ok {
		if now.Before(until) {
			return rateDecision{blocked: true, reset: until, retryAfter: until.Sub(now)}, nil
		}
		delete(l.blocked, userID)
	}

	bucket, ok := l.buckets[userID]
	if !ok {
		every := l.config.Window / time.Duration(max(l.config.RequestsPerWindow, 1))
		bucket = rate.NewLimiter(rate.Every(every), l.config.RequestsPerWindow)
		l.buckets[userID] = bucket
	}
	l.lastSeen[userID] = now

	if !bucket.AllowN(now, 1) {
		until := now.Add(l.config.BlockDuration)
		l.blocked[userID] = until
		return rateDecision{reset: until, retryAfter: l.config.BlockDuration}, nil
	}

	return rateDecision{
		allowed:   true,
		remaining: int(bucket.TokensAt(now)),
		reset:     now.Add(l.config.Window),
	}, nil
}

// sweep drops buckets idle for longer than a window; such a bucket is full
// again and recreating it is equivalent.
func (l *localLimiter) sweep(now time.Time) {
	for userID, seen := range l.lastSeen {
		if now.Sub(seen) > l.config.Window {
			delete(l.buckets, userID)
			delete(l.lastSeen, userID)
		}
	}
}
