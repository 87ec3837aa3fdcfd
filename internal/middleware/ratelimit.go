// Package middleware provides request-scoped logging, metrics, tracing and
// rate limiting for the HTTP server.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// TooManyAttemptsMessage is the body text of every 429 issued by RateLimit.
const TooManyAttemptsMessage = "Too many attempts, please try again later."

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailLocal falls back to an in-process token bucket per key.
	FailLocal FailPolicy = iota
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// CheckRateLimit counts one hit against resource/id in a fixed window held in
// Redis. Returns true if allowed, false if the limit is exceeded.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(limit), nil
}

type localClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter is the in-process fallback used when Redis cannot be reached.
type localLimiter struct {
	mu        sync.Mutex
	clients   map[string]*localClient
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &localLimiter{
		clients: make(map[string]*localClient),
		limit:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		ttl:     2 * window,
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > l.ttl {
		for k, client := range l.clients {
			if now.Sub(client.lastSeen) > l.ttl {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	client, ok := l.clients[key]
	if !ok {
		client = &localClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = client
	}
	client.lastSeen = now
	return client.limiter.Allow()
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`
// per client IP. It falls back to an in-process limiter when Redis fails.
// An exempt limiter lets every request through.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, exempt bool, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailLocal, exempt, name...)
}

// RateLimitWithPolicy returns a Fiber middleware enforcing `limit` requests per `window` with a specific failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, exempt bool, name ...string) fiber.Handler {
	local := newLocalLimiter(limit, window)

	return func(c *fiber.Ctx) error {
		if exempt || c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}
		id := "ip:" + c.IP()

		allowed, err := CheckRateLimit(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			switch policy {
			case FailClosed:
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("resource", resource), slog.String("error", err.Error()))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			case FailOpen:
				return c.Next()
			default:
				if !errors.Is(err, errNoRedis) {
					Logger.WarnContext(c.UserContext(), "rate limit store unavailable, using local limiter",
						slog.String("resource", resource), slog.String("error", err.Error()))
				}
				allowed = local.allow(resource + ":" + id)
			}
		}

		if !allowed {
			RateLimitRejections.WithLabelValues(resource).Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": TooManyAttemptsMessage,
			})
		}
		return c.Next()
	}
}
