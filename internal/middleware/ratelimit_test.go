package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func limitedApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Post("/login", handler, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func hit(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestCheckRateLimit(t *testing.T) {
	t.Parallel()
	t.Run("nil redis reports an error", func(t *testing.T) {
		t.Parallel()
		allowed, err := CheckRateLimit(context.Background(), nil, "login", "ip:1", 1, time.Minute)
		assert.ErrorIs(t, err, errNoRedis)
		assert.False(t, allowed)
	})

	t.Run("counts within the window", func(t *testing.T) {
		t.Parallel()
		mr, rdb := newMiniRedis(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1", 5, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed, "attempt %d", i+1)
		}
		allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1", 5, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		assert.True(t, mr.TTL("rl:login:ip:1") > 0)

		mr.FastForward(time.Minute + time.Second)
		allowed, err = CheckRateLimit(ctx, rdb, "login", "ip:1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimit_SixthAttemptRejected(t *testing.T) {
	t.Parallel()
	_, rdb := newMiniRedis(t)
	app := limitedApp(RateLimit(rdb, 5, time.Minute, false, "login"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(t, app).StatusCode)
	}

	resp := hit(t, app)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, TooManyAttemptsMessage, body["error"])
}

func TestRateLimit_LocalFallbackWhenRedisDown(t *testing.T) {
	t.Parallel()
	mr, rdb := newMiniRedis(t)
	mr.Close()

	app := limitedApp(RateLimit(rdb, 5, time.Minute, false, "login"))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(t, app).StatusCode)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(t, app).StatusCode)
}

func TestRateLimit_NilRedisUsesLocalLimiter(t *testing.T) {
	t.Parallel()
	app := limitedApp(RateLimit(nil, 2, time.Minute, false, "register"))

	assert.Equal(t, http.StatusOK, hit(t, app).StatusCode)
	assert.Equal(t, http.StatusOK, hit(t, app).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, hit(t, app).StatusCode)
}

func TestRateLimitWithPolicy_FailClosed(t *testing.T) {
	t.Parallel()
	app := limitedApp(RateLimitWithPolicy(nil, 5, time.Minute, FailClosed, false, "login"))
	assert.Equal(t, http.StatusServiceUnavailable, hit(t, app).StatusCode)
}

func TestRateLimitWithPolicy_FailOpen(t *testing.T) {
	t.Parallel()
	app := limitedApp(RateLimitWithPolicy(nil, 1, time.Minute, FailOpen, false, "login"))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(t, app).StatusCode)
	}
}

func TestRateLimit_SkipsPreflight(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Use(RateLimit(nil, 1, time.Minute, false, "login"))
	app.Options("/login", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodOptions, "/login", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}
}

func TestRateLimit_ExemptLetsEverythingThrough(t *testing.T) {
	t.Parallel()
	app := limitedApp(RateLimitWithPolicy(nil, 1, time.Minute, FailClosed, true, "login"))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(t, app).StatusCode)
	}
}
