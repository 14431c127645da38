package middleware

import (
	"context"
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

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLimiterEnabledFor(t *testing.T) {
	for env, want := range map[string]bool{
		"":            false,
		"test":        false,
		"development": false,
		"stress":      false,
		"staging":     true,
		"production":  true,
	} {
		assert.Equal(t, want, LimiterEnabledFor(env), env)
	}
}

func TestLimiter_Allow(t *testing.T) {
	mr, rdb := newMiniredis(t)
	l := NewLimiter(rdb, true)
	rule := Rule{Name: "login", Limit: 2, Window: time.Minute}
	ctx := context.Background()

	d, err := l.Allow(ctx, rule, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	_, err = l.Allow(ctx, rule, "ip:1.2.3.4")
	require.NoError(t, err)
	d, err = l.Allow(ctx, rule, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.InDelta(t, time.Minute.Seconds(), d.RetryAfter.Seconds(), 1)

	// Other callers have their own budget.
	d, err = l.Allow(ctx, rule, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Allow(ctx, rule, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "window expired")
}

func TestLimiter_DisabledAndNil(t *testing.T) {
	rule := Rule{Name: "x", Limit: 1, Window: time.Minute}

	var nilLimiter *Limiter
	d, err := nilLimiter.Allow(context.Background(), rule, "a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = NewLimiter(nil, false).Allow(context.Background(), rule, "a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = NewLimiter(nil, true).Allow(context.Background(), rule, "a")
	assert.ErrorIs(t, err, errNoRedis)
}

func TestLimiter_Handler(t *testing.T) {
	mr, rdb := newMiniredis(t)
	l := NewLimiter(rdb, true)

	app := fiber.New()
	app.Post("/login", l.Handler(Rule{Name: "login", Limit: 2, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/send", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.Next()
	}, l.Handler(Rule{Name: "send", Limit: 1, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	var last *http.Response
	var statuses []int
	for range 3 {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
		_ = resp.Body.Close()
		last = resp
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
	assert.Equal(t, "2", last.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", last.Header.Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", last.Header.Get("Retry-After"))
	assert.True(t, mr.Exists("rl:login:ip:0.0.0.0"))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/send", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, mr.Exists("rl:send:user:7"), "authenticated callers are keyed by user")
}

func TestLimiter_FailPolicy(t *testing.T) {
	l := NewLimiter(nil, true)
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	app := fiber.New()
	app.Get("/open", l.Handler(Rule{Name: "open", Limit: 1, Window: time.Minute}), ok)
	app.Get("/closed", l.Handler(Rule{Name: "closed", Limit: 1, Window: time.Minute, Policy: FailClosed}), ok)

	for path, want := range map[string]int{"/open": http.StatusOK, "/closed": http.StatusServiceUnavailable} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}
}
