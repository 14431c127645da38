package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	// FailClosed answers 503 instead of letting the request through.
	FailClosed
)

// Rule is a fixed-window budget: Limit requests per Window for each caller.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time left in the current window.
	RetryAfter time.Duration
}

var errNoRedis = errors.New("rate limiter has no redis client")

// Limiter counts requests in Redis so every instance shares one budget.
// A nil *Limiter, or one built with enabled=false, allows everything.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

func NewLimiter(rdb *redis.Client, enabled bool) *Limiter {
	return &Limiter{rdb: rdb, enabled: enabled}
}

// LimiterEnabledFor turns limiting off for local and load-test environments.
func LimiterEnabledFor(env string) bool {
	switch env {
	case "", "test", "development", "stress":
		return false
	}
	return true
}

func rateLimitKey(rule Rule, caller string) string {
	return fmt.Sprintf("rl:%s:%s", rule.Name, caller)
}

// Allow records one hit for caller against rule.
func (l *Limiter) Allow(ctx context.Context, rule Rule, caller string) (Decision, error) {
	if l == nil || !l.enabled {
		return Decision{Allowed: true, Remaining: rule.Limit}, nil
	}
	if l.rdb == nil {
		return Decision{}, errNoRedis
	}

	key := rateLimitKey(rule, caller)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, rule.Window)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	count := int(incr.Val())
	d := Decision{
		Allowed:    count <= rule.Limit,
		Remaining:  max(rule.Limit-count, 0),
		RetryAfter: ttl.Val(),
	}
	if d.RetryAfter < 0 {
		d.RetryAfter = rule.Window
	}
	return d, nil
}

// Handler enforces rule per authenticated user, falling back to client IP.
func (l *Limiter) Handler(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			caller = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		d, err := l.Allow(c.UserContext(), rule, caller)
		if err != nil {
			if rule.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limiter unavailable, rejecting",
					"rule", rule.Name, "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
			}
			return c.Next()
		}

		if l != nil && l.enabled {
			c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		}
		if !d.Allowed {
			secs := int((d.RetryAfter + time.Second - 1) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
