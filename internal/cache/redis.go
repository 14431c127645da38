// Package cache holds the shared Redis client and the cache-aside helpers
// built on it. Every helper tolerates a nil client so the API keeps working
// without Redis, only slower.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"socialnet/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// errorCounter feeds failed commands into RedisErrors. A cache miss
// (redis.Nil) is not a failure.
type errorCounter struct{}

func countFailure(label string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrors.WithLabelValues(label).Inc()
	}
}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countFailure(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countFailure("pipeline", err)
		return err
	}
}

// parseOptions accepts a redis:// URL or a bare host:port.
func parseOptions(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("empty redis address")
	}
	if strings.Contains(addr, "://") {
		return redis.ParseURL(addr)
	}
	return &redis.Options{Addr: addr}, nil
}

// Connect dials Redis and pings it once.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := parseOptions(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Addr, err)
	}
	return c, nil
}

// InitRedis sets the package client, leaving it nil when Redis is down.
func InitRedis(addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, addr)
	if err != nil {
		slog.Default().Warn("redis unavailable, continuing without cache", "error", err)
		client = nil
		return
	}
	slog.Default().Info("redis connected", "addr", c.Options().Addr)
	client = c
}

// SetClient replaces the package client.
func SetClient(c *redis.Client) {
	client = c
}

func GetClient() *redis.Client {
	return client
}
