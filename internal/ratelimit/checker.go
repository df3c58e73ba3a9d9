// Package ratelimit provides the request admission checks shared by the API
// and the outbound provider tiers.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by NewChecker.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

// ErrClosed is returned by checks made after Close.
var ErrClosed = errors.New("rate limiter is closed")

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Allow is the decision for an admitted request.
var Allow = Decision{Allowed: true}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for Retry-After headers.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed || d.RetryAfter <= 0 {
		return 0
	}
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// Checker decides whether a request identified by key may proceed.
// Implementations are safe for concurrent use. Reset with an empty key
// clears every key; Close releases the limiter's state.
type Checker interface {
	Check(ctx context.Context, key string) (Decision, error)
	Reset(ctx context.Context, key string) error
	Close() error
}

// Config selects and sizes a Checker.
type Config struct {
	Backend string

	// Local token bucket
	RequestsPerSecond int
	Burst             int

	// Redis fixed window
	Redis       redis.Cmdable
	Window      time.Duration
	WindowLimit int
	KeyPrefix   string
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, "":
		if c.RequestsPerSecond <= 0 {
			return errors.New("requests per second must be positive")
		}
		if c.Burst < 0 {
			return errors.New("burst cannot be negative")
		}
	case BackendRedis:
		if c.Redis == nil {
			return errors.New("redis client is required")
		}
		if c.Window <= 0 {
			return errors.New("window must be positive")
		}
		if c.WindowLimit <= 0 {
			return errors.New("window limit must be positive")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.Backend)
	}
	return nil
}

// NewChecker builds the Checker selected by cfg.Backend.
func NewChecker(cfg *Config) (Checker, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Backend == BackendRedis {
		return NewWindowLimiter(cfg.Redis, cfg.Window, cfg.WindowLimit, cfg.KeyPrefix), nil
	}
	return NewLocalLimiter(cfg.RequestsPerSecond, cfg.Burst), nil
}

// Unlimited admits every request. It stands in when limiting is disabled.
type Unlimited struct{}

func (Unlimited) Check(context.Context, string) (Decision, error) { return Allow, nil }
func (Unlimited) Reset(context.Context, string) error             { return nil }
func (Unlimited) Close() error                                    { return nil }
