package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces window counters in Redis.
const DefaultKeyPrefix = "rl:"

// windowScript increments the window counter and sets its expiry on first use.
// It returns the new count and the remaining TTL in milliseconds.
var windowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return {count, ttl}
`)

// WindowLimiter is a fixed-window counter shared across processes through Redis.
type WindowLimiter struct {
	redis  redis.Cmdable
	window time.Duration
	limit  int
	prefix string
	now    func() time.Time
}

// NewWindowLimiter admits up to limit requests per key in each window.
func NewWindowLimiter(client redis.Cmdable, window time.Duration, limit int, prefix string) *WindowLimiter {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &WindowLimiter{
		redis:  client,
		window: window,
		limit:  limit,
		prefix: prefix,
		now:    time.Now,
	}
}

func (w *WindowLimiter) windowKey(key string, now time.Time) string {
	start := now.Truncate(w.window).UnixMilli()
	return w.prefix + key + ":" + strconv.FormatInt(start, 10)
}

// Check counts one request for key in the current window.
func (w *WindowLimiter) Check(ctx context.Context, key string) (Decision, error) {
	now := w.now()
	windowKey := w.windowKey(key, now)

	result, err := windowScript.Run(ctx, w.redis, []string{windowKey}, w.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("window check for %s: %w", key, err)
	}

	count, ttl := result[0], result[1]
	if count <= int64(w.limit) {
		return Allow, nil
	}

	retryAfter := time.Duration(ttl) * time.Millisecond
	if ttl <= 0 {
		retryAfter = now.Truncate(w.window).Add(w.window).Sub(now)
	}
	return Decision{RetryAfter: retryAfter}, nil
}

// Reset deletes the counters for key, or every counter under the prefix when key is empty.
func (w *WindowLimiter) Reset(ctx context.Context, key string) error {
	match := w.prefix + key + ":*"
	if key == "" {
		match = w.prefix + "*"
	}

	iter := w.redis.Scan(ctx, 0, match, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan rate limit keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return w.redis.Del(ctx, keys...).Err()
}

// Close is a no-op; the Redis client is owned by the caller.
func (w *WindowLimiter) Close() error {
	return nil
}
