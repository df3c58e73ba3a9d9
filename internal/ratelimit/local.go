package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minIdleTTL is the shortest time a bucket is kept after its last check
	minIdleTTL = time.Minute
	// sweepInterval bounds how often Check scans for idle buckets
	sweepInterval = 30 * time.Second
)

// bucket is one key's token bucket and the time it was last checked
type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// LocalLimiter keeps one token bucket per key in process memory. Buckets not
// checked for longer than the idle TTL are dropped; by then they have refilled,
// so a fresh bucket admits exactly what the old one would have.
type LocalLimiter struct {
	mu        sync.RWMutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	closed    bool
	now       func() time.Time
}

// NewLocalLimiter creates a limiter admitting rps requests per second per key
// with bursts of up to burst requests. A burst below 1 is raised to 1.
func NewLocalLimiter(rps, burst int) *LocalLimiter {
	if burst < 1 {
		burst = 1
	}
	var idleTTL time.Duration
	if rps > 0 {
		idleTTL = max(minIdleTTL, time.Duration(burst)*time.Second/time.Duration(rps))
	}
	return &LocalLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (l *LocalLimiter) getBucket(key string) (*bucket, bool) {
	l.mu.RLock()
	b, exists := l.buckets[key]
	closed := l.closed
	l.mu.RUnlock()

	if closed {
		return nil, false
	}
	if exists {
		return b, true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, false
	}
	// Another goroutine may have created it meanwhile
	if b, exists := l.buckets[key]; exists {
		return b, true
	}

	b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
	l.buckets[key] = b
	return b, true
}

// Check takes one token for key, or reports how long until one is available.
func (l *LocalLimiter) Check(_ context.Context, key string) (Decision, error) {
	b, ok := l.getBucket(key)
	if !ok {
		return Decision{}, ErrClosed
	}

	now := l.now()
	b.lastSeen.Store(now.UnixNano())
	l.sweep(now)

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{RetryAfter: time.Second}, nil
	}

	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return Decision{RetryAfter: delay}, nil
	}

	return Allow, nil
}

// sweep drops buckets idle for longer than idleTTL, at most once per sweepInterval
func (l *LocalLimiter) sweep(now time.Time) {
	if l.idleTTL <= 0 {
		return
	}

	l.mu.RLock()
	due := now.Sub(l.lastSweep) >= sweepInterval
	l.mu.RUnlock()
	if !due {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.idleTTL).UnixNano()
	for key, b := range l.buckets {
		if b.lastSeen.Load() < cutoff {
			delete(l.buckets, key)
		}
	}
}

// Reset forgets the bucket for key, or every bucket when key is empty.
func (l *LocalLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if key == "" {
		l.buckets = make(map[string]*bucket)
		return nil
	}
	delete(l.buckets, key)
	return nil
}

// Close drops all buckets; later checks fail with ErrClosed.
func (l *LocalLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.buckets = nil
	return nil
}

// Len returns the number of tracked keys.
func (l *LocalLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
