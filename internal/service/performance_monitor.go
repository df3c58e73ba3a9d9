package service

import (
	"slices"
	"sync"
	"time"

	"github.com/solana-scanner/internal/types"
)

const (
	defaultMonitorSamples = 1000
	defaultSlowLookup     = 2 * time.Second
)

// LookupMonitor tracks classification lookups: cache effectiveness, latency
// and which tier produced each verdict.
type LookupMonitor struct {
	mu            sync.RWMutex
	cachedTimes   []time.Duration
	resolvedTimes []time.Duration
	bySource      map[types.ClassificationSource]int64
	cacheHits     int64
	cacheMisses   int64
	slowLookups   int64
	maxSamples    int
	slow          time.Duration
}

// NewLookupMonitor creates a monitor keeping the last maxSamples timings per
// path. Lookups slower than slow are counted separately.
func NewLookupMonitor(maxSamples int, slow time.Duration) *LookupMonitor {
	if maxSamples <= 0 {
		maxSamples = defaultMonitorSamples
	}
	if slow <= 0 {
		slow = defaultSlowLookup
	}
	return &LookupMonitor{
		bySource:   make(map[types.ClassificationSource]int64),
		maxSamples: maxSamples,
		slow:       slow,
	}
}

// Record adds one lookup
func (m *LookupMonitor) Record(duration time.Duration, cached bool, source types.ClassificationSource) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached {
		m.cacheHits++
		m.cachedTimes = appendBounded(m.cachedTimes, duration, m.maxSamples)
	} else {
		m.cacheMisses++
		m.resolvedTimes = appendBounded(m.resolvedTimes, duration, m.maxSamples)
	}
	m.bySource[source]++

	if duration > m.slow {
		m.slowLookups++
	}
}

func appendBounded(samples []time.Duration, d time.Duration, max int) []time.Duration {
	samples = append(samples, d)
	if len(samples) > max {
		samples = samples[len(samples)-max:]
	}
	return samples
}

// Stats returns a snapshot of the counters
func (m *LookupMonitor) Stats() *LookupStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &LookupStats{
		TotalLookups: m.cacheHits + m.cacheMisses,
		CacheHits:    m.cacheHits,
		CacheMisses:  m.cacheMisses,
		SlowLookups:  m.slowLookups,
		BySource:     make(map[types.ClassificationSource]int64, len(m.bySource)),
	}
	for source, n := range m.bySource {
		stats.BySource[source] = n
	}

	if stats.TotalLookups > 0 {
		stats.CacheHitRate = float64(m.cacheHits) / float64(stats.TotalLookups) * 100
	}
	stats.AvgCachedMs = averageMs(m.cachedTimes)
	stats.AvgResolvedMs = averageMs(m.resolvedTimes)
	stats.P95ResolvedMs = percentileMs(m.resolvedTimes, 0.95)
	stats.P99ResolvedMs = percentileMs(m.resolvedTimes, 0.99)

	return stats
}

// Reset clears all counters
func (m *LookupMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cachedTimes = nil
	m.resolvedTimes = nil
	m.bySource = make(map[types.ClassificationSource]int64)
	m.cacheHits = 0
	m.cacheMisses = 0
	m.slowLookups = 0
}

func averageMs(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return float64(total.Microseconds()) / 1000 / float64(len(samples))
}

func percentileMs(samples []time.Duration, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx].Microseconds()) / 1000
}

// LookupStats contains lookup statistics
type LookupStats struct {
	TotalLookups  int64                                  `json:"totalLookups"`
	CacheHits     int64                                  `json:"cacheHits"`
	CacheMisses   int64                                  `json:"cacheMisses"`
	SlowLookups   int64                                  `json:"slowLookups"`
	CacheHitRate  float64                                `json:"cacheHitRate"` // Percentage
	AvgCachedMs   float64                                `json:"avgCachedMs"`
	AvgResolvedMs float64                                `json:"avgResolvedMs"`
	P95ResolvedMs float64                                `json:"p95ResolvedMs"`
	P99ResolvedMs float64                                `json:"p99ResolvedMs"`
	BySource      map[types.ClassificationSource]int64 `json:"bySource"`
}
