// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geomarket/internal/metrics"
)

const tierL1 = "l1"

// EvictionPolicy selects how Memory makes room when it is full.
type EvictionPolicy string

const (
	// EvictQuartile removes the least recently accessed 25% of entries.
	EvictQuartile EvictionPolicy = "quartile"

	// EvictLRU removes only the single least recently accessed entry.
	EvictLRU EvictionPolicy = "lru"
)

// DefaultMaxEntries is the L1 capacity used when none is configured.
const DefaultMaxEntries = 1000

// defaultSweepInterval bounds how often Get/Set walk the whole map for
// expired entries.
const defaultSweepInterval = time.Second

// Entry is one L1 cache item. Value is the serialized payload.
type Entry struct {
	key        string
	Value      []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
	AccessedAt time.Time
	HitCount   int64

	prev *Entry
	next *Entry
}

// expired reports whether the entry must no longer be served at now.
func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// MemoryConfig configures the L1 cache.
type MemoryConfig struct {
	MaxEntries int
	Policy     EvictionPolicy

	// SweepInterval is the minimum time between full expiry sweeps.
	SweepInterval time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Memory is the bounded in-process L1 cache.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	recency    recencyList
	max        int
	policy     EvictionPolicy
	sweepEvery time.Duration
	lastSweep  time.Time
	now        func() time.Time
	stats      Stats
}

// Stats tracks L1 cache performance.
type Stats struct {
	Size        int       `json:"size"`
	MaxSize     int       `json:"max_size"`
	TotalHits   int64     `json:"total_hits"`
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Evictions   int64     `json:"evictions"`
	HitRate     float64   `json:"hit_rate"`
	LastCleanup time.Time `json:"last_cleanup"`
}

// NewMemory creates an empty L1 cache.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Policy == "" {
		cfg.Policy = EvictQuartile
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	m := &Memory{
		entries:    make(map[string]*Entry, cfg.MaxEntries),
		recency:    newRecencyList(),
		max:        cfg.MaxEntries,
		policy:     cfg.Policy,
		sweepEvery: cfg.SweepInterval,
		now:        cfg.Clock,
	}
	m.lastSweep = m.now()
	return m
}

// Get returns the value for key if present and not expired, and records
// the access.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.maybeSweepLocked(now)

	e, ok := m.entries[key]
	if !ok {
		m.missLocked()
		return nil, false
	}
	if e.expired(now) {
		m.removeLocked(e, "expired")
		m.missLocked()
		return nil, false
	}

	e.AccessedAt = now
	e.HitCount++
	m.recency.moveToFront(e)
	m.stats.Hits++
	metrics.CacheHits.WithLabelValues(tierL1).Inc()
	return e.Value, true
}

// Remaining returns how long key has left to live, or false if it is absent
// or expired. It does not count as an access.
func (m *Memory) Remaining(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	now := m.now()
	if !ok || e.expired(now) {
		return 0, false
	}
	return e.ExpiresAt.Sub(now), true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		m.Delete(key)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.maybeSweepLocked(now)

	if e, ok := m.entries[key]; ok {
		e.Value = value
		e.CreatedAt = now
		e.ExpiresAt = now.Add(ttl)
		e.AccessedAt = now
		m.recency.moveToFront(e)
		return
	}

	if len(m.entries) >= m.max {
		// Expired entries go first; only evict live ones if still full.
		m.sweepLocked(now)
		if len(m.entries) >= m.max {
			m.evictLocked()
		}
	}

	e := &Entry{
		key:        key,
		Value:      value,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		AccessedAt: now,
	}
	m.entries[key] = e
	m.recency.pushFront(e)
	metrics.CacheSize.WithLabelValues(tierL1).Set(float64(len(m.entries)))
}

// Delete removes key. It reports whether the key was present.
func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	m.removeLocked(e, "deleted")
	return true
}

// Clear removes every entry and returns how many were removed.
func (m *Memory) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	m.entries = make(map[string]*Entry, m.max)
	m.recency.reset()
	m.stats.Evictions += int64(n)
	metrics.CacheEvictions.WithLabelValues(tierL1, "cleared").Add(float64(n))
	metrics.CacheSize.WithLabelValues(tierL1).Set(0)
	return n
}

// Len returns the number of stored entries, including any not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns a snapshot after sweeping expired entries.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())

	s := m.stats
	s.Size = len(m.entries)
	s.MaxSize = m.max
	for _, e := range m.entries {
		s.TotalHits += e.HitCount
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100.0
	}
	return s
}

// HitRate returns the cache hit rate as a percentage.
func (m *Memory) HitRate() float64 {
	return m.Stats().HitRate
}

// maybeSweepLocked runs a full sweep if the last one is older than the sweep interval.
func (m *Memory) maybeSweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) >= m.sweepEvery {
		m.sweepLocked(now)
	}
}

// sweepLocked removes all expired entries (caller must hold mu).
func (m *Memory) sweepLocked(now time.Time) {
	for _, e := range m.entries {
		if e.expired(now) {
			m.removeLocked(e, "expired")
		}
	}
	m.lastSweep = now
	m.stats.LastCleanup = now
}

// evictLocked makes room for one more entry according to the policy.
func (m *Memory) evictLocked() {
	n := 1
	if m.policy == EvictQuartile {
		n = len(m.entries) / 4
		if n < 1 {
			n = 1
		}
	}
	for i := 0; i < n; i++ {
		oldest := m.recency.oldest()
		if oldest == nil {
			return
		}
		m.removeLocked(oldest, "capacity")
	}
}

func (m *Memory) removeLocked(e *Entry, reason string) {
	m.recency.unlink(e)
	delete(m.entries, e.key)
	m.stats.Evictions++
	metrics.CacheEvictions.WithLabelValues(tierL1, reason).Inc()
	metrics.CacheSize.WithLabelValues(tierL1).Set(float64(len(m.entries)))
}

func (m *Memory) missLocked() {
	m.stats.Misses++
	metrics.CacheMisses.WithLabelValues(tierL1).Inc()
}

// GenerateKey creates a cache key from an operation name and its arguments.
// Arguments are JSON encoded, so struct fields keep declaration order and
// map keys are sorted; identical logical calls hash to the same key.
func GenerateKey(method string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", method, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", method, hash[:16])
}
