// Package cache provides the process-wide TTL cache backing the reporting
// read path. Entries expire lazily on access and are also swept by a
// background janitor; an expired key is never returned.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

const reportKeyPrefix = "report:"

type entry struct {
	value     any
	expiresAt time.Time
}

// Stats holds the cache's access counters.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Sets    uint64  `json:"sets"`
	Deletes uint64  `json:"deletes"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Memory is an in-process TTL cache safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	hits    uint64
	misses  uint64
	sets    uint64
	deletes uint64

	stop chan struct{}
	once sync.Once
}

// NewMemory creates a cache and starts its sweep janitor.
func NewMemory(sweepInterval time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go m.janitor(sweepInterval)
	}
	return m
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// Close stops the janitor.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

// Get returns the value for key, or false on a miss or an expired entry.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		m.misses++
		return nil, false
	}
	m.hits++
	return e.value, true
}

// Set stores value under key for ttl, overwriting any previous entry.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	m.sets++
}

// Delete removes key and reports whether it was present.
func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return false
	}
	delete(m.entries, key)
	m.deletes++
	return true
}

// Has reports whether key is present and unexpired, without counting as an
// access.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return ok && time.Now().Before(e.expiresAt)
}

// Clear removes every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
}

// GetOrSet returns the cached value for key when present, otherwise calls
// producer, caches its result for ttl and returns it. A producer error
// propagates and nothing is cached.
func (m *Memory) GetOrSet(key string, ttl time.Duration, producer func() (any, error)) (any, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	v, err := producer()
	if err != nil {
		return nil, err
	}
	m.Set(key, v, ttl)
	return v, nil
}

// Stats returns a snapshot of the counters. HitRate is 0 before the first
// access.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		Hits:    m.hits,
		Misses:  m.misses,
		Sets:    m.sets,
		Deletes: m.deletes,
		Size:    len(m.entries),
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}
	return s
}

// ReportKey derives a deterministic cache key from a report type, its
// filter set and pagination. Equal inputs always produce the same key.
func ReportKey(reportType string, filters any, page, limit int) string {
	raw, _ := json.Marshal(filters)
	sum := sha256.Sum256(fmt.Appendf(raw, "|%d|%d", page, limit))
	return fmt.Sprintf("%s%s:%s", reportKeyPrefix, reportType, hex.EncodeToString(sum[:16]))
}

// Invalidate removes report-cache entries, optionally scoped to a single
// report type, and returns the number removed.
func (m *Memory) Invalidate(reportType string) int {
	prefix := reportKeyPrefix
	if reportType != "" {
		prefix += reportType + ":"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			removed++
		}
	}
	m.deletes += uint64(removed)
	return removed
}
