package cache

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

type memoryEntry struct {
	value        []byte
	expiresAt    time.Time
	lastAccessed time.Time
	seq          uint64 // insertion order, breaks eviction ties
}

// Memory is an in-process LRU+TTL response cache. When full it evicts the
// entry with the oldest last access, falling back to insertion order on ties.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxSize int
	ttl     time.Duration
	nextSeq uint64

	hits      int64
	misses    int64
	evictions int64

	stop chan struct{}
	once sync.Once
}

// NewMemory creates a memory cache holding at most maxSize entries for ttl
// each. A background sweep removes expired entries every five minutes.
func NewMemory(maxSize int, ttl time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			delete(m.entries, key)
		}
		m.misses++
		return nil, false, nil
	}
	entry.lastAccessed = time.Now()
	m.hits++
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		ttl = m.ttl
	}
	now := time.Now()
	if existing, ok := m.entries[key]; ok {
		existing.value = append([]byte(nil), value...)
		existing.expiresAt = now.Add(ttl)
		existing.lastAccessed = now
		return nil
	}
	if len(m.entries) >= m.maxSize {
		m.evictOldest()
	}
	m.nextSeq++
	m.entries[key] = &memoryEntry{
		value:        append([]byte(nil), value...),
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
		seq:          m.nextSeq,
	}
	return nil
}

// evictOldest removes the least recently accessed entry. Caller holds the
// lock.
func (m *Memory) evictOldest() {
	var (
		victim string
		best   *memoryEntry
	)
	for key, entry := range m.entries {
		if best == nil ||
			entry.lastAccessed.Before(best.lastAccessed) ||
			(entry.lastAccessed.Equal(best.lastAccessed) && entry.seq < best.seq) {
			victim, best = key, entry
		}
	}
	if best != nil {
		delete(m.entries, victim)
		m.evictions++
	}
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
	return nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.hits + m.misses
	stats := Stats{
		Hits:          m.hits,
		Misses:        m.misses,
		Evictions:     m.evictions,
		Size:          len(m.entries),
		MaxSize:       m.maxSize,
		TotalRequests: total,
	}
	if total > 0 {
		stats.HitRate = float64(m.hits) / float64(total)
	}
	return stats, nil
}

// Close stops the background sweep.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}
