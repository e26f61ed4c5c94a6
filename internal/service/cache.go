package service

import (
	"sync"
	"time"
)

// AnswerCacheConfig controls answer cache capacity and entry lifetime.
type AnswerCacheConfig struct {
	Capacity int
	TTL      time.Duration
}

// DefaultAnswerCacheConfig provides sane defaults for answer caching.
func DefaultAnswerCacheConfig() AnswerCacheConfig {
	return AnswerCacheConfig{
		Capacity: 256,
		TTL:      15 * time.Minute,
	}
}

type answerCacheKey struct {
	assistantID string
	contentHash string
}

type answerCacheEntry struct {
	value      string
	storedAt   time.Time
	lastAccess time.Time
}

// AnswerCache is a bounded in-process cache for assistant answers, keyed by
// (assistant id, content hash). Entries expire TTL after write, checked on
// read; when full, the least recently accessed entry is evicted. Instances
// are passed explicitly to consumers rather than shared through package
// state.
type AnswerCache struct {
	mu      sync.Mutex
	cfg     AnswerCacheConfig
	entries map[answerCacheKey]*answerCacheEntry
	now     func() time.Time
}

func NewAnswerCache(cfg AnswerCacheConfig) *AnswerCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultAnswerCacheConfig().Capacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAnswerCacheConfig().TTL
	}
	return &AnswerCache{
		cfg:     cfg,
		entries: make(map[answerCacheKey]*answerCacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached answer for the key if present and not expired.
// Expired entries are removed on read.
func (c *AnswerCache) Get(assistantID, contentHash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := answerCacheKey{assistantID: assistantID, contentHash: contentHash}
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}

	now := c.now()
	if now.Sub(entry.storedAt) > c.cfg.TTL {
		delete(c.entries, key)
		return "", false
	}

	entry.lastAccess = now
	return entry.value, true
}

// Put stores an answer, evicting the least recently accessed entry when the
// cache is at capacity.
func (c *AnswerCache) Put(assistantID, contentHash, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := answerCacheKey{assistantID: assistantID, contentHash: contentHash}
	now := c.now()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.cfg.Capacity {
		c.evictOldest()
	}

	c.entries[key] = &answerCacheEntry{
		value:      value,
		storedAt:   now,
		lastAccess: now,
	}
}

// Len reports the number of entries currently held, expired or not.
func (c *AnswerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *AnswerCache) evictOldest() {
	var oldestKey answerCacheKey
	var oldest time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = entry.lastAccess
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
