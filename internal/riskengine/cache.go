package riskengine

import (
	"fmt"
	"sync"
	"time"
)

// scoreCacheKey builds the composite memoization key from spec.md §4.3.2:
// (email, ip, hour, |suspicious_patterns|, round(similarity_to_user_profile,2),
// round(outlier_score,2)).
func scoreCacheKey(ctx AuthContext, nlp NLPFeatures, embedding EmbeddingAnalysis) string {
	return fmt.Sprintf("%s|%s|%d|%d|%.2f|%.2f",
		ctx.Email,
		ctx.ClientIP,
		ctx.Timestamp.Hour(),
		len(nlp.SuspiciousPatterns),
		round2(embedding.SimilarityToUserProfile),
		round2(embedding.OutlierScore),
	)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

type cacheEntry struct {
	risk      float64
	expiresAt time.Time
}

// ScoreCache is a TTL-bounded memoization cache for computed risk scores.
// Its lock is independent of the profiles map and the sliding window, per
// spec.md §5.
type ScoreCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]cacheEntry
}

// NewScoreCache returns a cache that holds at most maxSize entries and
// expires each one ttl after insertion.
func NewScoreCache(ttl time.Duration, maxSize int) *ScoreCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &ScoreCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]cacheEntry, maxSize),
	}
}

// Get returns the cached risk for key, if present and not expired.
func (c *ScoreCache) Get(key string, now time.Time) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || now.After(e.expiresAt) {
		return 0, false
	}
	return e.risk, true
}

// Set stores risk under key with the cache's configured TTL. If the cache
// is at capacity, it evicts one entry to make room before inserting: an
// expired one if any, otherwise an arbitrary one (a small bound, not an LRU).
func (c *ScoreCache) Set(key string, risk float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOneLocked(now)
	}
	c.entries[key] = cacheEntry{risk: risk, expiresAt: now.Add(c.ttl)}
}

// evictOneLocked removes one entry, preferring an already-expired one.
// Callers must hold c.mu.
func (c *ScoreCache) evictOneLocked(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			return
		}
	}
	for k := range c.entries {
		delete(c.entries, k)
		return
	}
}

// Len reports the current entry count, for tests and metrics.
func (c *ScoreCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
