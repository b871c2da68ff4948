package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Cache is a best-effort in-process reply cache keyed by session, message,
// and attachment names. It only trades latency; correctness never depends
// on a hit.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	reply     string
	expiresAt time.Time
}

// NewCache creates a reply cache with the given time-to-live.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key derives the cache key for a turn.
func (c *Cache) Key(turn Turn) string {
	names := make([]string, 0, len(turn.Attachments))
	for _, a := range turn.Attachments {
		names = append(names, a.Name)
	}
	sum := sha256.Sum256([]byte(turn.SessionID + "\x00" + turn.Message + "\x00" + strings.Join(names, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached reply for key, if present and fresh.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.reply, true
}

// Put stores a reply under key.
func (c *Cache) Put(key, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{reply: reply, expiresAt: c.now().Add(c.ttl)}
}

// Sweep drops expired entries; scheduled periodically.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
