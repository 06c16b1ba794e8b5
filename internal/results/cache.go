package results

import (
	"context"
	"sync"
	"time"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

// Cache stores fetched summaries for display. A miss returns (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*models.Summary, bool, error)
	Set(ctx context.Context, key string, summary *models.Summary, ttl time.Duration) error
}

type memoryEntry struct {
	summary   models.Summary
	expiresAt time.Time
}

// MemoryCache is a process-local Cache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*models.Summary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}

	s := e.summary
	return &s, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, summary *models.Summary, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{summary: *summary}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// noCache never hits
type noCache struct{}

func (noCache) Get(context.Context, string) (*models.Summary, bool, error) { return nil, false, nil }

func (noCache) Set(context.Context, string, *models.Summary, time.Duration) error { return nil }
