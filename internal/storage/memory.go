package storage

import (
	"context"
	"sync"
)

// MemoryRepository keeps settings in process memory. It is used when no
// database is configured; settings are lost on restart.
type MemoryRepository struct {
	mu       sync.RWMutex
	settings map[string]string
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{settings: make(map[string]string)}
}

// GetSetting returns a stored value or ErrNotFound
func (r *MemoryRepository) GetSetting(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// PutSetting stores or replaces a value
func (r *MemoryRepository) PutSetting(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = value
	return nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
