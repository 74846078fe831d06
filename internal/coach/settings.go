package coach

import (
	"context"
	"sync"
)

// Fixed keys for local durable state.
const (
	KeyCredentials  = "screen_buddy_api_keys"
	KeyCurrentIndex = "screen_buddy_key_index"
	KeyQuotaCount   = "screen_buddy_daily_quota"
	KeyQuotaDate    = "screen_buddy_quota_date"
)

// SettingsStore is the durable key/value state read at startup and written
// on every mutation.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemorySettings is a process-local SettingsStore.
type MemorySettings struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemorySettings() *MemorySettings {
	return &MemorySettings{m: make(map[string]string)}
}

func (s *MemorySettings) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemorySettings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}
