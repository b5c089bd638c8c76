package warden

import (
	"context"
	"sync"
)

// MemorySessionStorage keeps the session token in process memory
type MemorySessionStorage struct {
	mu    sync.RWMutex
	token string
}

// NewMemorySessionStorage creates an empty MemorySessionStorage
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{}
}

var _ SessionStorage = (*MemorySessionStorage)(nil)

// SaveToken replaces the stored token
func (s *MemorySessionStorage) SaveToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	return nil
}

// LoadToken returns the stored token
func (s *MemorySessionStorage) LoadToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", ErrNoSession
	}
	return s.token, nil
}

// ClearToken forgets the stored token
func (s *MemorySessionStorage) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	return nil
}
