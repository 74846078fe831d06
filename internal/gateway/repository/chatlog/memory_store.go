package chatlog

import (
	"context"
	"fmt"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	msgs []Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, msg Message) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := validate(msg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Message, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.msgs)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]Message(nil), s.msgs[:n]...), nil
}
