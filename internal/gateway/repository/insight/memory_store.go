package insight

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	max     int
}

// NewMemoryStore keeps at most max records; 0 means unbounded.
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{max: max}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return ErrInvalidRecord
	}
	rec.Vector = append([]float32(nil), rec.Vector...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if s.max > 0 && len(s.records) > s.max {
		s.records = append([]Record(nil), s.records[len(s.records)-s.max:]...)
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryStore) Similar(_ context.Context, vector []float32, k int) ([]Match, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	candidates := append([]Record(nil), s.records...)
	s.mu.RUnlock()
	return topK(vector, candidates, k), nil
}
