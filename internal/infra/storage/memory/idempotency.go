package memory

import (
	"context"
	"sync"
	"time"

	"resort/internal/app/middleware"
)

// IdempotencyStore keeps command results in memory for TTL.
type IdempotencyStore struct {
	TTL time.Duration

	mu    sync.RWMutex
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{TTL: ttl, items: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok || s.expired(rec) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = make(map[string]middleware.IdempotencyRecord)
	}
	if existing, ok := s.items[rec.Key]; ok && !s.expired(existing) {
		return nil
	}
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord) bool {
	return s.TTL > 0 && time.Since(rec.OccurredAt) > s.TTL
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
