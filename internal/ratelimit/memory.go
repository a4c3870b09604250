package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// MemoryStore keeps windows in a map. Expired windows are swept at most once per
// window length, so memory tracks the number of recently active keys.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return newMemoryStoreWithClock(time.Now)
}

func newMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		windows:   make(map[string]*window),
		lastSweep: now(),
		now:       now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, length time.Duration) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= length {
		for k, w := range s.windows {
			if now.Sub(w.start) >= length {
				delete(s.windows, k)
			}
		}
		s.lastSweep = now
	}

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= length {
		w = &window{start: now}
		s.windows[key] = w
	}
	w.count++

	return w.count, length - now.Sub(w.start), nil
}

// Len is the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
