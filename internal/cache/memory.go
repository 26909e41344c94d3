package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryCapacity = 1000

type memoryEntry struct {
	response  string
	createdAt time.Time
}

// MemoryStore is an in-process Store backed by an LRU cache. Capacity
// eviction is an acceptable extra source of misses since the cache is a
// pure memoization layer.
type MemoryStore struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time

	mu    sync.RWMutex
	ready map[string]bool

	hits   atomic.Int64
	misses atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock injects the clock used for TTL checks.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	entries, err := lru.New[string, memoryEntry](defaultMemoryCapacity)
	if err != nil {
		// Only reachable with a non-positive capacity.
		panic(fmt.Sprintf("failed to create response cache: %v", err))
	}
	return &MemoryStore{
		entries: entries,
		now:     now,
		ready:   make(map[string]bool),
	}
}

func (s *MemoryStore) HasReady(_ context.Context, videoID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready[videoID], nil
}

func (s *MemoryStore) MarkReady(_ context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready[videoID] = true
	return nil
}

func (s *MemoryStore) Get(_ context.Context, videoID, requestKey string) (string, bool, error) {
	key := entryKey(videoID, requestKey)
	entry, ok := s.entries.Get(key)
	if !ok {
		s.misses.Add(1)
		return "", false, nil
	}

	if s.now().Sub(entry.createdAt) >= ResponseTTL {
		// Lazy expiry: reap on read, never serve stale.
		s.entries.Remove(key)
		s.misses.Add(1)
		return "", false, nil
	}

	s.hits.Add(1)
	return entry.response, true, nil
}

func (s *MemoryStore) Put(_ context.Context, videoID, requestKey, response string) error {
	s.entries.Add(entryKey(videoID, requestKey), memoryEntry{
		response:  response,
		createdAt: s.now(),
	})
	return nil
}

func (s *MemoryStore) CountReady(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ready), nil
}

func (s *MemoryStore) Stats() Stats {
	return Stats{
		Entries: int64(s.entries.Len()),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}

func entryKey(videoID, requestKey string) string {
	return videoID + "\x00" + requestKey
}
