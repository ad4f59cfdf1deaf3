package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value     []byte
	list      [][]byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a process-local Store for single-instance deployments and
// tests. Capacity is bounded; the least recently used key is evicted first.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, memoryEntry]
	now   func() time.Time
}

// NewMemoryStore creates a bounded in-memory store holding at most capacity keys.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = 10000
	}
	cache, err := lru.New[string, memoryEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("session: memory store: %w", err)
	}
	return &MemoryStore{cache: cache, now: time.Now}, nil
}

// SetClock overrides the time source; used to exercise expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) lookup(k string) (memoryEntry, bool) {
	entry, ok := s.cache.Get(k)
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(s.now()) {
		s.cache.Remove(k)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string, dst any) (bool, error) {
	s.mu.Lock()
	entry, ok := s.lookup(namespacedKey(sessionID, key))
	s.mu.Unlock()
	if !ok || entry.value == nil {
		return false, nil
	}
	if err := json.Unmarshal(entry.value, dst); err != nil {
		return false, fmt.Errorf("session: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(namespacedKey(sessionID, key), memoryEntry{value: data, expiresAt: s.expiry(ttl)})
	return nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := namespacedKey(sessionID, key)
	entry, _ := s.lookup(k)
	list := make([][]byte, len(entry.list), len(entry.list)+1)
	copy(list, entry.list)
	list = append(list, data)
	s.cache.Add(k, memoryEntry{list: list, expiresAt: s.expiry(ttl)})
	return nil
}

func (s *MemoryStore) List(_ context.Context, sessionID, key string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.lookup(namespacedKey(sessionID, key))
	if !ok {
		return [][]byte{}, nil
	}
	out := make([][]byte, len(entry.list))
	copy(out, entry.list)
	return out, nil
}
