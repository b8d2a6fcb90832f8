package setstore

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/sets/hashset"
)

// MemoryStore is an in-process SetStore used by the memory engine and by
// tests. TTLs are honored lazily: an expired key reads as absent.
type MemoryStore struct {
	mu      sync.RWMutex
	sets    map[string]*hashset.Set
	expires map[string]time.Time
	now     func() time.Time
}

var _ SetStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets:    make(map[string]*hashset.Set),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock, for expiry tests.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live returns the set at key, dropping it first if its TTL has lapsed.
// Callers must hold the write lock.
func (s *MemoryStore) live(key string) (*hashset.Set, bool) {
	if deadline, ok := s.expires[key]; ok && !s.now().Before(deadline) {
		delete(s.sets, key)
		delete(s.expires, key)
		return nil, false
	}
	set, ok := s.sets[key]
	return set, ok
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	return ok, nil
}

func (s *MemoryStore) Members(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.live(key)
	if !ok {
		return nil, nil
	}
	return values(set), nil
}

func (s *MemoryStore) Union(_ context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	union := hashset.New()
	for _, key := range keys {
		if set, ok := s.live(key); ok {
			union.Add(set.Values()...)
		}
	}
	return values(union), nil
}

func (s *MemoryStore) Add(_ context.Context, key string, vals ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.live(key)
	if !ok {
		set = hashset.New()
		s.sets[key] = set
	}
	for _, v := range vals {
		set.Add(v)
	}
	return int64(set.Size()), nil
}

func (s *MemoryStore) InterStore(_ context.Context, dest, key1, key2 string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, b := s.liveOrEmpty(key1), s.liveOrEmpty(key2)
	out := hashset.New()
	for _, v := range a.Values() {
		if b.Contains(v) {
			out.Add(v)
		}
	}
	s.store(dest, out)
	return int64(out.Size()), nil
}

func (s *MemoryStore) UnionStore(_ context.Context, dest, key1, key2 string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := hashset.New()
	out.Add(s.liveOrEmpty(key1).Values()...)
	out.Add(s.liveOrEmpty(key2).Values()...)
	s.store(dest, out)
	return int64(out.Size()), nil
}

func (s *MemoryStore) DiffStore(_ context.Context, dest, key1, key2 string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, b := s.liveOrEmpty(key1), s.liveOrEmpty(key2)
	out := hashset.New()
	for _, v := range a.Values() {
		if !b.Contains(v) {
			out.Add(v)
		}
	}
	s.store(dest, out)
	return int64(out.Size()), nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); !ok {
		return false, nil
	}
	s.expires[key] = s.now().Add(ttl)
	return true, nil
}

func (s *MemoryStore) liveOrEmpty(key string) *hashset.Set {
	if set, ok := s.live(key); ok {
		return set
	}
	return hashset.New()
}

func (s *MemoryStore) store(dest string, set *hashset.Set) {
	s.sets[dest] = set
	delete(s.expires, dest)
}

func values(set *hashset.Set) []string {
	out := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		out = append(out, v.(string))
	}
	return out
}
