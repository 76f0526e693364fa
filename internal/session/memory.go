package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShards = 16

// MemoryStore keeps sessions in process memory, sharded by call id so calls
// only contend within their own shard. Expired entries are swept lazily on
// writes to the owning shard, bounding growth without a background goroutine.
type MemoryStore struct {
	shards [memoryShards]memoryShard

	ttl time.Duration

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	fields  map[string]string
	touched time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &MemoryStore{ttl: ttl, clock: time.Now}
	for i := range s.shards {
		s.shards[i].entries = map[string]*memoryEntry{}
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, callID string) (Session, error) {
	sh := s.shard(callID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[callID]
	if !ok || s.expired(e) {
		return Session{}, nil
	}
	out := make(Session, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Merge(ctx context.Context, callID string, fields map[string]string) error {
	now := s.clock()
	sh := s.shard(callID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.sweep(now, s.ttl)

	e, ok := sh.entries[callID]
	if !ok {
		e = &memoryEntry{fields: map[string]string{}}
		sh.entries[callID] = e
	}
	for k, v := range fields {
		e.fields[k] = v
	}
	e.touched = now
	return nil
}

// Len reports live (non-expired) entries; used by eviction tests.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, e := range sh.entries {
			if !s.expired(e) {
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}

func (s *MemoryStore) shard(callID string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(callID))
	return &s.shards[h.Sum32()%memoryShards]
}

func (s *MemoryStore) expired(e *memoryEntry) bool {
	return s.clock().Sub(e.touched) > s.ttl
}

func (sh *memoryShard) sweep(now time.Time, ttl time.Duration) {
	for id, e := range sh.entries {
		if now.Sub(e.touched) > ttl {
			delete(sh.entries, id)
		}
	}
}
