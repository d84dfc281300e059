package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/conakrylabs/ticket-bot/internal/model"
)

const memoryShards = 32

// MemoryStore keeps sessions in a sharded in-process map. Sharding by
// key hash keeps lock contention local to a few conversations instead
// of a single global lock. Stale sessions are discarded lazily on
// read when a TTL is configured.
type MemoryStore struct {
	ttl    time.Duration
	shards [memoryShards]memoryShard
}

type memoryShard struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewMemoryStore returns a MemoryStore. ttl of zero means sessions
// never expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{ttl: ttl}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*model.Session)
	}
	return s
}

func (m *MemoryStore) shard(key Key) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return &m.shards[h.Sum32()%memoryShards]
}

// Get returns a copy of the stored session, or (nil, nil) when none
// exists or the stored one has expired.
func (m *MemoryStore) Get(ctx context.Context, key Key) (*model.Session, error) {
	sh := m.shard(key)
	sh.mu.RLock()
	s, ok := sh.sessions[key.String()]
	sh.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if expired(s, m.ttl, time.Now().UTC()) {
		sh.mu.Lock()
		delete(sh.sessions, key.String())
		sh.mu.Unlock()
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Set stores a copy of the session and stamps UpdatedAt.
func (m *MemoryStore) Set(ctx context.Context, key Key, s *model.Session) error {
	cp := *s
	cp.UpdatedAt = time.Now().UTC()
	s.UpdatedAt = cp.UpdatedAt
	sh := m.shard(key)
	sh.mu.Lock()
	sh.sessions[key.String()] = &cp
	sh.mu.Unlock()
	return nil
}

// Delete removes the session for the key, if any.
func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	sh := m.shard(key)
	sh.mu.Lock()
	delete(sh.sessions, key.String())
	sh.mu.Unlock()
	return nil
}
