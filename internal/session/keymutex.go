package session

import (
	"hash/fnv"
	"sync"
)

// KeyMutex serializes processing per conversation key. The state
// machine is logically single-threaded per (channel, user): at most
// one inbound event for a given user is processed at a time, so the
// machine itself needs no internal locking. A fixed pool of mutexes
// sharded by key hash bounds memory while keeping unrelated
// conversations concurrent.
type KeyMutex struct {
	shards [64]sync.Mutex
}

// NewKeyMutex returns a KeyMutex ready for use.
func NewKeyMutex() *KeyMutex { return &KeyMutex{} }

func (m *KeyMutex) index(key Key) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return h.Sum32() % uint32(len(m.shards))
}

// Lock acquires the mutex for the key's shard.
func (m *KeyMutex) Lock(key Key) { m.shards[m.index(key)].Lock() }

// Unlock releases the mutex for the key's shard.
func (m *KeyMutex) Unlock(key Key) { m.shards[m.index(key)].Unlock() }
