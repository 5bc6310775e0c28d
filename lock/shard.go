package lock

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
	"github.com/zeebo/xxh3"
)

// KeyHasher computes the shard-dispatch hash for a key. NewLockManager
// falls back to an xxh3-backed default when the caller supplies none.
type KeyHasher[K comparable] func(key K) uint64

func defaultHasher[K comparable]() KeyHasher[K] {
	return func(k K) uint64 {
		// xxh3 returns an unsigned hash, so no masking is needed before the
		// modulo dispatch in shardFor.
		return xxh3.HashString(fmt.Sprintf("%v", k))
	}
}

// shardT is one of the manager's independent key->Lock partitions. It
// carries its own monitor; Lock itself carries none, so all access to a
// Lock is serialized through the shard that holds it.
type shardT[K comparable] struct {
	mu    deadlock.Mutex
	locks map[K]*Lock[K]
}

func newShard[K comparable]() *shardT[K] {
	return &shardT[K]{locks: make(map[K]*Lock[K])}
}

func (s *shardT[K]) lock() {
	s.mu.Lock()
	disciplineAcquire(monitorShard)
}

func (s *shardT[K]) unlock() {
	disciplineRelease(monitorShard)
	s.mu.Unlock()
}

// getOrCreate returns the Lock for key, lazily creating it. Caller must
// hold the shard monitor.
func (s *shardT[K]) getOrCreate(key K) *Lock[K] {
	st, ok := s.locks[key]
	if !ok {
		st = &Lock[K]{key: key}
		s.locks[key] = st
	}
	return st
}

// cleanupIfEmpty removes key's Lock once it has no owners and no waiters.
// Caller must hold the shard monitor.
func (s *shardT[K]) cleanupIfEmpty(key K) {
	if st, ok := s.locks[key]; ok && st.Empty() {
		delete(s.locks, key)
	}
}
