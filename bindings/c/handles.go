package main

import (
	"sync"
	"sync/atomic"
)

const numShards = 64

// shardedMap is a lock-striped map. Keys pick their shard through the
// table's hash.
type shardedMap[K comparable, V any] struct {
	hash   func(K) uint64
	shards [numShards]struct {
		mu sync.RWMutex
		m  map[K]V
	}
}

func newShardedMap[K comparable, V any](hash func(K) uint64) *shardedMap[K, V] {
	t := &shardedMap[K, V]{hash: hash}
	for i := range t.shards {
		t.shards[i].m = make(map[K]V)
	}
	return t
}

func (t *shardedMap[K, V]) store(k K, v V) {
	s := &t.shards[t.hash(k)%numShards]
	s.mu.Lock()
	s.m[k] = v
	s.mu.Unlock()
}

func (t *shardedMap[K, V]) load(k K) (V, bool) {
	s := &t.shards[t.hash(k)%numShards]
	s.mu.RLock()
	v, ok := s.m[k]
	s.mu.RUnlock()
	return v, ok
}

// take removes k and returns what it held.
func (t *shardedMap[K, V]) take(k K) (V, bool) {
	s := &t.shards[t.hash(k)%numShards]
	s.mu.Lock()
	v, ok := s.m[k]
	delete(s.m, k)
	s.mu.Unlock()
	return v, ok
}

var (
	// handles backs LWMessage, LWValidator and LWDataHandler. 0 is never
	// issued.
	handles    = newShardedMap[uint64, any](func(h uint64) uint64 { return h })
	nextHandle atomic.Uint64

	// borrowed holds records created without copying. Records are word
	// aligned, so the low bits are dropped before sharding.
	borrowed = newShardedMap[uintptr, struct{}](func(p uintptr) uint64 { return uint64(p >> 4) })
)

func newHandle(v any) uint64 {
	h := nextHandle.Add(1)
	handles.store(h, v)
	return h
}

// getHandle returns the value behind h, or nil for unknown handles.
func getHandle(h uint64) any {
	if h == 0 {
		return nil
	}
	v, _ := handles.load(h)
	return v
}

// getHandleTyped returns the value behind h when it is a T.
func getHandleTyped[T any](h uint64) (T, bool) {
	typed, ok := getHandle(h).(T)
	return typed, ok
}

// freeHandle invalidates h and returns the value it held.
func freeHandle(h uint64) any {
	if h == 0 {
		return nil
	}
	v, _ := handles.take(h)
	return v
}

func freeHandleTyped[T any](h uint64) (T, bool) {
	typed, ok := freeHandle(h).(T)
	return typed, ok
}

// markBorrowed records that the record at p aliases a caller buffer.
func markBorrowed(p uintptr) {
	borrowed.store(p, struct{}{})
}

// takeBorrowed forgets p and reports whether its payload was borrowed.
func takeBorrowed(p uintptr) bool {
	_, ok := borrowed.take(p)
	return ok
}
