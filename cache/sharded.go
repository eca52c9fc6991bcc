package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Default configuration constants.
const (
	// DefaultShardCount is the maximum number of shards.
	// Must be a power of 2 for fast modulo via bitwise AND.
	DefaultShardCount = 16

	// DefaultCapacity is the default total number of entries.
	DefaultCapacity = 100
)

// Hasher is a function that computes a hash for a key.
// Used by ShardedCache for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher returns the key itself as the hash (identity hash).
func Uint64Hasher(u uint64) uint64 {
	return u
}

// Stats holds cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	HitRate   float64
	Evictions uint64
	Rejected  uint64 // inserts refused by a SetIf admission check
}

// ShardedCache is a thread-safe, sharded LRU cache.
//
// The total number of entries never exceeds the capacity given to
// NewSharded: the capacity is split across shards so the per-shard limits
// sum to it exactly, and each shard evicts its least recently used entry
// to make room. A Set therefore never fails for lack of space.
type ShardedCache[K comparable, V any] struct {
	// gate serializes Clear against every other operation.
	gate sync.RWMutex

	shards   []*shardedCacheShard[K, V]
	mask     uint64
	hasher   Hasher[K]
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	rejected  atomic.Uint64
}

// shardedCacheShard is a single shard of the cache.
type shardedCacheShard[K comparable, V any] struct {
	mu       sync.RWMutex
	capacity int
	entries  map[K]*shardedCacheEntry[K, V]
	lru      *lruList[K]
}

// shardedCacheEntry holds a cached value with its LRU node.
type shardedCacheEntry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

// NewSharded creates a sharded cache holding at most capacity entries.
// If capacity <= 0, DefaultCapacity is used.
//
// The number of shards is the largest power of two not above
// DefaultShardCount or capacity, so every shard can hold at least one entry.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K]) *ShardedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	n := 1
	for n*2 <= DefaultShardCount && n*2 <= capacity {
		n *= 2
	}

	c := &ShardedCache[K, V]{
		shards:   make([]*shardedCacheShard[K, V], n),
		mask:     uint64(n - 1),
		hasher:   hasher,
		capacity: capacity,
	}

	base, extra := capacity/n, capacity%n
	for i := range c.shards {
		shardCap := base
		if i < extra {
			shardCap++
		}
		c.shards[i] = &shardedCacheShard[K, V]{
			capacity: shardCap,
			entries:  make(map[K]*shardedCacheEntry[K, V]),
			lru:      newLRUList[K](),
		}
	}

	return c
}

// getShard returns the shard for a given key.
func (c *ShardedCache[K, V]) getShard(key K) *shardedCacheShard[K, V] {
	return c.shards[c.hasher(key)&c.mask]
}

// Get retrieves a cached value by key.
// Returns (value, true) if found, (zero, false) otherwise.
// On a hit the entry becomes the most recently used of its shard.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	shard := c.getShard(key)

	// Fast path: read lock to check existence
	shard.mu.RLock()
	_, exists := shard.entries[key]
	shard.mu.RUnlock()

	if !exists {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	// Slow path: write lock for LRU update
	shard.mu.Lock()
	entry, ok := shard.entries[key]
	if !ok {
		shard.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	shard.lru.MoveToFront(entry.node)
	value := entry.value
	shard.mu.Unlock()

	c.hits.Add(1)
	return value, true
}

// Set stores a value in the cache, evicting the least recently used entry
// of the key's shard if the shard is full.
//
// The value is stored as-is (not copied). Callers should not modify it
// after caching.
func (c *ShardedCache[K, V]) Set(key K, value V) {
	c.gate.RLock()
	defer c.gate.RUnlock()
	c.set(key, value)
}

// SetIf stores a value only if admit returns true, and reports whether it
// did. admit runs while the cache gate is held shared, so it cannot
// interleave with ClearWith.
func (c *ShardedCache[K, V]) SetIf(key K, value V, admit func() bool) bool {
	c.gate.RLock()
	defer c.gate.RUnlock()

	if !admit() {
		c.rejected.Add(1)
		return false
	}
	c.set(key, value)
	return true
}

func (c *ShardedCache[K, V]) set(key K, value V) {
	shard := c.getShard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.entries[key]; ok {
		existing.value = value
		shard.lru.MoveToFront(existing.node)
		return
	}

	for shard.lru.Len() >= shard.capacity {
		oldest, ok := shard.lru.RemoveOldest()
		if !ok {
			break
		}
		delete(shard.entries, oldest)
		c.evictions.Add(1)
	}

	node := shard.lru.PushFront(key)
	shard.entries[key] = &shardedCacheEntry[K, V]{
		value: value,
		node:  node,
	}
}

// Delete removes an entry from the cache.
// Returns true if the entry was found and removed.
func (c *ShardedCache[K, V]) Delete(key K) bool {
	c.gate.RLock()
	defer c.gate.RUnlock()

	shard := c.getShard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		return false
	}

	shard.lru.Remove(entry.node)
	delete(shard.entries, key)
	return true
}

// Clear removes all entries from the cache atomically.
func (c *ShardedCache[K, V]) Clear() {
	c.ClearWith(nil)
}

// ClearWith removes all entries and then calls fn, all while holding the
// cache gate exclusively. No other operation observes the cache between
// the clear and fn. fn may be nil.
func (c *ShardedCache[K, V]) ClearWith(fn func()) {
	c.ClearIf(nil, fn)
}

// ClearIf is ClearWith guarded by pred: with the gate held exclusively,
// pred runs first and the cache is cleared, and fn called, only if it
// returns true. A nil pred always clears. ClearIf reports whether the
// cache was cleared.
func (c *ShardedCache[K, V]) ClearIf(pred func() bool, fn func()) bool {
	c.gate.Lock()
	defer c.gate.Unlock()

	if pred != nil && !pred() {
		return false
	}

	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.entries = make(map[K]*shardedCacheEntry[K, V])
		shard.lru.Clear()
		shard.mu.Unlock()
	}

	if fn != nil {
		fn()
	}
	return true
}

// Len returns the total number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	c.gate.RLock()
	defer c.gate.RUnlock()

	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// Capacity returns the maximum total number of entries.
func (c *ShardedCache[K, V]) Capacity() int {
	return c.capacity
}

// ShardCount returns the number of shards.
func (c *ShardedCache[K, V]) ShardCount() int {
	return len(c.shards)
}

// Stats returns current cache statistics.
func (c *ShardedCache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: c.evictions.Load(),
		Rejected:  c.rejected.Load(),
	}
}

// ResetStats resets all statistics counters to zero.
func (c *ShardedCache[K, V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.rejected.Store(0)
}
