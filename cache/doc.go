// Package cache provides a generic, sharded LRU cache with an exact global
// capacity and an atomic clear.
//
//	c := cache.NewSharded[string, []byte](100, cache.StringHasher)
//	c.Set("key", data)
//	value, ok := c.Get("key")
//
// # Consistency
//
// Every operation takes a cache-wide gate in shared mode, and Clear and
// ClearWith take it exclusively. A Get that races with a Clear therefore
// either completes before the clear or misses; it never returns an entry
// the clear removed. SetIf evaluates its admission check under the same
// shared gate, which lets callers tie insertion to state that only changes
// inside ClearWith.
//
// # Thread Safety
//
// ShardedCache is safe for concurrent use and must not be copied after
// creation (it contains mutexes).
package cache
