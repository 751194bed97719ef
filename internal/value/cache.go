/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package value

/*
Value Cache Overview:
=====================

The cache de-duplicates immutable values so that hot values (small
integers, sequence numbers, short names) are allocated once and shared.

Features:
=========

  - Keyed by (type tag, raw value)
  - Sharded by key hash; a shard lock never blocks other shards
  - LRU eviction per shard when the shard is full
  - Concurrent misses on one key run the factory once (singleflight) and
    the insert is compare-and-swap on the key, so at most one instance per
    key is ever handed out while it is cached
  - Eviction only affects future lookups; callers keep their references
*/

import (
	"container/list"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cached value.
type Key struct {
	Type Type
	Int  int64
	Str  string
}

// bytes encodes the key for hashing and singleflight grouping.
func (k Key) bytes() []byte {
	buf := make([]byte, 9, 9+len(k.Str))
	buf[0] = byte(k.Type)
	binary.BigEndian.PutUint64(buf[1:], uint64(k.Int))
	return append(buf, k.Str...)
}

type cacheEntry struct {
	key   Key
	value Value
}

type shard struct {
	mu       sync.Mutex
	items    map[Key]*list.Element
	lru      *list.List
	capacity int
}

// insertIfAbsent stores v unless another instance already owns k, in which
// case the existing instance wins and is returned.
func (s *shard) insertIfAbsent(k Key, v Value) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[k]; ok {
		s.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, false
	}

	evicted := false
	for s.lru.Len() >= s.capacity {
		oldest := s.lru.Back()
		if oldest == nil {
			break
		}
		s.lru.Remove(oldest)
		delete(s.items, oldest.Value.(*cacheEntry).key)
		evicted = true
	}
	s.items[k] = s.lru.PushFront(&cacheEntry{key: k, value: v})
	return v, evicted
}

// Cache is a concurrency-safe, capacity-bounded value de-duplication table.
type Cache struct {
	shards   []*shard
	mask     uint64
	capacity atomic.Int64
	group    singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCache creates a cache holding up to capacity values spread across
// shardCount shards (rounded up to a power of two). A capacity of zero
// disables caching: every lookup builds a fresh instance.
func NewCache(capacity, shardCount int) *Cache {
	if shardCount < 1 {
		shardCount = 1
	}
	n := 1
	for n < shardCount {
		n <<= 1
	}

	c := &Cache{
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
	}
	c.capacity.Store(int64(capacity))
	for i := range c.shards {
		c.shards[i] = &shard{
			items:    make(map[Key]*list.Element),
			lru:      list.New(),
			capacity: c.perShard(capacity),
		}
	}
	return c
}

func (c *Cache) perShard(capacity int) int {
	n := capacity / len(c.shards)
	if n < 1 {
		n = 1
	}
	return n
}

// Resize changes the capacity, evicting least recently used entries from
// shards that are now over their bound.
func (c *Cache) Resize(capacity int) {
	c.capacity.Store(int64(capacity))
	per := c.perShard(capacity)
	for _, s := range c.shards {
		s.mu.Lock()
		s.capacity = per
		for s.lru.Len() > per {
			oldest := s.lru.Back()
			s.lru.Remove(oldest)
			delete(s.items, oldest.Value.(*cacheEntry).key)
			c.evictions.Add(1)
		}
		s.mu.Unlock()
	}
}

// Internalize returns the cached instance for k, building it with factory
// on a miss.
func (c *Cache) Internalize(k Key, factory func() Value) Value {
	if c.capacity.Load() <= 0 {
		c.misses.Add(1)
		return factory()
	}

	kb := k.bytes()
	s := c.shards[xxhash.Sum64(kb)&c.mask]

	s.mu.Lock()
	if elem, ok := s.items[k]; ok {
		s.lru.MoveToFront(elem)
		v := elem.Value.(*cacheEntry).value
		s.mu.Unlock()
		c.hits.Add(1)
		return v
	}
	s.mu.Unlock()

	c.misses.Add(1)
	v, _, _ := c.group.Do(string(kb), func() (any, error) {
		v, evicted := s.insertIfAbsent(k, factory())
		if evicted {
			c.evictions.Add(1)
		}
		return v, nil
	})
	return v.(Value)
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Capacity  int
	HitRate   float64
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	entries := 0
	for _, s := range c.shards {
		s.mu.Lock()
		entries += s.lru.Len()
		s.mu.Unlock()
	}

	hits, misses := c.hits.Load(), c.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		Entries:   entries,
		Capacity:  int(c.capacity.Load()),
		HitRate:   rate,
	}
}

// Clear drops every cached entry. Outstanding values stay valid.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[Key]*list.Element)
		s.lru.Init()
		s.mu.Unlock()
	}
}

var defaultCache atomic.Pointer[Cache]

func init() {
	defaultCache.Store(NewCache(4096, 16))
}

// DefaultCache returns the process-wide cache used by the value factories.
func DefaultCache() *Cache {
	return defaultCache.Load()
}

// SetDefaultCache replaces the process-wide cache. Values handed out by the
// previous cache remain valid; they are simply no longer shared with new
// lookups.
func SetDefaultCache(c *Cache) {
	defaultCache.Store(c)
}
