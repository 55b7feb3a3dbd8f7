package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a thread-safe fixed-capacity cache with optional TTL. A zero ttl
// means entries never expire. OnEvict fires for capacity evictions and
// explicit removals, not for expirations observed during Get.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[K]*list.Element
	order    *list.List
	onEvict  func(K, V)
}

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity <= 0 {
		capacity = 128
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// OnEvict registers a callback invoked when an entry leaves the cache.
func (c *LRU[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ent := elem.Value.(*lruEntry[K, V])
	if c.ttl > 0 && time.Now().After(ent.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return ent.value, true
}

func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		ent := elem.Value.(*lruEntry[K, V])
		ent.value = value
		ent.expiresAt = expiresAt
		return
	}

	elem := c.order.PushFront(&lruEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

// GetOrCreate returns the cached value for key, calling create under the
// lock to fill a miss. Concurrent callers see a single created value.
func (c *LRU[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*lruEntry[K, V])
		if c.ttl <= 0 || time.Now().Before(ent.expiresAt) {
			c.order.MoveToFront(elem)
			ent.expiresAt = time.Now().Add(c.ttl)
			return ent.value
		}
		c.order.Remove(elem)
		delete(c.items, key)
	}

	value := create()
	elem := c.order.PushFront(&lruEntry[K, V]{key: key, value: value, expiresAt: time.Now().Add(c.ttl)})
	c.items[key] = elem
	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
	return value
}

// Remove deletes key from the cache, firing OnEvict if it was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	ent := elem.Value.(*lruEntry[K, V])
	c.order.Remove(elem)
	delete(c.items, key)
	if c.onEvict != nil {
		c.onEvict(ent.key, ent.value)
	}
	return true
}

func (c *LRU[K, V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	ent := oldest.Value.(*lruEntry[K, V])
	c.order.Remove(oldest)
	delete(c.items, ent.key)
	if c.onEvict != nil {
		c.onEvict(ent.key, ent.value)
	}
}

func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
}
