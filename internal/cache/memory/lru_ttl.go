package memory

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry[K, V]) expired(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return now.Sub(e.createdAt) > e.ttl
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits             uint64        `json:"hits"`
	Misses           uint64        `json:"misses"`
	Sets             uint64        `json:"sets"`
	Evictions        uint64        `json:"evictions"`
	ExpiredEvictions uint64        `json:"expired_evictions"`
	Size             int           `json:"size"`
	MaxEntries       int           `json:"max_items"`
	DefaultTTL       time.Duration `json:"-"`
}

// LRUTTL is a threadsafe LRU cache with per-entry TTL and hit/miss/eviction
// accounting. Expiry is lazy: all expired entries are reaped at the start of
// each Get, and an entry past its TTL is never returned. A TTL <= 0 means
// the entry never expires. Capacity overflow evicts the entry least
// recently inserted-or-accessed first.
type LRUTTL[K comparable, V any] struct {
	mu         sync.Mutex
	ll         *list.List
	items      map[K]*list.Element
	maxEntries int
	defaultTTL time.Duration

	hits             uint64
	misses           uint64
	sets             uint64
	evictions        uint64
	expiredEvictions uint64
}

func NewLRUTTL[K comparable, V any](maxEntries int, defaultTTL time.Duration) *LRUTTL[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &LRUTTL[K, V]{
		ll:         list.New(),
		items:      make(map[K]*list.Element),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
	}
}

// Get reaps expired entries, then looks up key. A hit refreshes recency.
func (c *LRUTTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked(time.Now())
	ele, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	c.hits++
	c.ll.MoveToFront(ele)
	return ele.Value.(*entry[K, V]).value, true
}

// Set inserts or overwrites key with the default TTL.
func (c *LRUTTL[K, V]) Set(key K, value V) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL inserts or overwrites key with an explicit TTL (<= 0: no expiry),
// refreshes recency, then evicts least-recently-touched entries while over
// capacity.
func (c *LRUTTL[K, V]) SetTTL(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.sets++
	if ele, ok := c.items[key]; ok {
		ent := ele.Value.(*entry[K, V])
		ent.value = value
		ent.createdAt = now
		ent.ttl = ttl
		c.ll.MoveToFront(ele)
		return
	}
	ele := c.ll.PushFront(&entry[K, V]{key: key, value: value, createdAt: now, ttl: ttl})
	c.items[key] = ele
	for c.ll.Len() > c.maxEntries {
		c.removeElement(c.ll.Back())
		c.evictions++
	}
}

func (c *LRUTTL[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.items[key]; ok {
		c.removeElement(ele)
	}
}

func (c *LRUTTL[K, V]) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll = list.New()
	c.items = make(map[K]*list.Element)
}

func (c *LRUTTL[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRUTTL[K, V]) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:             c.hits,
		Misses:           c.misses,
		Sets:             c.sets,
		Evictions:        c.evictions,
		ExpiredEvictions: c.expiredEvictions,
		Size:             c.ll.Len(),
		MaxEntries:       c.maxEntries,
		DefaultTTL:       c.defaultTTL,
	}
}

func (c *LRUTTL[K, V]) reapLocked(now time.Time) {
	for ele := c.ll.Back(); ele != nil; {
		prev := ele.Prev()
		if ele.Value.(*entry[K, V]).expired(now) {
			c.removeElement(ele)
			c.expiredEvictions++
		}
		ele = prev
	}
}

func (c *LRUTTL[K, V]) removeElement(ele *list.Element) {
	if ele == nil {
		return
	}
	c.ll.Remove(ele)
	delete(c.items, ele.Value.(*entry[K, V]).key)
}
