package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
)

// lruCache is a size-bounded cache with per-item TTL.
type lruCache[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[K]*list.Element
	lru     *list.List
}

type cacheItem[K comparable, V any] struct {
	key       K
	data      V
	expiresAt time.Time
}

func newLRUCache[K comparable, V any](maxSize int, ttl time.Duration) *lruCache[K, V] {
	return &lruCache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[K]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}
	item := elem.Value.(*cacheItem[K, V])
	if c.ttl > 0 && time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[K, V]) Set(key K, data V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[K, V]{key: key, data: data, expiresAt: time.Now().Add(c.ttl)}
	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}
	c.items[key] = c.lru.PushFront(item)

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *lruCache[K, V]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[K, V])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// extractionMemo caches document extraction by content hash. Identical
// bytes always extract to identical fields, so entries never go stale; the
// TTL only bounds memory held by documents that were deleted.
type extractionMemo struct {
	cache *lruCache[uint64, entity.Fields]
}

// newExtractionMemo returns nil when size is not positive; a nil memo
// never hits.
func newExtractionMemo(size int, ttl time.Duration) *extractionMemo {
	if size <= 0 {
		return nil
	}
	return &extractionMemo{cache: newLRUCache[uint64, entity.Fields](size, ttl)}
}

func (m *extractionMemo) lookup(content []byte) (entity.Fields, uint64, bool) {
	sum := xxhash.Sum64(content)
	if m == nil {
		return entity.Fields{}, sum, false
	}
	f, ok := m.cache.Get(sum)
	return f, sum, ok
}

func (m *extractionMemo) store(sum uint64, f entity.Fields) {
	if m != nil {
		m.cache.Set(sum, f)
	}
}
