package mru

import (
	"container/list"
	"strings"
	"sync"
)

// Cache is a thread-safe, bounded, duplicate-free record of recently
// touched keys, most-recent at the front.
type Cache struct {
	mu       sync.Mutex
	order    *list.List
	index    map[string]*list.Element
	capacity int
}

// NewCache constructs a Cache holding at most capacity keys.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		order:    list.New(),
		index:    make(map[string]*list.Element),
		capacity: capacity,
	}
}

// Insert moves key to the front, removing any existing occurrence first,
// and evicts the oldest entry if the cache is at capacity.
func (c *Cache) Insert(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.order.Remove(el)
		delete(c.index, key)
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(string))
		}
	}

	c.index[key] = c.order.PushFront(key)
}

// Remove deletes key from the cache if present.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.order.Remove(el)
		delete(c.index, key)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.index = make(map[string]*list.Element)
}

// List returns the entries front-to-back (most- to least-recently
// touched).
func (c *Cache) List() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(string))
	}
	return keys
}

// String renders the entries as a newline-delimited list, front-to-back —
// the exact payload kv_top returns to a client.
func (c *Cache) String() string {
	return strings.Join(c.List(), "\n")
}

// Len reports the current number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
