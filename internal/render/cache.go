package render

import (
	"container/list"
	"sync"
)

type cacheKey struct {
	width int
	text  string
}

type cacheItem struct {
	key   cacheKey
	value string
}

// renderCache 固定容量的 LRU，窗口大小变化时不必重新解析同一段叙述
type renderCache struct {
	mu       sync.Mutex
	capacity int
	items    map[cacheKey]*list.Element
	order    *list.List
}

func newRenderCache(capacity int) *renderCache {
	if capacity <= 0 {
		capacity = 32
	}
	return &renderCache{
		capacity: capacity,
		items:    make(map[cacheKey]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *renderCache) get(key cacheKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(cacheItem).value, true
	}
	return "", false
}

func (c *renderCache) add(key cacheKey, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value = cacheItem{key: key, value: value}
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(cacheItem{key: key, value: value})

	if c.order.Len() > c.capacity {
		if tail := c.order.Back(); tail != nil {
			delete(c.items, tail.Value.(cacheItem).key)
			c.order.Remove(tail)
		}
	}
}

func (c *renderCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
