package identitymap

import "container/list"

type lruEntry struct {
	key   Key
	value any
}

// lruCache evicts the least recently used entry once size is exceeded.
type lruCache struct {
	items map[Key]*list.Element
	order *list.List
	size  int
}

func newLruCache(size int) *lruCache {
	return &lruCache{
		items: make(map[Key]*list.Element, size),
		order: list.New(),
		size:  size,
	}
}

func (c *lruCache) add(key Key, value any) {
	if elem, ok := c.items[key]; ok {
		elem.Value = lruEntry{key: key, value: value}
		c.order.MoveToBack(elem)
		return
	}
	elem := c.order.PushBack(lruEntry{key: key, value: value})
	c.items[key] = elem
	if len(c.items) > c.size {
		c.evict()
	}
}

func (c *lruCache) get(key Key) (any, bool) {
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToBack(elem)
	return elem.Value.(lruEntry).value, true
}

func (c *lruCache) remove(key Key) {
	elem, ok := c.items[key]
	if !ok {
		return
	}
	delete(c.items, key)
	c.order.Remove(elem)
}

func (c *lruCache) has(key Key) bool {
	_, ok := c.items[key]
	return ok
}

func (c *lruCache) clear() {
	c.items = make(map[Key]*list.Element, c.size)
	c.order.Init()
}

func (c *lruCache) setSize(size int) {
	c.size = size
	for len(c.items) > c.size {
		c.evict()
	}
}

func (c *lruCache) evict() {
	front := c.order.Front()
	c.order.Remove(front)
	delete(c.items, front.Value.(lruEntry).key)
}
