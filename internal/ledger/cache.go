package ledger

import "container/list"

// attributionCache remembers which user authored a message so reactions can
// be credited to the recipient. It is a size-capped LRU shared across chats:
// a hit refreshes the entry, inserts past capacity evict the oldest one.
// Callers hold the Store mutex.
type attributionCache struct {
	capacity int
	ll       *list.List
	items    map[cacheKey]*list.Element
}

type cacheKey struct {
	chat      string
	messageID string
}

type cacheEntry struct {
	key    cacheKey
	userID string
}

const defaultCacheSize = 8192

func newAttributionCache(capacity int) *attributionCache {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	return &attributionCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[cacheKey]*list.Element),
	}
}

func (c *attributionCache) put(chat, messageID, userID string) {
	key := cacheKey{chat: chat, messageID: messageID}
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).userID = userID
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, userID: userID})
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *attributionCache) get(chat, messageID string) (string, bool) {
	el, ok := c.items[cacheKey{chat: chat, messageID: messageID}]
	if !ok {
		return "", false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).userID, true
}

func (c *attributionCache) len() int { return c.ll.Len() }
