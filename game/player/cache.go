package player

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// idCache maps verified external ids to player ids. Players are never
// deleted, so entries only expire to bound memory.
type idCache struct {
	lru *expirable.LRU[int64, int64]
}

func newIDCache(size int, ttl time.Duration) *idCache {
	if size <= 0 {
		size = 10000
	}
	return &idCache{lru: expirable.NewLRU[int64, int64](size, nil, ttl)}
}

func (c *idCache) get(vkID int64) (int64, bool) { return c.lru.Get(vkID) }

func (c *idCache) put(vkID, playerID int64) { c.lru.Add(vkID, playerID) }
