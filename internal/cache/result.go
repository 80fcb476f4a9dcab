// Package cache holds the bounded response cache for repeated federated
// queries.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fedquery/fedquery/internal/federation"
)

type ResultCache struct {
	lru *expirable.LRU[string, federation.Response]
}

func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = 128
	}
	return &ResultCache{lru: expirable.NewLRU[string, federation.Response](size, nil, ttl)}
}

func (c *ResultCache) Get(key string) (federation.Response, bool) {
	return c.lru.Get(key)
}

func (c *ResultCache) Set(key string, value federation.Response) {
	c.lru.Add(key, value)
}
