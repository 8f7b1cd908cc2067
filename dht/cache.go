package dht

import (
	"github.com/Yiling-J/theine-go"
)

// cacheCapacity bounds the optional result cache to 1024 entries,
// LRU-evicted via theine-go.
const cacheCapacity = 1024

// resultCache wraps a theine-go cache of (key,value) strings. A
// resultCache with no underlying cache (cacheOn=false) is valid and
// every method becomes a no-op/miss.
type resultCache struct {
	c *theine.Cache[string, string]
}

func newResultCache(enabled bool) (*resultCache, error) {
	if !enabled {
		return &resultCache{}, nil
	}
	c, err := theine.NewBuilder[string, string](cacheCapacity).Build()
	if err != nil {
		return nil, err
	}
	return &resultCache{c: c}, nil
}

func (r *resultCache) get(key string) (string, bool) {
	if r.c == nil {
		return "", false
	}
	return r.c.Get(key)
}

func (r *resultCache) set(key, value string) {
	if r.c == nil {
		return
	}
	r.c.Set(key, value, 1)
}
