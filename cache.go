package sqlprep

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheSize bounds the number of parsed templates retained per
// Resolver when no size is configured.
const defaultCacheSize = 1024

// parseCache memoizes Prepare results keyed by template text. Scanning is a
// pure function of the template, so a cached Statement is indistinguishable
// from a freshly parsed one. The cache is bounded and evicts the least
// recently used template.
type parseCache struct {
	lru *lru.Cache[string, *Statement]
}

// newParseCache builds a cache of the given size. Size zero selects the
// default, a negative size disables caching.
func newParseCache(size int) *parseCache {
	if size < 0 {
		return &parseCache{}
	}
	if size == 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *Statement](size)
	if err != nil {
		// lru.New fails only on a non-positive size.
		panic(err)
	}
	return &parseCache{lru: cache}
}

// prepare returns the cached Statement for the template, parsing and caching
// it on a miss. Parse failures are not cached.
func (c *parseCache) prepare(template string) (*Statement, error) {
	if c.lru == nil {
		return Prepare(template)
	}
	if s, ok := c.lru.Get(template); ok {
		return s, nil
	}
	s, err := Prepare(template)
	if err != nil {
		return nil, err
	}
	c.lru.Add(template, s)
	return s, nil
}

// len reports the number of cached templates.
func (c *parseCache) len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
