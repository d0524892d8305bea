// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package sqlprep

import (
	"fmt"
	"sync"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlprep/dialect"
)

type CacheSuite struct{}

var _ = Suite(&CacheSuite{})

func (s *CacheSuite) TestPreparedTemplateReuse(c *C) {
	r := New(dialect.SQLite, nil)

	first, err := r.Prepare("SELECT * FROM person WHERE id = ?")
	c.Assert(err, IsNil)
	c.Assert(r.cache.len(), Equals, 1)

	// A second prepare of the same template is a cache hit and returns the
	// very same Statement.
	second, err := r.Prepare("SELECT * FROM person WHERE id = ?")
	c.Assert(err, IsNil)
	c.Assert(second, Equals, first)
	c.Assert(r.cache.len(), Equals, 1)

	_, err = r.Prepare("SELECT * FROM address WHERE id = ?")
	c.Assert(err, IsNil)
	c.Assert(r.cache.len(), Equals, 2)
}

func (s *CacheSuite) TestEviction(c *C) {
	r := New(dialect.SQLite, nil, Config{CacheSize: 2})

	first, err := r.Prepare("SELECT 1")
	c.Assert(err, IsNil)
	_, err = r.Prepare("SELECT 2")
	c.Assert(err, IsNil)
	_, err = r.Prepare("SELECT 3")
	c.Assert(err, IsNil)
	c.Assert(r.cache.len(), Equals, 2)

	// "SELECT 1" was the least recently used template, so it was the one
	// evicted and preparing it again yields a fresh Statement.
	again, err := r.Prepare("SELECT 1")
	c.Assert(err, IsNil)
	c.Assert(again, Not(Equals), first)
}

func (s *CacheSuite) TestLookupRefreshesRecency(c *C) {
	r := New(dialect.SQLite, nil, Config{CacheSize: 2})

	first, err := r.Prepare("SELECT 1")
	c.Assert(err, IsNil)
	_, err = r.Prepare("SELECT 2")
	c.Assert(err, IsNil)

	// Touch "SELECT 1" so that "SELECT 2" becomes the eviction candidate.
	_, err = r.Prepare("SELECT 1")
	c.Assert(err, IsNil)
	_, err = r.Prepare("SELECT 3")
	c.Assert(err, IsNil)

	again, err := r.Prepare("SELECT 1")
	c.Assert(err, IsNil)
	c.Assert(again, Equals, first)
}

func (s *CacheSuite) TestDisabledCache(c *C) {
	r := New(dialect.SQLite, nil, Config{CacheSize: -1})

	first, err := r.Prepare("SELECT * FROM person WHERE id = ?")
	c.Assert(err, IsNil)
	second, err := r.Prepare("SELECT * FROM person WHERE id = ?")
	c.Assert(err, IsNil)
	c.Assert(first, Not(Equals), second)
	c.Assert(r.cache.len(), Equals, 0)

	// Resolution itself does not depend on the cache.
	out, err := r.ResolveStatement(first, S{30})
	c.Assert(err, IsNil)
	c.Assert(out, Equals, "SELECT * FROM person WHERE id = 30")
}

func (s *CacheSuite) TestParseFailuresNotCached(c *C) {
	r := New(dialect.SQLite, nil)

	_, err := r.Prepare("SELECT 'unterminated")
	c.Assert(err, NotNil)
	c.Assert(r.cache.len(), Equals, 0)

	_, err = r.Prepare("SELECT 'unterminated")
	c.Assert(err, NotNil)
	c.Assert(r.cache.len(), Equals, 0)
}

func (s *CacheSuite) TestDefaultAndDisabledSizes(c *C) {
	c.Assert(newParseCache(0).lru, NotNil)
	c.Assert(newParseCache(16).lru, NotNil)
	c.Assert(newParseCache(-1).lru, IsNil)
}

func (s *CacheSuite) TestConcurrentPrepare(c *C) {
	r := New(dialect.SQLite, nil)

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				template := fmt.Sprintf("SELECT * FROM person WHERE id = ? AND shard = %d", j%4)
				if _, err := r.Prepare(template); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		c.Assert(err, IsNil)
	}
	c.Assert(r.cache.len(), Equals, 4)
}
