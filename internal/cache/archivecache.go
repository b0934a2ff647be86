package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/s3fs-fuse/s3vfs-go/internal/archive"
)

// BuildIndexFunc builds a fresh archive.Index for bucket/key.
type BuildIndexFunc func(ctx context.Context, bucket, key string) (*archive.Index, error)

// ArchiveCache caches built archive.Index values keyed by bucket/key so
// descending back into an already-opened archive doesn't refetch and
// reparse its directory. A single-flight group collapses concurrent
// misses on the same key into one build, so two shell commands racing to
// open the same freshly-encountered archive share one BuildIndex call
// instead of both paying for it.
type ArchiveCache struct {
	lru   *lru.Cache[string, *archive.Index]
	group singleflight.Group

	hits      int64
	misses    int64
	evictions int64
}

// NewArchiveCache returns a cache holding up to maxEntries built indexes.
func NewArchiveCache(maxEntries int) (*ArchiveCache, error) {
	c := &ArchiveCache{}
	l, err := lru.New[string, *archive.Index](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("archive cache: %w", err)
	}
	c.lru = l
	return c, nil
}

func archiveCacheKey(bucket, key string) string {
	return bucket + "\x00" + key
}

// Get returns the cached index for bucket/key, if present.
func (c *ArchiveCache) Get(bucket, key string) (*archive.Index, bool) {
	idx, ok := c.lru.Get(archiveCacheKey(bucket, key))
	if ok {
		atomic.AddInt64(&c.hits, 1)
	} else {
		atomic.AddInt64(&c.misses, 1)
	}
	return idx, ok
}

// GetOrBuild returns the cached index for bucket/key, building it with
// build on a miss. Concurrent GetOrBuild calls for the same bucket/key
// share a single in-flight build.
func (c *ArchiveCache) GetOrBuild(ctx context.Context, bucket, key string, build BuildIndexFunc) (*archive.Index, error) {
	cacheKey := archiveCacheKey(bucket, key)
	if idx, ok := c.lru.Get(cacheKey); ok {
		atomic.AddInt64(&c.hits, 1)
		return idx, nil
	}
	atomic.AddInt64(&c.misses, 1)

	v, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		if idx, ok := c.lru.Get(cacheKey); ok {
			return idx, nil
		}
		idx, err := build(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		if c.lru.Add(cacheKey, idx) {
			atomic.AddInt64(&c.evictions, 1)
		}
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*archive.Index), nil
}

// Invalidate drops the cached index for bucket/key, if any.
func (c *ArchiveCache) Invalidate(bucket, key string) {
	c.lru.Remove(archiveCacheKey(bucket, key))
}

// Purge empties the cache.
func (c *ArchiveCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of indexes currently cached.
func (c *ArchiveCache) Len() int {
	return c.lru.Len()
}

// Hits returns the number of Get/GetOrBuild calls satisfied from the cache.
func (c *ArchiveCache) Hits() int64 { return atomic.LoadInt64(&c.hits) }

// Misses returns the number of Get/GetOrBuild calls that found nothing
// cached for their key.
func (c *ArchiveCache) Misses() int64 { return atomic.LoadInt64(&c.misses) }

// Evictions returns the number of entries the LRU has evicted to stay
// within its size bound.
func (c *ArchiveCache) Evictions() int64 { return atomic.LoadInt64(&c.evictions) }
