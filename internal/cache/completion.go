package cache

import (
	"context"
	"fmt"
	"time"
)

// DefaultCompletionTTL bounds how long a cached directory listing is
// offered to tab completion / repeated ls before it's considered stale.
const DefaultCompletionTTL = 30 * time.Second

// DefaultFetchTimeout bounds how long FetchEntries will wait for a fetch
// to complete before giving up and returning an error, so a wedged or slow
// backend never hangs the shell's line editor.
const DefaultFetchTimeout = 5 * time.Second

// FetchFunc resolves the current listing for path from whatever backend is
// authoritative for it (S3 bucket/prefix listing, or an archive index).
type FetchFunc func(ctx context.Context, path string) ([]CompletionEntry, error)

// CompletionCache serves cached directory listings for shell tab completion
// and repeated navigation, falling back to fetch on a miss. Unlike a plain
// cache lookup, the fetch may run on a different goroutine than the caller
// (the line editor calling in from a readline callback, for instance), so
// FetchEntries bridges the two with a bounded wait: a fetch that outlives
// fetchTimeout is abandoned from the caller's perspective, though the
// goroutine underneath keeps running to completion and (on success) still
// populates the cache for the next attempt.
type CompletionCache struct {
	tree          *CacheTree
	fetch         FetchFunc
	fetchTimeout  time.Duration
}

// NewCompletionCache builds a cache that calls fetch on a miss, capping
// each individual fetch at fetchTimeout. A zero fetchTimeout uses
// DefaultFetchTimeout.
func NewCompletionCache(fetch FetchFunc, ttl, fetchTimeout time.Duration) *CompletionCache {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &CompletionCache{
		tree:         NewCacheTree(0, ttl),
		fetch:        fetch,
		fetchTimeout: fetchTimeout,
	}
}

// SetFetch installs fetch as the cache's miss handler, for callers that
// need to build their fetch function from a resolver constructed after the
// cache itself (the resolver needs the cache manager's archive cache, so
// the completion cache's fetch can't always be supplied at construction).
func (c *CompletionCache) SetFetch(fetch FetchFunc) {
	c.fetch = fetch
}

// GetEntries returns the cached listing for path without triggering a
// fetch on a miss.
func (c *CompletionCache) GetEntries(path string) ([]CompletionEntry, bool) {
	return c.tree.Get(path)
}

// SetEntries stores a listing obtained by the caller through some other
// path (e.g. a completed ls), so a later completion attempt can reuse it.
func (c *CompletionCache) SetEntries(path string, entries []CompletionEntry) {
	c.tree.Set(path, entries)
}

// Invalidate drops the cached listing for path, forcing the next
// FetchEntries call to refetch.
func (c *CompletionCache) Invalidate(path string) {
	c.tree.Delete(path)
}

// FetchEntries returns the cached listing for path, or runs fetch and
// caches the result on a miss. The fetch is run on its own goroutine and
// bridged back through a channel so a caller on a different goroutine (or
// one that can't itself block indefinitely, like a readline completion
// callback) never waits longer than fetchTimeout; ctx cancellation is
// honored on top of that bound.
func (c *CompletionCache) FetchEntries(ctx context.Context, path string) ([]CompletionEntry, error) {
	if entries, ok := c.tree.Get(path); ok {
		return entries, nil
	}
	if c.fetch == nil {
		return nil, fmt.Errorf("completion cache: no fetch function configured")
	}

	type result struct {
		entries []CompletionEntry
		err     error
	}
	ch := make(chan result, 1)

	go func() {
		entries, err := c.fetch(ctx, path)
		if err == nil {
			c.tree.Set(path, entries)
		}
		ch <- result{entries: entries, err: err}
	}()

	timer := time.NewTimer(c.fetchTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.entries, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("completion cache: fetch for %q timed out after %s", path, c.fetchTimeout)
	}
}

// Clear empties the cache, e.g. after a provider switch.
func (c *CompletionCache) Clear() {
	c.tree.Clear()
}
