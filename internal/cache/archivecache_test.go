package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/s3fs-fuse/s3vfs-go/internal/archive"
)

func TestArchiveCacheGetOrBuildCachesResult(t *testing.T) {
	c, err := NewArchiveCache(10)
	if err != nil {
		t.Fatalf("NewArchiveCache: %v", err)
	}

	var calls int32
	build := func(ctx context.Context, bucket, key string) (*archive.Index, error) {
		atomic.AddInt32(&calls, 1)
		idx := archive.NewIndex()
		idx.Add(archive.Entry{Path: "a.txt"})
		return idx, nil
	}

	idx1, err := c.GetOrBuild(context.Background(), "bucket", "data.zip", build)
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	idx2, err := c.GetOrBuild(context.Background(), "bucket", "data.zip", build)
	if err != nil {
		t.Fatalf("GetOrBuild (cached): %v", err)
	}
	if idx1 != idx2 {
		t.Error("expected the same cached *archive.Index on both calls")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("build called %d times, want 1", got)
	}
}

func TestArchiveCacheSingleFlightDeduplicatesConcurrentBuilds(t *testing.T) {
	c, err := NewArchiveCache(10)
	if err != nil {
		t.Fatalf("NewArchiveCache: %v", err)
	}

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	build := func(ctx context.Context, bucket, key string) (*archive.Index, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return archive.NewIndex(), nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.GetOrBuild(context.Background(), "bucket", "data.zip", build)
	}()
	go func() {
		defer wg.Done()
		<-started
		c.GetOrBuild(context.Background(), "bucket", "data.zip", build)
	}()

	<-started
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("build called %d times, want exactly 1 for concurrent misses", got)
	}
}

func TestArchiveCacheBuildErrorNotCached(t *testing.T) {
	c, err := NewArchiveCache(10)
	if err != nil {
		t.Fatalf("NewArchiveCache: %v", err)
	}
	wantErr := errors.New("range read failed")

	var calls int32
	build := func(ctx context.Context, bucket, key string) (*archive.Index, error) {
		atomic.AddInt32(&calls, 1)
		return nil, wantErr
	}

	_, err = c.GetOrBuild(context.Background(), "bucket", "data.zip", build)
	if !errors.Is(err, wantErr) {
		t.Fatalf("got err %v, want %v", err, wantErr)
	}
	if _, ok := c.Get("bucket", "data.zip"); ok {
		t.Error("expected failed build not to populate the cache")
	}

	build2 := func(ctx context.Context, bucket, key string) (*archive.Index, error) {
		atomic.AddInt32(&calls, 1)
		return archive.NewIndex(), nil
	}
	if _, err := c.GetOrBuild(context.Background(), "bucket", "data.zip", build2); err != nil {
		t.Fatalf("GetOrBuild after prior failure: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected a retry after failure, calls=%d", got)
	}
}

func TestArchiveCacheCountersHitsAndMisses(t *testing.T) {
	c, err := NewArchiveCache(10)
	if err != nil {
		t.Fatalf("NewArchiveCache: %v", err)
	}
	build := func(ctx context.Context, bucket, key string) (*archive.Index, error) {
		return archive.NewIndex(), nil
	}

	// First GetOrBuild for a key is a miss; the second is a hit.
	if _, err := c.GetOrBuild(context.Background(), "bucket", "a.zip", build); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if _, err := c.GetOrBuild(context.Background(), "bucket", "a.zip", build); err != nil {
		t.Fatalf("GetOrBuild (cached): %v", err)
	}
	if got := c.Misses(); got != 1 {
		t.Errorf("Misses() = %d, want 1", got)
	}
	if got := c.Hits(); got != 1 {
		t.Errorf("Hits() = %d, want 1", got)
	}

	if _, ok := c.Get("bucket", "a.zip"); !ok {
		t.Fatal("expected a.zip to be cached")
	}
	if _, ok := c.Get("bucket", "missing.zip"); ok {
		t.Fatal("expected missing.zip to miss")
	}
	if got := c.Hits(); got != 2 {
		t.Errorf("Hits() = %d, want 2", got)
	}
	if got := c.Misses(); got != 2 {
		t.Errorf("Misses() = %d, want 2", got)
	}
}

func TestArchiveCacheCountersEvictions(t *testing.T) {
	c, err := NewArchiveCache(1)
	if err != nil {
		t.Fatalf("NewArchiveCache: %v", err)
	}
	build := func(ctx context.Context, bucket, key string) (*archive.Index, error) {
		return archive.NewIndex(), nil
	}

	if _, err := c.GetOrBuild(context.Background(), "bucket", "a.zip", build); err != nil {
		t.Fatalf("GetOrBuild a.zip: %v", err)
	}
	if _, err := c.GetOrBuild(context.Background(), "bucket", "b.zip", build); err != nil {
		t.Fatalf("GetOrBuild b.zip: %v", err)
	}
	if got := c.Evictions(); got != 1 {
		t.Errorf("Evictions() = %d, want 1 after exceeding a size-1 cache", got)
	}
}

func TestArchiveCacheInvalidateAndPurge(t *testing.T) {
	c, err := NewArchiveCache(10)
	if err != nil {
		t.Fatalf("NewArchiveCache: %v", err)
	}
	build := func(ctx context.Context, bucket, key string) (*archive.Index, error) {
		return archive.NewIndex(), nil
	}

	c.GetOrBuild(context.Background(), "bucket", "a.zip", build)
	c.GetOrBuild(context.Background(), "bucket", "b.zip", build)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	c.Invalidate("bucket", "a.zip")
	if _, ok := c.Get("bucket", "a.zip"); ok {
		t.Error("expected invalidated entry to miss")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after invalidate", c.Len())
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after purge", c.Len())
	}
}
