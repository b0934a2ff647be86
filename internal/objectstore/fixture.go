package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// fixtureObject is one object held by Fixture.
type fixtureObject struct {
	data         []byte
	lastModified time.Time
	contentType  string
}

// Fixture is an in-memory ObjectStore for tests, adapted from the teacher's
// map-backed MockClient to the multi-bucket, read-only port shape.
type Fixture struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*fixtureObject
}

// NewFixture returns an empty Fixture.
func NewFixture() *Fixture {
	return &Fixture{buckets: make(map[string]map[string]*fixtureObject)}
}

// Put seeds bucket/key with data. Intended for test setup only, not part of
// the ObjectStore interface.
func (f *Fixture) Put(bucket, key string, data []byte) {
	f.PutWithType(bucket, key, data, "")
}

// PutWithType seeds bucket/key with data and a content type.
func (f *Fixture) PutWithType(bucket, key string, data []byte, contentType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buckets[bucket] == nil {
		f.buckets[bucket] = make(map[string]*fixtureObject)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.buckets[bucket][key] = &fixtureObject{data: cp, lastModified: time.Now(), contentType: contentType}
}

func (f *Fixture) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]BucketInfo, 0, len(names))
	for _, n := range names {
		out = append(out, BucketInfo{Name: n})
	}
	return out, nil
}

func (f *Fixture) ListPrefix(ctx context.Context, bucket, prefix, delim, continuation string) (ListPrefixResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	objs, ok := f.buckets[bucket]
	if !ok {
		return ListPrefixResult{}, New(KindNotFound, "ListPrefix", bucket, nil)
	}

	prefixSet := map[string]bool{}
	var res ListPrefixResult
	keys := make([]string, 0, len(objs))
	for k := range objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if delim != "" {
			if idx := strings.Index(rest, delim); idx >= 0 {
				cp := prefix + rest[:idx+len(delim)]
				if !prefixSet[cp] {
					prefixSet[cp] = true
					res.CommonPrefixes = append(res.CommonPrefixes, cp)
				}
				continue
			}
		}
		obj := objs[key]
		res.Objects = append(res.Objects, ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified,
		})
	}
	sort.Strings(res.CommonPrefixes)
	return res, nil
}

func (f *Fixture) Head(ctx context.Context, bucket, key string) (HeadInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	objs, ok := f.buckets[bucket]
	if !ok {
		return HeadInfo{}, New(KindNotFound, "Head", bucket+"/"+key, nil)
	}
	obj, ok := objs[key]
	if !ok {
		return HeadInfo{}, New(KindNotFound, "Head", bucket+"/"+key, nil)
	}
	return HeadInfo{Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

func (f *Fixture) GetRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	objs, ok := f.buckets[bucket]
	if !ok {
		return nil, New(KindNotFound, "GetRange", bucket+"/"+key, nil)
	}
	obj, ok := objs[key]
	if !ok {
		return nil, New(KindNotFound, "GetRange", bucket+"/"+key, nil)
	}
	n := int64(len(obj.data))

	if start < 0 && end == -1 {
		start = n + start
		if start < 0 {
			start = 0
		}
		end = n - 1
	} else if end == -1 {
		end = n - 1
	}
	if start < 0 || start >= n || end < start {
		return nil, New(KindProtocolError, "GetRange", bucket+"/"+key, nil)
	}
	if end >= n {
		end = n - 1
	}
	return io.NopCloser(bytes.NewReader(obj.data[start : end+1])), nil
}

func (f *Fixture) GetFull(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	objs, ok := f.buckets[bucket]
	if !ok {
		return nil, New(KindNotFound, "GetFull", bucket+"/"+key, nil)
	}
	obj, ok := objs[key]
	if !ok {
		return nil, New(KindNotFound, "GetFull", bucket+"/"+key, nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

var _ ObjectStore = (*Fixture)(nil)
