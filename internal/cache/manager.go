package cache

import (
	"fmt"
	"time"
)

// Manager combines the archive index cache and the completion cache
// behind one constructed-at-startup value, mirroring how a shell session
// holds exactly one of each for its lifetime.
type Manager struct {
	archiveCache    *ArchiveCache
	completionCache *CompletionCache
}

// NewManager creates a new cache manager. archiveMaxEntries bounds how
// many opened archives' indexes stay resident; completionTTL and
// fetchTimeout configure the completion cache (see NewCompletionCache).
// fetch resolves a directory listing on a completion-cache miss and may
// be nil if the caller only intends to prime the cache via SetEntries.
func NewManager(archiveMaxEntries int, completionTTL, fetchTimeout time.Duration, fetch FetchFunc) (*Manager, error) {
	archiveCache, err := NewArchiveCache(archiveMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("cache manager: %w", err)
	}
	return &Manager{
		archiveCache:    archiveCache,
		completionCache: NewCompletionCache(fetch, completionTTL, fetchTimeout),
	}, nil
}

// GetArchiveCache returns the archive index cache.
func (m *Manager) GetArchiveCache() *ArchiveCache {
	return m.archiveCache
}

// GetCompletionCache returns the completion cache.
func (m *Manager) GetCompletionCache() *CompletionCache {
	return m.completionCache
}

// Close releases resources held by the manager. Neither cache currently
// holds anything that needs explicit teardown, but callers should still
// invoke this at session end so a future stateful cache doesn't leak.
func (m *Manager) Close() {}

// DefaultManager creates a manager with default settings and no
// completion fetch function configured yet, since the fetch callback needs
// a resolver built from this same manager's archive cache. Callers should
// follow up with GetCompletionCache().SetFetch once their resolver exists
// (see cmd/s3vfs/main.go).
func DefaultManager() (*Manager, error) {
	return NewManager(
		100, // archive index cache size
		DefaultCompletionTTL,
		DefaultFetchTimeout,
		nil,
	)
}
