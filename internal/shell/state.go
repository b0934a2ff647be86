package shell

import (
	"context"

	"github.com/s3fs-fuse/s3vfs-go/internal/cache"
	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
	"github.com/s3fs-fuse/s3vfs-go/internal/resolver"
	"github.com/s3fs-fuse/s3vfs-go/internal/vfs"
)

// State tracks the shell's current location and the shared resources every
// command needs: the object store, the resolver that walks it, and the
// cache manager backing both archive indexes and tab completion. The
// current node is mutated only by the command dispatcher, on the main
// goroutine, per the single-writer rule spec.md's concurrency model
// requires.
type State struct {
	current  vfs.Node
	store    objectstore.ObjectStore
	resolver *resolver.Resolver
	caches   *cache.Manager
}

// NewState builds a State rooted at vfs.NewRoot().
func NewState(store objectstore.ObjectStore, caches *cache.Manager) *State {
	return &State{
		current:  vfs.NewRoot(),
		store:    store,
		resolver: resolver.New(store, caches.GetArchiveCache()),
		caches:   caches,
	}
}

// Current returns the current node.
func (s *State) Current() vfs.Node { return s.current }

// SetCurrent updates the current node.
func (s *State) SetCurrent(n vfs.Node) { s.current = n }

// Store returns the backing object store.
func (s *State) Store() objectstore.ObjectStore { return s.store }

// Resolver returns the path resolver.
func (s *State) Resolver() *resolver.Resolver { return s.resolver }

// Caches returns the cache manager.
func (s *State) Caches() *cache.Manager { return s.caches }

// Path returns the current node's display path, exactly as pwd shows it.
func (s *State) Path() string { return s.current.DisplayPath() }

// Resolve resolves path against the current node without changing it.
func (s *State) Resolve(ctx context.Context, path string) (vfs.Node, error) {
	return s.resolver.Resolve(ctx, s.current, path)
}

// CompletionFetch returns a cache.FetchFunc that resolves an absolute
// display path from the filesystem root and lists its children, bridging
// the resolver into the completion cache for tab completion and repeated
// listings (spec.md §4.9).
func (s *State) CompletionFetch() cache.FetchFunc {
	return func(ctx context.Context, path string) ([]cache.CompletionEntry, error) {
		node, err := s.resolver.Resolve(ctx, vfs.NewRoot(), path)
		if err != nil {
			return nil, err
		}
		children, err := s.resolver.ListChildren(ctx, node)
		if err != nil {
			return nil, err
		}
		entries := make([]cache.CompletionEntry, 0, len(children))
		for _, child := range children {
			entries = append(entries, cache.CompletionEntry{Name: child.Name(), IsDir: child.IsListable()})
		}
		return entries, nil
	}
}
