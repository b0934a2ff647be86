// Package resolver walks a VfsNode step by step against an ObjectStore and
// an archive index cache, turning a typed "cd"/"ls" path argument into the
// node it names without ever materializing a full path string internally.
package resolver

import (
	"context"
	"io"
	"strings"

	"github.com/s3fs-fuse/s3vfs-go/internal/archive"
	"github.com/s3fs-fuse/s3vfs-go/internal/cache"
	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
	"github.com/s3fs-fuse/s3vfs-go/internal/vfs"
)

const op = "resolver"

// Resolver turns path segments into VfsNode transitions from some current
// node, building and caching archive indexes as it crosses into one.
type Resolver struct {
	store   objectstore.ObjectStore
	indexes *cache.ArchiveCache
}

// New returns a Resolver backed by store, caching built archive indexes in
// indexes.
func New(store objectstore.ObjectStore, indexes *cache.ArchiveCache) *Resolver {
	return &Resolver{store: store, indexes: indexes}
}

// Resolve walks path (absolute if it starts with "/", else relative to
// from) one segment at a time and returns the node it names. An empty path
// resolves to the starting node and "/" alone resolves to Root.
func (r *Resolver) Resolve(ctx context.Context, from vfs.Node, path string) (vfs.Node, error) {
	current := from
	if strings.HasPrefix(path, "/") {
		current = vfs.NewRoot()
	}

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		if path == "" {
			return from, nil
		}
		return vfs.NewRoot(), nil
	}

	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" || segment == "." {
			continue
		}
		var err error
		if segment == ".." {
			current, err = r.NavigateUp(current)
		} else {
			current, err = r.NavigateToSegment(ctx, current, segment)
		}
		if err != nil {
			return vfs.Node{}, err
		}
	}
	return current, nil
}

// NavigateUp returns the parent of current. Root and Bucket both collapse
// upward predictably; an ArchiveEntry at an archive's top interior level
// goes back to the Archive node, and ".." from the Archive node (the
// archive root) leaves the archive for the Prefix or Bucket that holds it.
func (r *Resolver) NavigateUp(current vfs.Node) (vfs.Node, error) {
	switch current.Type {
	case vfs.NodeRoot:
		return current, nil

	case vfs.NodeBucket:
		return vfs.NewRoot(), nil

	case vfs.NodePrefix:
		parent := strings.TrimSuffix(current.Prefix, "/")
		if idx := strings.LastIndex(parent, "/"); idx >= 0 {
			return vfs.NewPrefix(current.Bucket, parent[:idx+1]), nil
		}
		return vfs.NewBucket(current.Bucket), nil

	case vfs.NodeObject:
		if idx := strings.LastIndex(current.Key, "/"); idx >= 0 {
			return vfs.NewPrefix(current.Bucket, current.Key[:idx+1]), nil
		}
		return vfs.NewBucket(current.Bucket), nil

	case vfs.NodeArchive:
		if !current.InnerPrefix.IsRoot() {
			return current.WithInnerPrefix(vfs.Root()), nil
		}
		if idx := strings.LastIndex(current.Key, "/"); idx >= 0 {
			return vfs.NewPrefix(current.Bucket, current.Key[:idx+1]), nil
		}
		return vfs.NewBucket(current.Bucket), nil

	case vfs.NodeArchiveEntry:
		parentPath := strings.TrimSuffix(current.EntryPath, "/")
		if idx := strings.LastIndex(parentPath, "/"); idx >= 0 {
			return vfs.NewArchiveEntry(*current.Archive, parentPath[:idx], 0, true, nil), nil
		}
		return *current.Archive, nil

	default:
		return vfs.Node{}, objectstore.New(objectstore.KindInternal, op, "", nil)
	}
}

// NavigateToSegment resolves segment as a child of current: a bucket name
// under Root, an object-or-prefix under a Bucket/Prefix, or an archive
// entry under an Archive/ArchiveEntry. An Object that isn't itself
// navigable (not an archive) can't be descended into.
func (r *Resolver) NavigateToSegment(ctx context.Context, current vfs.Node, segment string) (vfs.Node, error) {
	switch current.Type {
	case vfs.NodeRoot:
		return vfs.NewBucket(segment), nil

	case vfs.NodeBucket:
		return r.resolveObjectOrPrefix(ctx, current.Bucket, segment)

	case vfs.NodePrefix:
		fullKey := current.Prefix + segment
		return r.resolveObjectOrPrefix(ctx, current.Bucket, fullKey)

	case vfs.NodeArchive:
		return r.descendArchive(ctx, current, "", segment)

	case vfs.NodeArchiveEntry:
		if !current.IsDir {
			return vfs.Node{}, objectstore.New(objectstore.KindNotADirectory, op, current.EntryPath, nil)
		}
		return r.descendArchive(ctx, *current.Archive, current.EntryPath, segment)

	case vfs.NodeObject:
		return vfs.Node{}, objectstore.New(objectstore.KindNotADirectory, op, current.Key, nil)

	default:
		return vfs.Node{}, objectstore.New(objectstore.KindInternal, op, "", nil)
	}
}

// resolveObjectOrPrefix tries fullKey as an object first (so a same-named
// object shadows a same-named prefix, matching S3's own key-vs-delimiter
// ambiguity resolution) and falls back to treating it as a prefix, but only
// once a listing confirms fullKey+"/" actually names one: a segment that is
// neither an object nor a real common prefix is a lookup failure, not an
// assumed-to-exist prefix.
func (r *Resolver) resolveObjectOrPrefix(ctx context.Context, bucket, fullKey string) (vfs.Node, error) {
	if info, err := r.store.Head(ctx, bucket, fullKey); err == nil {
		obj := vfs.NewObject(bucket, fullKey, info.Size)
		return r.tryArchiveNode(ctx, obj)
	}

	prefix := fullKey + "/"
	page, err := r.store.ListPrefix(ctx, bucket, prefix, "/", "")
	if err != nil {
		return vfs.Node{}, err
	}
	if len(page.CommonPrefixes) == 0 && len(page.Objects) == 0 {
		return vfs.Node{}, objectstore.New(objectstore.KindNotFound, op, fullKey, nil)
	}
	return vfs.NewPrefix(bucket, prefix), nil
}

// tryArchiveNode promotes an Object node whose key names a recognized
// archive format into an Archive node, building (or reusing a cached)
// index. Non-archive objects pass through unchanged.
func (r *Resolver) tryArchiveNode(ctx context.Context, obj vfs.Node) (vfs.Node, error) {
	kind := vfs.DetectArchiveKind(obj.Key)
	if kind == vfs.KindNone {
		return obj, nil
	}

	handler := archive.ForKind(kind)
	if handler == nil {
		return vfs.Node{}, objectstore.New(objectstore.KindUnsupportedArchive, op, obj.Key, nil)
	}

	if r.indexes != nil {
		if _, err := r.indexes.GetOrBuild(ctx, obj.Bucket, obj.Key, func(ctx context.Context, bucket, key string) (*archive.Index, error) {
			return handler.BuildIndex(ctx, r.store, bucket, key, nil)
		}); err != nil {
			return vfs.Node{}, err
		}
	}

	return vfs.NewArchive(obj.Bucket, obj.Key, kind), nil
}

// descendArchive resolves segment as a child of interiorPath inside the
// archive rooted at archiveNode, using the cached index built when the
// archive was first entered. The result may be a file entry as well as a
// directory one; NavigateToSegment already rejects taking a further hop
// through a file entry, so a plain file is only ever a valid *final*
// resolution (matching cat's path argument reaching a leaf), never a
// waypoint cd can pass through.
func (r *Resolver) descendArchive(ctx context.Context, archiveNode vfs.Node, interiorPath, segment string) (vfs.Node, error) {
	idx, err := r.archiveIndex(ctx, archiveNode)
	if err != nil {
		return vfs.Node{}, err
	}

	targetPath := segment
	if interiorPath != "" {
		targetPath = strings.TrimSuffix(interiorPath, "/") + "/" + segment
	}

	entry, ok := idx.FindEntry(targetPath)
	if !ok {
		return vfs.Node{}, objectstore.New(objectstore.KindNotFound, op, targetPath, nil)
	}

	cleanPath := strings.TrimSuffix(entry.Path, "/")
	return vfs.NewArchiveEntry(archiveNode, cleanPath, entry.Size, entry.IsDir, entry.Payload), nil
}

// archiveIndex returns the cached index for archiveNode, building it if
// this is the first time it's been entered this session.
func (r *Resolver) archiveIndex(ctx context.Context, archiveNode vfs.Node) (*archive.Index, error) {
	handler := archive.ForKind(archiveNode.Kind)
	if handler == nil {
		return nil, objectstore.New(objectstore.KindUnsupportedArchive, op, archiveNode.Key, nil)
	}
	if r.indexes == nil {
		return handler.BuildIndex(ctx, r.store, archiveNode.Bucket, archiveNode.Key, nil)
	}
	return r.indexes.GetOrBuild(ctx, archiveNode.Bucket, archiveNode.Key, func(ctx context.Context, bucket, key string) (*archive.Index, error) {
		return handler.BuildIndex(ctx, r.store, bucket, key, nil)
	})
}

// ListChildren returns the immediate children of node, dispatching to the
// object-store listing or the archive index depending on node's type.
func (r *Resolver) ListChildren(ctx context.Context, node vfs.Node) ([]vfs.Node, error) {
	switch node.Type {
	case vfs.NodeRoot:
		buckets, err := r.store.ListBuckets(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]vfs.Node, 0, len(buckets))
		for _, b := range buckets {
			out = append(out, vfs.NewBucket(b.Name))
		}
		return out, nil

	case vfs.NodeBucket:
		return r.listPrefix(ctx, node.Bucket, "")

	case vfs.NodePrefix:
		return r.listPrefix(ctx, node.Bucket, node.Prefix)

	case vfs.NodeArchive, vfs.NodeArchiveEntry:
		var archiveNode vfs.Node
		interior := ""
		if node.Type == vfs.NodeArchive {
			archiveNode = node
			interior = node.InnerPrefix.Interior()
		} else {
			archiveNode = *node.Archive
			interior = node.EntryPath
		}
		idx, err := r.archiveIndex(ctx, archiveNode)
		if err != nil {
			return nil, err
		}
		handler := archive.ForKind(archiveNode.Kind)
		entries := handler.ListEntries(idx, interior)
		out := make([]vfs.Node, 0, len(entries))
		for _, e := range entries {
			cleanPath := strings.TrimSuffix(e.Path, "/")
			out = append(out, vfs.NewArchiveEntry(archiveNode, cleanPath, e.Size, e.IsDir, e.Payload))
		}
		return out, nil

	default:
		return nil, objectstore.New(objectstore.KindNotADirectory, op, node.DisplayPath(), nil)
	}
}

// Extract opens node's byte stream: a direct range/full read for an
// Object, or a handler-mediated extraction against the cached archive
// index for an ArchiveEntry. Directories of either kind are rejected.
func (r *Resolver) Extract(ctx context.Context, node vfs.Node) (io.ReadCloser, error) {
	switch node.Type {
	case vfs.NodeObject:
		return r.store.GetFull(ctx, node.Bucket, node.Key)

	case vfs.NodeArchiveEntry:
		if node.IsDir {
			return nil, objectstore.New(objectstore.KindNotADirectory, op, node.EntryPath, nil)
		}
		archiveNode := *node.Archive
		idx, err := r.archiveIndex(ctx, archiveNode)
		if err != nil {
			return nil, err
		}
		handler := archive.ForKind(archiveNode.Kind)
		return handler.Extract(ctx, r.store, archiveNode.Bucket, archiveNode.Key, idx, node.EntryPath, nil)

	default:
		return nil, objectstore.New(objectstore.KindNotADirectory, op, node.DisplayPath(), nil)
	}
}

func (r *Resolver) listPrefix(ctx context.Context, bucket, prefix string) ([]vfs.Node, error) {
	var out []vfs.Node
	continuation := ""
	for {
		page, err := r.store.ListPrefix(ctx, bucket, prefix, "/", continuation)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, vfs.NewPrefix(bucket, cp))
		}
		for _, obj := range page.Objects {
			// Listing never builds an archive index for its own sake: a
			// plain Object node already reports itself navigable via its
			// extension (vfs.Node.IsNavigable), and cd is what pays the
			// cost of actually opening one.
			out = append(out, vfs.NewObject(bucket, obj.Key, obj.Size))
		}
		if !page.IsTruncated {
			break
		}
		continuation = page.NextContinuation
	}
	return out, nil
}
