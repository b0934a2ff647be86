package vfs

import "strings"

// ArchiveKind is the closed set of container formats the shell can descend
// into. Detection is by extension suffix, case-insensitive, in the fixed
// precedence tar+bzip2 > tar+gzip > tar > zip > parquet > none.
type ArchiveKind int

const (
	KindNone ArchiveKind = iota
	KindTar
	KindTarGzip
	KindTarBzip2
	KindZip
	KindParquet
)

func (k ArchiveKind) String() string {
	switch k {
	case KindTar:
		return "tar"
	case KindTarGzip:
		return "tar+gzip"
	case KindTarBzip2:
		return "tar+bzip2"
	case KindZip:
		return "zip"
	case KindParquet:
		return "parquet"
	default:
		return "none"
	}
}

// DetectArchiveKind inspects the (lowercased) suffix of name and returns the
// archive kind it claims, or KindNone. Precedence: tar+bzip2, tar+gzip, tar,
// zip, parquet.
func DetectArchiveKind(name string) ArchiveKind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return KindTarBzip2
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return KindTarGzip
	case strings.HasSuffix(lower, ".tar"):
		return KindTar
	case strings.HasSuffix(lower, ".zip"):
		return KindZip
	case strings.HasSuffix(lower, ".parquet"):
		return KindParquet
	default:
		return KindNone
	}
}

// NodeType is the tag of the VfsNode variant.
type NodeType int

const (
	NodeRoot NodeType = iota
	NodeBucket
	NodePrefix
	NodeObject
	NodeArchive
	NodeArchiveEntry
)

// Payload is handler-specific extraction metadata attached to an
// ArchiveEntry node (see internal/archive for the concrete per-kind
// payload types); vfs treats it opaquely.
type Payload interface{}

// Node is the tagged-variant VfsNode: Root, Bucket, Prefix, Object,
// Archive, and ArchiveEntry all share this struct, discriminated by Type.
// Values are immutable; every navigation produces a new Node.
type Node struct {
	Type NodeType

	Bucket string // Bucket, Prefix, Object, Archive
	Prefix string // Prefix (trailing-slash-normalized key prefix)
	Key    string // Object, Archive (full object key)
	Size   int64  // Object, ArchiveEntry

	Kind        ArchiveKind // Archive
	InnerPrefix Path        // Archive: path inside the archive, relative to its root

	Archive    *Node  // ArchiveEntry: the owning Archive node
	EntryPath  string // ArchiveEntry: full interior path
	IsDir      bool   // ArchiveEntry
	EntryPayload Payload // ArchiveEntry
}

// NewRoot returns the Root node.
func NewRoot() Node { return Node{Type: NodeRoot} }

// NewBucket returns a Bucket node.
func NewBucket(name string) Node { return Node{Type: NodeBucket, Bucket: name} }

// NewPrefix returns a Prefix node with a trailing-slash-normalized prefix.
func NewPrefix(bucket, prefix string) Node {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return Node{Type: NodePrefix, Bucket: bucket, Prefix: prefix}
}

// NewObject returns an Object node.
func NewObject(bucket, key string, size int64) Node {
	return Node{Type: NodeObject, Bucket: bucket, Key: key, Size: size}
}

// NewArchive returns an Archive node rooted at bucket/key with an empty
// interior prefix.
func NewArchive(bucket, key string, kind ArchiveKind) Node {
	return Node{Type: NodeArchive, Bucket: bucket, Key: key, Kind: kind, InnerPrefix: Root()}
}

// WithInnerPrefix returns a copy of an Archive node descended into prefix.
func (n Node) WithInnerPrefix(p Path) Node {
	out := n
	out.InnerPrefix = p
	return out
}

// NewArchiveEntry returns an ArchiveEntry node under archive.
func NewArchiveEntry(archive Node, entryPath string, size int64, isDir bool, payload Payload) Node {
	a := archive
	return Node{
		Type:         NodeArchiveEntry,
		Archive:      &a,
		EntryPath:    entryPath,
		Size:         size,
		IsDir:        isDir,
		EntryPayload: payload,
	}
}

// IsListable reports whether ls can enumerate this node's children.
func (n Node) IsListable() bool {
	switch n.Type {
	case NodeRoot, NodeBucket, NodePrefix, NodeArchive:
		return true
	case NodeArchiveEntry:
		return n.IsDir
	default:
		return false
	}
}

// IsNavigable reports whether cd can descend into this node.
func (n Node) IsNavigable() bool {
	switch n.Type {
	case NodeRoot, NodeBucket, NodePrefix, NodeArchive:
		return true
	case NodeObject:
		return DetectArchiveKind(n.Key) != KindNone
	case NodeArchiveEntry:
		return n.IsDir
	default:
		return false
	}
}

// Name returns the node's last path segment, the form ls and tab completion
// render a child under: a bucket name, a prefix's trailing directory, an
// object or archive's key basename, or an archive entry's basename.
func (n Node) Name() string {
	switch n.Type {
	case NodeRoot:
		return "/"
	case NodeBucket:
		return n.Bucket
	case NodePrefix:
		return lastSegment(strings.TrimSuffix(n.Prefix, "/"))
	case NodeObject, NodeArchive:
		return lastSegment(n.Key)
	case NodeArchiveEntry:
		return lastSegment(n.EntryPath)
	default:
		return n.DisplayPath()
	}
}

func lastSegment(s string) string {
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// DisplayPath renders the node's full path exactly as pwd shows it: never
// contains ".", "..", or empty segments.
func (n Node) DisplayPath() string {
	switch n.Type {
	case NodeRoot:
		return "/"
	case NodeBucket:
		return "/" + n.Bucket + "/"
	case NodePrefix:
		return "/" + n.Bucket + "/" + n.Prefix
	case NodeObject:
		return "/" + n.Bucket + "/" + n.Key
	case NodeArchive:
		p := "/" + n.Bucket + "/" + n.Key + "/"
		if inner := n.InnerPrefix.Interior(); inner != "" {
			p += inner
			if !strings.HasSuffix(p, "/") {
				p += "/"
			}
		}
		return p
	case NodeArchiveEntry:
		// EntryPath is already the full interior path, so it is joined to
		// the archive's own location, not to its current inner prefix.
		base := "/" + n.Archive.Bucket + "/" + n.Archive.Key
		p := base + "/" + n.EntryPath
		if n.IsDir && !strings.HasSuffix(p, "/") {
			p += "/"
		}
		return p
	default:
		return "/"
	}
}
