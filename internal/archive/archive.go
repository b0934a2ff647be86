// Package archive implements the ArchiveHandler contract shared by the
// zip, tar, and parquet indexers: build a random-access catalog from
// streamed or range-fetched bytes, list its immediate children, and
// extract an entry's bytes on demand.
package archive

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
	"github.com/s3fs-fuse/s3vfs-go/internal/vfs"
)

// Kind re-exports vfs.ArchiveKind so callers only need one import for
// archive-kind values.
type Kind = vfs.ArchiveKind

const (
	KindNone      = vfs.KindNone
	KindTar       = vfs.KindTar
	KindTarGzip   = vfs.KindTarGzip
	KindTarBzip2  = vfs.KindTarBzip2
	KindZip       = vfs.KindZip
	KindParquet   = vfs.KindParquet
)

// DetectKind is vfs.DetectArchiveKind, re-exported for convenience.
func DetectKind(name string) Kind { return vfs.DetectArchiveKind(name) }

// ProgressSink receives (bytesProcessed, bytesTotal) updates during index
// builds and extraction. bytesTotal is -1 when unknown. A nil ProgressSink
// is valid and discards updates.
type ProgressSink func(bytesProcessed, bytesTotal int64)

func report(sink ProgressSink, processed, total int64) {
	if sink != nil {
		sink(processed, total)
	}
}

// Entry is one catalogued item inside an archive.
type Entry struct {
	Path    string // interior path, no leading separator
	Size    int64
	IsDir   bool
	Payload interface{} // handler-specific extraction metadata
}

// Index is the ArchiveIndex data model: a mapping from interior path to
// Entry, with lookup helpers tolerant of tar's trailing-slash directory
// convention.
type Index struct {
	Entries  map[string]Entry
	Metadata map[string]string

	// Aux holds handler-private parsed state (e.g. the parquet handler's
	// decoded footer) that would be wasteful to re-fetch and re-parse on
	// every ListEntries/Extract call against the same cached Index.
	Aux interface{}
}

// NewIndex returns an empty Index ready for incremental population.
func NewIndex() *Index {
	return &Index{Entries: make(map[string]Entry), Metadata: make(map[string]string)}
}

// Add inserts or replaces an entry.
func (idx *Index) Add(e Entry) { idx.Entries[e.Path] = e }

// FindEntry looks up path, then path with its trailing separator toggled,
// since tar commonly records directories with a trailing "/" while zip
// rarely does.
func (idx *Index) FindEntry(path string) (Entry, bool) {
	if e, ok := idx.Entries[path]; ok {
		return e, true
	}
	if strings.HasSuffix(path, "/") {
		if e, ok := idx.Entries[strings.TrimSuffix(path, "/")]; ok {
			return e, true
		}
	} else {
		if e, ok := idx.Entries[path+"/"]; ok {
			return e, true
		}
	}
	return Entry{}, false
}

// ListChildren returns entries directly under prefix (which may be "" for
// the archive root), sorted lexicographically with directories first, ties
// broken by path.
func (idx *Index) ListChildren(prefix string) []Entry {
	prefix = strings.TrimSuffix(prefix, "/")
	searchPrefix := ""
	if prefix != "" {
		searchPrefix = prefix + "/"
	}

	seenDirs := map[string]bool{}
	var out []Entry
	for path, e := range idx.Entries {
		if searchPrefix != "" && !strings.HasPrefix(path, searchPrefix) {
			continue
		}
		relative := strings.TrimPrefix(path, searchPrefix)
		relative = strings.TrimSuffix(relative, "/")
		if relative == "" {
			continue
		}
		if slash := strings.Index(relative, "/"); slash >= 0 {
			dirName := relative[:slash]
			if seenDirs[dirName] {
				continue
			}
			seenDirs[dirName] = true
			dirPath := searchPrefix + dirName + "/"
			if dirEntry, ok := idx.Entries[dirPath]; ok {
				out = append(out, dirEntry)
			} else {
				out = append(out, Entry{Path: dirPath, IsDir: true})
			}
		} else {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Handler is the ArchiveHandler contract. Implementations are stateless;
// all state lives in the Index they build and hand back to the caller.
type Handler interface {
	// BuildIndex must be idempotent and deterministic for a given object
	// version, which is assumed immutable for the session.
	BuildIndex(ctx context.Context, store objectstore.ObjectStore, bucket, key string, progress ProgressSink) (*Index, error)

	// ListEntries returns the immediate children of interiorPrefix.
	ListEntries(index *Index, interiorPrefix string) []Entry

	// Extract streams entryPath's bytes in bounded chunks. A failure
	// midway must surface as a read error on the returned stream, not a
	// panic.
	Extract(ctx context.Context, store objectstore.ObjectStore, bucket, key string, index *Index, entryPath string, progress ProgressSink) (io.ReadCloser, error)
}

// ForKind returns the Handler responsible for kind, or nil for KindNone.
func ForKind(kind Kind) Handler {
	switch kind {
	case KindZip:
		return NewZipHandler()
	case KindTar, KindTarGzip, KindTarBzip2:
		return NewTarHandler(kind)
	case KindParquet:
		return NewParquetHandler(DefaultSampleRows)
	default:
		return nil
	}
}
