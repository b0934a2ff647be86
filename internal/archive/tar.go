package archive

import (
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"context"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
)

const tarBlockSize = 512

// TarEntryPayload is the EntryPayload attached to tar ArchiveEntry values.
// For an uncompressed .tar, Offset is the real byte offset of the entry's
// header in the object; a compressed variant can't be range-addressed, so
// Offset instead holds the entry's ordinal position in the stream.
type TarEntryPayload struct {
	Offset int64
}

type tarHandler struct {
	kind Kind
}

// NewTarHandler returns the ArchiveHandler for kind, one of KindTar,
// KindTarGzip, or KindTarBzip2.
func NewTarHandler(kind Kind) Handler { return tarHandler{kind: kind} }

func (h tarHandler) decompress(r io.Reader) (io.Reader, error) {
	switch h.kind {
	case KindTar:
		return r, nil
	case KindTarGzip:
		return gzip.NewReader(r)
	case KindTarBzip2:
		return bzip2.NewReader(r), nil
	default:
		return nil, objectstore.New(objectstore.KindUnsupportedArchive, "decompress", "", nil)
	}
}

func (h tarHandler) BuildIndex(ctx context.Context, store objectstore.ObjectStore, bucket, key string, progress ProgressSink) (*Index, error) {
	raw, err := store.GetFull(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	stream, err := h.decompress(raw)
	if err != nil {
		return nil, objectstore.New(objectstore.KindUnsupportedArchive, "BuildIndex", key, err)
	}
	if gz, ok := stream.(*gzip.Reader); ok {
		defer gz.Close()
	}

	tr := tar.NewReader(stream)
	index := NewIndex()

	var byteOffset int64
	var processed int64
	var ordinal int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, objectstore.New(objectstore.KindCorruptArchive, "BuildIndex", key, err)
		}

		path := hdr.Name
		if hasUnsafeSegments(path) {
			return nil, objectstore.New(objectstore.KindUnsafePath, "BuildIndex", path, nil)
		}
		isDir := hdr.Typeflag == tar.TypeDir

		var offset int64
		if h.kind == KindTar {
			offset = byteOffset
		} else {
			offset = ordinal
		}

		index.Add(Entry{
			Path:    path,
			Size:    hdr.Size,
			IsDir:   isDir,
			Payload: TarEntryPayload{Offset: offset},
		})

		if h.kind == KindTar {
			byteOffset += tarBlockSize
			byteOffset += ((hdr.Size + tarBlockSize - 1) / tarBlockSize) * tarBlockSize
		}
		ordinal++
		processed += hdr.Size
		report(progress, processed, -1)
	}

	return index, nil
}

func (tarHandler) ListEntries(index *Index, interiorPrefix string) []Entry {
	return index.ListChildren(interiorPrefix)
}

func (h tarHandler) Extract(ctx context.Context, store objectstore.ObjectStore, bucket, key string, index *Index, entryPath string, progress ProgressSink) (io.ReadCloser, error) {
	entry, ok := index.FindEntry(entryPath)
	if !ok {
		return nil, objectstore.New(objectstore.KindNotFound, "Extract", entryPath, nil)
	}
	if entry.IsDir {
		return nil, objectstore.New(objectstore.KindNotADirectory, "Extract", entryPath, nil)
	}
	payload, ok := entry.Payload.(TarEntryPayload)
	if !ok {
		return nil, objectstore.New(objectstore.KindInternal, "Extract", entryPath, nil)
	}

	if h.kind == KindTar {
		return h.extractByRange(ctx, store, bucket, key, entry, payload)
	}
	return h.extractByOrdinal(ctx, store, bucket, key, entry, payload, progress)
}

// extractByRange range-fetches the header block plus the entry's data
// directly, since an uncompressed tar's byte offsets are stable.
func (h tarHandler) extractByRange(ctx context.Context, store objectstore.ObjectStore, bucket, key string, entry Entry, payload TarEntryPayload) (io.ReadCloser, error) {
	dataStart := payload.Offset + tarBlockSize
	if entry.Size == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	rc, err := store.GetRange(ctx, bucket, key, dataStart, dataStart+entry.Size-1)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// extractByOrdinal re-decompresses from the start of the stream and
// discards entries until it reaches the target ordinal, since compressed
// tar variants can't be range-addressed.
func (h tarHandler) extractByOrdinal(ctx context.Context, store objectstore.ObjectStore, bucket, key string, entry Entry, payload TarEntryPayload, progress ProgressSink) (io.ReadCloser, error) {
	raw, err := store.GetFull(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	stream, err := h.decompress(raw)
	if err != nil {
		raw.Close()
		return nil, objectstore.New(objectstore.KindUnsupportedArchive, "Extract", key, err)
	}

	tr := tar.NewReader(stream)
	var ordinal int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			raw.Close()
			return nil, objectstore.New(objectstore.KindNotFound, "Extract", entry.Path, nil)
		}
		if err != nil {
			raw.Close()
			return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entry.Path, err)
		}
		if ordinal == payload.Offset && hdr.Name == entry.Path {
			data, err := io.ReadAll(tr)
			raw.Close()
			if err != nil {
				return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entry.Path, err)
			}
			report(progress, int64(len(data)), entry.Size)
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		ordinal++
	}
}

var _ Handler = tarHandler{}
