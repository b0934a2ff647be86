package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
)

const (
	eocdSearchSize   = 65536
	minEOCDSize      = 22
	cdfhMinSize      = 46
	localHeaderMin   = 30
	compressionStored  = 0
	compressionDeflate = 8

	// Zip-bomb guards, supplemented from original_source (spec.md is silent
	// on these but original_source enforces them unconditionally).
	maxDecompressedSize = 1024 * 1024 * 1024 // 1 GiB
	maxCompressionRatio = 1000
)

var (
	eocdSignature = [4]byte{0x50, 0x4b, 0x05, 0x06}
	cdfhSignature = [4]byte{0x50, 0x4b, 0x01, 0x02}
	lfhSignature  = [4]byte{0x50, 0x4b, 0x03, 0x04}
)

// ZipEntryPayload is the EntryPayload attached to zip ArchiveEntry values.
type ZipEntryPayload struct {
	LocalHeaderOffset int64
	CompressedSize    int64
	UncompressedSize  int64
	CompressionMethod uint16
	CRC32             uint32
}

type zipHandler struct{}

// NewZipHandler returns the ArchiveHandler for the zip container format.
func NewZipHandler() Handler { return zipHandler{} }

type eocdInfo struct {
	centralDirOffset int64
	centralDirSize   int64
}

func (zipHandler) BuildIndex(ctx context.Context, store objectstore.ObjectStore, bucket, key string, progress ProgressSink) (*Index, error) {
	head, err := store.Head(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	size := head.Size
	if size < minEOCDSize {
		return nil, objectstore.New(objectstore.KindCorruptArchive, "BuildIndex", key, nil)
	}

	tailSize := int64(eocdSearchSize)
	if tailSize > size {
		tailSize = size
	}
	tail, err := readAll(ctx, store, bucket, key, -tailSize, -1)
	if err != nil {
		return nil, err
	}
	report(progress, int64(len(tail)), -1)

	eocd, err := findEOCD(tail)
	if err != nil {
		return nil, err
	}

	cdEnd := eocd.centralDirOffset + eocd.centralDirSize
	if cdEnd > size {
		return nil, objectstore.New(objectstore.KindCorruptArchive, "BuildIndex", key,
			nil)
	}

	cdData, err := readAll(ctx, store, bucket, key, eocd.centralDirOffset, eocd.centralDirOffset+eocd.centralDirSize-1)
	if err != nil {
		return nil, err
	}
	report(progress, int64(len(tail)+len(cdData)), -1)

	index, err := parseCentralDirectory(cdData, size)
	if err != nil {
		return nil, err
	}
	return index, nil
}

func (zipHandler) ListEntries(index *Index, interiorPrefix string) []Entry {
	return index.ListChildren(interiorPrefix)
}

func (zipHandler) Extract(ctx context.Context, store objectstore.ObjectStore, bucket, key string, index *Index, entryPath string, progress ProgressSink) (io.ReadCloser, error) {
	entry, ok := index.FindEntry(entryPath)
	if !ok {
		return nil, objectstore.New(objectstore.KindNotFound, "Extract", entryPath, nil)
	}
	if entry.IsDir {
		return nil, objectstore.New(objectstore.KindNotADirectory, "Extract", entryPath, nil)
	}
	payload, ok := entry.Payload.(ZipEntryPayload)
	if !ok {
		return nil, objectstore.New(objectstore.KindInternal, "Extract", entryPath, nil)
	}

	if entry.Size > maxDecompressedSize {
		return nil, objectstore.New(objectstore.KindUnsupportedEntry, "Extract", entryPath, nil)
	}
	if payload.CompressedSize > 0 && entry.Size/payload.CompressedSize > maxCompressionRatio {
		return nil, objectstore.New(objectstore.KindUnsupportedEntry, "Extract", entryPath, nil)
	}

	head, err := store.Head(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	fileSize := head.Size
	if payload.LocalHeaderOffset >= fileSize {
		return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entryPath, nil)
	}

	localHeader, err := readAll(ctx, store, bucket, key, payload.LocalHeaderOffset, payload.LocalHeaderOffset+localHeaderMin-1)
	if err != nil {
		return nil, err
	}
	if len(localHeader) < localHeaderMin || !bytes.HasPrefix(localHeader, lfhSignature[:]) {
		return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entryPath, nil)
	}

	filenameLen := int64(binary.LittleEndian.Uint16(localHeader[26:28]))
	extraLen := int64(binary.LittleEndian.Uint16(localHeader[28:30]))
	dataOffset := payload.LocalHeaderOffset + localHeaderMin + filenameLen + extraLen
	dataEnd := dataOffset + payload.CompressedSize
	if dataEnd > fileSize {
		return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entryPath, nil)
	}

	if payload.CompressedSize == 0 {
		if entry.Size != 0 || payload.CRC32 != 0 {
			return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entryPath, nil)
		}
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	compressed, err := readAll(ctx, store, bucket, key, dataOffset, dataEnd-1)
	if err != nil {
		return nil, err
	}

	var decompressed []byte
	switch payload.CompressionMethod {
	case compressionStored:
		if payload.CompressedSize != entry.Size {
			return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entryPath, nil)
		}
		decompressed = compressed
	case compressionDeflate:
		fr := flate.NewReader(bytes.NewReader(compressed))
		defer fr.Close()
		decompressed, err = io.ReadAll(io.LimitReader(fr, maxDecompressedSize))
		if err != nil {
			return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entryPath, err)
		}
	default:
		return nil, objectstore.New(objectstore.KindUnsupportedEntry, "Extract", entryPath, nil)
	}
	report(progress, int64(len(decompressed)), entry.Size)

	if int64(len(decompressed)) != entry.Size {
		return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entryPath, nil)
	}
	if crc32.ChecksumIEEE(decompressed) != payload.CRC32 {
		return nil, objectstore.New(objectstore.KindCorruptArchive, "Extract", entryPath, nil)
	}

	return io.NopCloser(bytes.NewReader(decompressed)), nil
}

// findEOCD scans data (a suffix window of the archive) backward for the
// EOCD signature and rejects multi-disk and ZIP64 archives.
func findEOCD(data []byte) (eocdInfo, error) {
	for i := len(data) - minEOCDSize; i >= 0; i-- {
		if !bytes.HasPrefix(data[i:], eocdSignature[:]) {
			continue
		}
		eocd := data[i:]
		if len(eocd) < minEOCDSize {
			continue
		}

		diskNumber := binary.LittleEndian.Uint16(eocd[4:6])
		diskWithCD := binary.LittleEndian.Uint16(eocd[6:8])
		if diskNumber != 0 || diskWithCD != 0 {
			return eocdInfo{}, objectstore.New(objectstore.KindUnsupportedArchive, "findEOCD", "", nil)
		}

		cdSizeRaw := binary.LittleEndian.Uint32(eocd[12:16])
		cdOffsetRaw := binary.LittleEndian.Uint32(eocd[16:20])
		if cdSizeRaw == 0xFFFFFFFF || cdOffsetRaw == 0xFFFFFFFF {
			return eocdInfo{}, objectstore.New(objectstore.KindUnsupportedArchive, "findEOCD", "", nil)
		}

		return eocdInfo{centralDirOffset: int64(cdOffsetRaw), centralDirSize: int64(cdSizeRaw)}, nil
	}
	return eocdInfo{}, objectstore.New(objectstore.KindCorruptArchive, "findEOCD", "", nil)
}

// parseCentralDirectory walks fixed-size CDFH records plus their variable
// name/extra/comment fields.
func parseCentralDirectory(data []byte, archiveSize int64) (*Index, error) {
	index := NewIndex()
	pos := 0

	for pos+cdfhMinSize <= len(data) {
		if !bytes.HasPrefix(data[pos:], cdfhSignature[:]) {
			break
		}

		gpFlag := binary.LittleEndian.Uint16(data[pos+8 : pos+10])
		if gpFlag&0x0008 != 0 {
			return nil, objectstore.New(objectstore.KindUnsupportedEntry, "parseCentralDirectory", "", nil)
		}

		compressionMethod := binary.LittleEndian.Uint16(data[pos+10 : pos+12])
		crc := binary.LittleEndian.Uint32(data[pos+16 : pos+20])
		compressedRaw := binary.LittleEndian.Uint32(data[pos+20 : pos+24])
		uncompressedRaw := binary.LittleEndian.Uint32(data[pos+24 : pos+28])
		localOffsetRaw := binary.LittleEndian.Uint32(data[pos+42 : pos+46])

		if compressedRaw == 0xFFFFFFFF || uncompressedRaw == 0xFFFFFFFF || localOffsetRaw == 0xFFFFFFFF {
			return nil, objectstore.New(objectstore.KindUnsupportedArchive, "parseCentralDirectory", "", nil)
		}

		compressedSize := int64(compressedRaw)
		uncompressedSize := int64(uncompressedRaw)
		localHeaderOffset := int64(localOffsetRaw)

		if localHeaderOffset >= archiveSize {
			return nil, objectstore.New(objectstore.KindCorruptArchive, "parseCentralDirectory", "", nil)
		}

		filenameLen := int(binary.LittleEndian.Uint16(data[pos+28 : pos+30]))
		extraLen := int(binary.LittleEndian.Uint16(data[pos+30 : pos+32]))
		commentLen := int(binary.LittleEndian.Uint16(data[pos+32 : pos+34]))

		totalEntrySize := cdfhMinSize + filenameLen + extraLen + commentLen
		end := pos + totalEntrySize
		if end > len(data) {
			return nil, objectstore.New(objectstore.KindCorruptArchive, "parseCentralDirectory", "", nil)
		}

		filenameBytes := data[pos+cdfhMinSize : pos+cdfhMinSize+filenameLen]
		isUTF8 := gpFlag&(1<<11) != 0
		filename := decodeZipName(filenameBytes, isUTF8)

		if hasUnsafeSegments(filename) {
			return nil, objectstore.New(objectstore.KindUnsafePath, "parseCentralDirectory", filename, nil)
		}

		isDir := len(filename) > 0 && filename[len(filename)-1] == '/'
		index.Add(Entry{
			Path:  filename,
			Size:  uncompressedSize,
			IsDir: isDir,
			Payload: ZipEntryPayload{
				LocalHeaderOffset: localHeaderOffset,
				CompressedSize:    compressedSize,
				UncompressedSize:  uncompressedSize,
				CompressionMethod: compressionMethod,
				CRC32:             crc,
			},
		})

		pos = end
	}

	return index, nil
}

// decodeZipName decodes a filename per general-purpose bit 11: UTF-8 when
// set, otherwise treated as a legacy single-byte encoding (CP437 and
// similar) by mapping each byte to its own rune, matching original_source.
func decodeZipName(b []byte, isUTF8 bool) string {
	if isUTF8 {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func hasUnsafeSegments(name string) bool {
	seg := ""
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '/' {
			if seg == ".." {
				return true
			}
			seg = ""
			continue
		}
		seg += string(name[i])
	}
	return false
}

// readAll issues a single range read and buffers it fully; used for the
// bounded metadata reads (EOCD window, central directory, local header)
// where callers already know the size is small.
func readAll(ctx context.Context, store objectstore.ObjectStore, bucket, key string, start, end int64) ([]byte, error) {
	rc, err := store.GetRange(ctx, bucket, key, start, end)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

var _ Handler = zipHandler{}
