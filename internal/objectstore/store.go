package objectstore

import (
	"context"
	"io"
	"time"
)

// BucketInfo describes one bucket returned by ListBuckets.
type BucketInfo struct {
	Name         string
	CreationDate time.Time
}

// ObjectInfo describes one object returned by ListPrefix.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ListPrefixResult is one page of a delimited listing.
type ListPrefixResult struct {
	CommonPrefixes    []string
	Objects           []ObjectInfo
	NextContinuation  string
	IsTruncated       bool
}

// HeadInfo is the metadata returned by Head.
type HeadInfo struct {
	Size        int64
	ContentType string
}

// DefaultListCap bounds how many entries a single completion-oriented
// ListPrefix call fetches when the caller only wants the first page.
const DefaultListCap = 1000

// ObjectStore is the minimal remote-storage port the VFS core talks to.
// Every method may fail with an *Error whose Kind is one of KindNotFound,
// KindPermissionDenied, KindAuthError, KindNetworkError, KindProtocolError
// (GetRange with a range the object cannot satisfy), or KindInternal.
//
// The core never imports a vendor SDK directly; ObjectStore may be backed
// by AWS S3, a public anonymous HTTP endpoint, a SQL/NoSQL blob table, or
// an in-memory fixture for tests.
type ObjectStore interface {
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// ListPrefix lists objects under prefix, delimited at delim (typically
	// "/"). continuation, if non-empty, resumes a prior truncated listing.
	ListPrefix(ctx context.Context, bucket, prefix, delim, continuation string) (ListPrefixResult, error)

	Head(ctx context.Context, bucket, key string) (HeadInfo, error)

	// GetRange returns a stream over [start, end]. end == -1 means "open",
	// i.e. read to EOF. A negative start with end == -1 is a suffix range
	// meaning "the last -start bytes", emulated via Head+GetRange where the
	// underlying transport has no native suffix-range support.
	GetRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error)

	GetFull(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
