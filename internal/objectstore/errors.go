// Package objectstore defines the minimal remote-storage port the VFS core
// talks to, plus the stable error taxonomy every ObjectStore implementation
// must report through.
package objectstore

import (
	"errors"
	"fmt"
)

// ErrKind is the closed set of error categories every ObjectStore
// implementation, archive handler, and resolver reports through.
type ErrKind int

const (
	KindUnknown ErrKind = iota
	KindNotFound
	KindPermissionDenied
	KindAuthError
	KindNetworkError
	KindProtocolError
	KindUnsupportedArchive
	KindUnsupportedEntry
	KindCorruptArchive
	KindUnsafePath
	KindNotADirectory
	KindAmbiguous
	KindCanceled
	KindTimeout
	KindInternal
)

func (k ErrKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindAuthError:
		return "AuthError"
	case KindNetworkError:
		return "NetworkError"
	case KindProtocolError:
		return "ProtocolError"
	case KindUnsupportedArchive:
		return "UnsupportedArchive"
	case KindUnsupportedEntry:
		return "UnsupportedEntry"
	case KindCorruptArchive:
		return "CorruptArchive"
	case KindUnsafePath:
		return "UnsafePath"
	case KindNotADirectory:
		return "NotADirectory"
	case KindAmbiguous:
		return "Ambiguous"
	case KindCanceled:
		return "Canceled"
	case KindTimeout:
		return "Timeout"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the wrapped error type every component in this repo returns.
// It carries a stable Kind so callers can branch with errors.As without
// string matching.
type Error struct {
	Kind ErrKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Path, e.msg())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.msg())
}

func (e *Error) msg() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, target) report true when target is (or wraps) an
// *Error with the same Kind, whatever its Op, Path and Err.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error for the given kind, operation, and path.
func New(kind ErrKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf extracts the ErrKind of err, or KindUnknown if err is not (or does
// not wrap) an *Error.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind ErrKind) bool {
	return KindOf(err) == kind
}
