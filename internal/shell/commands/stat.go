package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/s3fs-fuse/s3vfs-go/internal/shell"
	"github.com/s3fs-fuse/s3vfs-go/internal/vfs"
)

// Stat implements the stat command: it prints a node's kind, size, and,
// for an entry inside an archive, the container format it was read from.
type Stat struct{}

func (Stat) Name() string  { return "stat" }
func (Stat) Usage() string { return "stat PATH - Show path metadata" }

func (Stat) Execute(ctx context.Context, state *shell.State, args []string, out io.Writer) error {
	var target vfs.Node
	if len(args) == 0 {
		target = state.Current()
	} else {
		resolved, err := state.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		target = resolved
	}

	fmt.Fprintf(out, "Path:  %s\n", target.DisplayPath())
	fmt.Fprintf(out, "Kind:  %s\n", nodeKind(target))
	if size, ok := nodeSize(target); ok {
		fmt.Fprintf(out, "Size:  %s (%d bytes)\n", humanize.Bytes(uint64(size)), size)
	}
	if archiveKind := archiveContainerKind(target); archiveKind != "" {
		fmt.Fprintf(out, "Container: %s\n", archiveKind)
	}
	return nil
}

func nodeKind(n vfs.Node) string {
	switch n.Type {
	case vfs.NodeRoot:
		return "root"
	case vfs.NodeBucket:
		return "bucket"
	case vfs.NodePrefix:
		return "prefix"
	case vfs.NodeObject:
		return "object"
	case vfs.NodeArchive:
		return "archive"
	case vfs.NodeArchiveEntry:
		if n.IsDir {
			return "archive directory"
		}
		return "archive entry"
	default:
		return "unknown"
	}
}

func nodeSize(n vfs.Node) (int64, bool) {
	switch n.Type {
	case vfs.NodeObject, vfs.NodeArchiveEntry:
		return n.Size, true
	default:
		return 0, false
	}
}

// archiveContainerKind reports the archive format backing n: the format of
// n itself when n is an Archive, or of the archive it was extracted from
// when n is an ArchiveEntry. Parquet entries are all synthesized (there's
// no byte range in the file that corresponds to one directly, unlike a tar
// or zip entry), so they're reported as "parquet-virtual" rather than
// plain "parquet".
func archiveContainerKind(n vfs.Node) string {
	switch n.Type {
	case vfs.NodeArchive:
		return n.Kind.String()
	case vfs.NodeArchiveEntry:
		kind := n.Archive.Kind.String()
		if n.Archive.Kind == vfs.KindParquet {
			kind = "parquet-virtual"
		}
		return kind
	default:
		return ""
	}
}
