// Package commands implements the shell's built-in command set: ls, cd,
// cat, pwd, and stat, each a shell.Command executed against shared
// shell.State.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gobwas/glob"

	"github.com/s3fs-fuse/s3vfs-go/internal/cache"
	"github.com/s3fs-fuse/s3vfs-go/internal/shell"
	"github.com/s3fs-fuse/s3vfs-go/internal/vfs"
)

// Ls implements the ls command.
type Ls struct{}

func (Ls) Name() string  { return "ls" }
func (Ls) Usage() string { return "ls [-l] [-R] [PATH] - List directory contents" }

func (Ls) Execute(ctx context.Context, state *shell.State, args []string, out io.Writer) error {
	var longFormat bool
	var pathArg string
	havePath := false

	for _, arg := range args {
		switch {
		case arg == "-l":
			longFormat = true
		case arg == "-R" || arg == "-r":
			// Recursion is intentionally not implemented; the flag is
			// accepted so scripts using it don't fail on "unknown flag".
		case !strings.HasPrefix(arg, "-"):
			if !havePath {
				pathArg = arg
				havePath = true
			}
		}
	}

	var target vfs.Node
	var pattern glob.Glob

	if havePath && (strings.ContainsAny(pathArg, "*?")) {
		parentPath, globPattern := splitLast(pathArg)
		var err error
		if parentPath == "" {
			target = state.Current()
		} else {
			target, err = state.Resolve(ctx, parentPath)
			if err != nil {
				return err
			}
		}
		pattern, err = glob.Compile(globPattern)
		if err != nil {
			return fmt.Errorf("ls: bad pattern %q: %w", globPattern, err)
		}
	} else if havePath {
		resolved, err := state.Resolve(ctx, pathArg)
		if err != nil {
			return err
		}
		target = resolved
	} else {
		target = state.Current()
	}

	if !target.IsListable() {
		return fmt.Errorf("ls: not a directory: %s", target.DisplayPath())
	}

	children, err := state.Resolver().ListChildren(ctx, target)
	if err != nil {
		return err
	}
	warmCompletionCache(state, target, children)

	if longFormat {
		fmt.Fprintf(out, "%-50s %12s\n", "NAME", "SIZE")
		fmt.Fprintln(out, strings.Repeat("-", 65))
	}

	for _, child := range children {
		name := child.Name()
		if pattern != nil && !pattern.Match(name) {
			continue
		}
		isDir := child.IsListable()

		if longFormat {
			sizeCol := "-"
			if !isDir {
				sizeCol = humanize.Bytes(uint64(childSize(child)))
			}
			label := name
			if isDir {
				label += "/"
			}
			fmt.Fprintf(out, "%-50s %12s\n", label, sizeCol)
		} else if isDir {
			fmt.Fprintf(out, "%s/\n", name)
		} else {
			fmt.Fprintln(out, name)
		}
	}
	return nil
}

// warmCompletionCache stores a completed ls's listing in the completion
// cache under target's path, so a later cd or tab-completion attempt at the
// same location reuses it instead of re-listing (spec.md §4.9 point 3).
func warmCompletionCache(state *shell.State, target vfs.Node, children []vfs.Node) {
	entries := make([]cache.CompletionEntry, 0, len(children))
	for _, child := range children {
		entries = append(entries, cache.CompletionEntry{Name: child.Name(), IsDir: child.IsListable()})
	}
	state.Caches().GetCompletionCache().SetEntries(target.DisplayPath(), entries)
}

func childSize(n vfs.Node) int64 {
	switch n.Type {
	case vfs.NodeObject, vfs.NodeArchiveEntry:
		return n.Size
	default:
		return 0
	}
}

// splitLast splits path at its final "/" into a parent path and the
// trailing segment, mirroring rfind('/') in the original shell's glob
// handling.
func splitLast(path string) (parent, last string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
