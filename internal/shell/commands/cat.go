package commands

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/s3fs-fuse/s3vfs-go/internal/shell"
)

const catHexDumpLimit = 1024

// Cat implements the cat command.
type Cat struct{}

func (Cat) Name() string  { return "cat" }
func (Cat) Usage() string { return "cat FILE - Display file contents" }

func (Cat) Execute(ctx context.Context, state *shell.State, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: cat FILE")
	}

	target, err := state.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	if target.IsListable() {
		return fmt.Errorf("cat: is a directory: %s", args[0])
	}

	rc, err := state.Resolver().Extract(ctx, target)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("cat: %w", err)
	}

	renderContents(out, data)
	return nil
}

// renderContents writes data to out as UTF-8 text when it is valid UTF-8,
// or otherwise as a hex dump of its first catHexDumpLimit bytes.
func renderContents(out io.Writer, data []byte) {
	if utf8.Valid(data) {
		out.Write(data)
		return
	}

	fmt.Fprintln(out, "Warning: file contains binary data")

	displayLen := len(data)
	if displayLen > catHexDumpLimit {
		displayLen = catHexDumpLimit
	}
	for i := 0; i < displayLen; i++ {
		if i%16 == 0 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%08x: ", i)
		}
		fmt.Fprintf(out, "%02x ", data[i])
	}
	fmt.Fprintln(out)

	if len(data) > catHexDumpLimit {
		fmt.Fprintf(out, "... (%d more bytes)\n", len(data)-catHexDumpLimit)
	}
}
