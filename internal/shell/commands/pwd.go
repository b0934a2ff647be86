package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/s3fs-fuse/s3vfs-go/internal/shell"
)

// Pwd implements the pwd command.
type Pwd struct{}

func (Pwd) Name() string  { return "pwd" }
func (Pwd) Usage() string { return "pwd - Print working directory" }

func (Pwd) Execute(ctx context.Context, state *shell.State, args []string, out io.Writer) error {
	fmt.Fprintln(out, state.Path())
	return nil
}
