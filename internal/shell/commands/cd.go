package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
	"github.com/s3fs-fuse/s3vfs-go/internal/shell"
	"github.com/s3fs-fuse/s3vfs-go/internal/vfs"
)

// Cd implements the cd command.
type Cd struct{}

func (Cd) Name() string  { return "cd" }
func (Cd) Usage() string { return "cd [PATH] - Change current directory" }

func (Cd) Execute(ctx context.Context, state *shell.State, args []string, out io.Writer) error {
	if len(args) == 0 {
		state.SetCurrent(vfs.NewRoot())
		return nil
	}

	target, err := state.Resolve(ctx, args[0])
	if err != nil {
		if objectstore.Is(err, objectstore.KindNotFound) {
			return fmt.Errorf("cd: %s: No such file or directory", args[0])
		}
		return err
	}
	if !target.IsNavigable() {
		return fmt.Errorf("cd: not a directory: %s", args[0])
	}
	state.SetCurrent(target)
	return nil
}
