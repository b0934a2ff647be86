package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/s3fs-fuse/s3vfs-go/internal/cache"
	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
)

// echoCommand writes its arguments joined by spaces, for exercising the
// dispatcher without depending on the commands package.
type echoCommand struct{}

func (echoCommand) Name() string  { return "echo" }
func (echoCommand) Usage() string { return "echo ARGS..." }
func (echoCommand) Execute(ctx context.Context, state *State, args []string, out io.Writer) error {
	out.Write([]byte(strings.Join(args, " ") + "\n"))
	return nil
}

// failCommand always fails, to exercise error propagation.
type failCommand struct{}

func (failCommand) Name() string  { return "fail" }
func (failCommand) Usage() string { return "fail - always errors" }
func (failCommand) Execute(ctx context.Context, state *State, args []string, out io.Writer) error {
	return errors.New("boom")
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	store := objectstore.NewFixture()
	caches, err := cache.DefaultManager()
	if err != nil {
		t.Fatalf("DefaultManager: %v", err)
	}
	state := NewState(store, caches)
	d := NewDispatcher(state)
	d.Register(echoCommand{}, failCommand{})
	return d
}

func TestRunLineExit(t *testing.T) {
	d := newTestDispatcher(t)
	var out, errOut bytes.Buffer
	for _, line := range []string{"exit", "quit"} {
		if err := d.RunLine(context.Background(), line, &out, &errOut); !errors.Is(err, ErrExit) {
			t.Errorf("RunLine(%q) = %v, want ErrExit", line, err)
		}
	}
}

func TestRunLineHelp(t *testing.T) {
	d := newTestDispatcher(t)
	var out, errOut bytes.Buffer
	if err := d.RunLine(context.Background(), "help", &out, &errOut); err != nil {
		t.Fatalf("RunLine(help): %v", err)
	}
	if !strings.Contains(out.String(), "Available commands") {
		t.Errorf("help output = %q, want banner", out.String())
	}
}

func TestRunLineUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t)
	var out, errOut bytes.Buffer
	if err := d.RunLine(context.Background(), "bogus", &out, &errOut); err != nil {
		t.Fatalf("RunLine(bogus) returned error %v, want nil (errors surface via stderr)", err)
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Errorf("stderr = %q, want unknown command message", errOut.String())
	}
}

func TestRunLineExecutesRegisteredCommand(t *testing.T) {
	d := newTestDispatcher(t)
	var out, errOut bytes.Buffer
	if err := d.RunLine(context.Background(), "echo hello world", &out, &errOut); err != nil {
		t.Fatalf("RunLine(echo): %v", err)
	}
	if out.String() != "hello world\n" {
		t.Errorf("out = %q, want %q", out.String(), "hello world\n")
	}
	if errOut.Len() != 0 {
		t.Errorf("stderr = %q, want empty", errOut.String())
	}
}

func TestRunLineCommandErrorGoesToStderr(t *testing.T) {
	d := newTestDispatcher(t)
	var out, errOut bytes.Buffer
	if err := d.RunLine(context.Background(), "fail", &out, &errOut); err != nil {
		t.Fatalf("RunLine(fail) returned %v, want nil", err)
	}
	if !strings.Contains(errOut.String(), "boom") {
		t.Errorf("stderr = %q, want boom message", errOut.String())
	}
}

func TestRunLineTokenizeErrorReportedNotFatal(t *testing.T) {
	d := newTestDispatcher(t)
	var out, errOut bytes.Buffer
	if err := d.RunLine(context.Background(), `echo "unterminated`, &out, &errOut); err != nil {
		t.Fatalf("RunLine returned %v, want nil", err)
	}
	if !strings.Contains(errOut.String(), "unterminated quote") {
		t.Errorf("stderr = %q, want unterminated quote message", errOut.String())
	}
}

func TestRunLineExternalPipeline(t *testing.T) {
	d := newTestDispatcher(t)
	var out, errOut bytes.Buffer
	if err := d.RunLine(context.Background(), "echo hello | cat", &out, &errOut); err != nil {
		t.Fatalf("RunLine(echo | cat): %v", err)
	}
	if !strings.Contains(out.String(), "hello") {
		t.Errorf("piped output = %q, want it to contain hello", out.String())
	}
}

func TestRunLineBlankInput(t *testing.T) {
	d := newTestDispatcher(t)
	var out, errOut bytes.Buffer
	if err := d.RunLine(context.Background(), "   ", &out, &errOut); err != nil {
		t.Fatalf("RunLine(blank): %v", err)
	}
	if out.Len() != 0 || errOut.Len() != 0 {
		t.Errorf("blank line produced output: out=%q err=%q", out.String(), errOut.String())
	}
}
