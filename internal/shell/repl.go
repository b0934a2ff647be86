package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// Exit codes per spec.md §6.
const (
	ExitOK       = 0
	ExitUsage    = 1
	ExitRuntime  = 2
	ExitInterrupted = 130
)

// Run drives the REPL: interactive mode prints a prompt and loops until
// exit/EOF; non-interactive mode (stdin not a TTY) reads one command per
// line with no prompt, executing each and exiting nonzero on the first
// command error, per spec.md §6. If history is non-nil, every non-blank
// line read is appended to it before execution.
func Run(ctx context.Context, d *Dispatcher, in io.Reader, out, errOut io.Writer, interactive bool, history io.Writer) int {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprintf(out, "s3vfs:%s $ ", d.State().Path())
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if history != nil && line != "" {
			fmt.Fprintln(history, line)
		}

		if !interactive {
			var lineErr error
			err := runNonInteractiveLine(ctx, d, line, out, errOut, &lineErr)
			if errors.Is(err, ErrExit) {
				return ExitOK
			}
			if lineErr != nil {
				return ExitRuntime
			}
			continue
		}

		if err := d.RunLine(ctx, line, out, errOut); err != nil {
			if errors.Is(err, ErrExit) {
				return ExitOK
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(errOut, err)
		return ExitRuntime
	}
	return ExitOK
}

// runNonInteractiveLine executes line and reports, via lineErr, whether the
// command itself failed (as opposed to RunLine's own always-nil return for
// recoverable interactive errors) so Run can pick the right exit code.
func runNonInteractiveLine(ctx context.Context, d *Dispatcher, line string, out, errOut io.Writer, lineErr *error) error {
	capture := &errorCapturingWriter{Writer: errOut}
	err := d.RunLine(ctx, line, out, capture)
	if capture.wrote {
		*lineErr = fmt.Errorf("command error")
	}
	return err
}

// errorCapturingWriter forwards to Writer while remembering whether
// anything was ever written to it, so the caller can tell an error line
// was emitted without re-parsing stderr text.
type errorCapturingWriter struct {
	io.Writer
	wrote bool
}

func (w *errorCapturingWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.wrote = true
	}
	return w.Writer.Write(p)
}
