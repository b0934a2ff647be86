package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Command is one built-in shell command, registered with a Dispatcher by
// name. Implementations write their result to out and must not print
// directly to os.Stdout, so output can be captured and piped.
type Command interface {
	Name() string
	Usage() string
	Execute(ctx context.Context, state *State, args []string, out io.Writer) error
}

// ErrExit is returned by RunLine when the line was "exit" or "quit",
// signalling the caller's REPL loop to stop.
var ErrExit = errors.New("shell: exit requested")

// Dispatcher tokenizes and executes command lines against a shared State.
// It is not safe for concurrent RunLine calls; spec.md's concurrency
// model requires exactly one command in flight at a time.
type Dispatcher struct {
	state    *State
	commands map[string]Command
}

// NewDispatcher returns a Dispatcher over state with no commands
// registered; call Register to add the built-in command set.
func NewDispatcher(state *State) *Dispatcher {
	return &Dispatcher{state: state, commands: make(map[string]Command)}
}

// Register adds commands to the dispatcher's table, keyed by Name().
func (d *Dispatcher) Register(cmds ...Command) {
	for _, c := range cmds {
		d.commands[c.Name()] = c
	}
}

// State returns the dispatcher's shell state.
func (d *Dispatcher) State() *State { return d.state }

// Commands returns the registered command table, for completion and help.
func (d *Dispatcher) Commands() map[string]Command { return d.commands }

// RunLine tokenizes and executes one command line, writing its output to
// stdout and any error to stderr as a single line (per spec.md: the
// interactive dispatcher never lets a command error abort the REPL). A
// pipeline ("cmd | external ...") runs the first stage's Command in-process
// and feeds its stdout to the remaining stages as an external OS pipeline.
func (d *Dispatcher) RunLine(ctx context.Context, line string, stdout, stderr io.Writer) error {
	stages := SplitPipeline(line)
	first := stages[0]

	tokens, err := Tokenize(first)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}

	name, args := tokens[0], tokens[1:]

	switch name {
	case "exit", "quit":
		return ErrExit
	case "help":
		d.printHelp(stdout)
		return nil
	}

	out := stdout
	var pipeCmd *exec.Cmd
	if len(stages) > 1 {
		pipeCmd, out, err = buildExternalPipeline(ctx, stages[1:], stdout, stderr)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return nil
		}
	}

	cmd, ok := d.commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %s\n", name)
		return nil
	}

	execErr := cmd.Execute(ctx, d.state, args, out)

	if pipeCmd != nil {
		if closer, ok := out.(io.Closer); ok {
			closer.Close()
		}
		waitErr := pipeCmd.Wait()
		if execErr == nil {
			execErr = waitErr
		}
	}

	if execErr != nil {
		fmt.Fprintln(stderr, execErr)
	}
	return nil
}

// buildExternalPipeline wires an external OS command chain (POSIX only, as
// spec.md §6 scopes pipe support) to receive the in-process command's
// stdout, and returns the write end the in-process command should use.
func buildExternalPipeline(ctx context.Context, externalStages []string, stdout, stderr io.Writer) (*exec.Cmd, io.WriteCloser, error) {
	if len(externalStages) != 1 {
		return nil, nil, fmt.Errorf("only a single external pipeline stage is supported")
	}
	extTokens, err := Tokenize(externalStages[0])
	if err != nil {
		return nil, nil, err
	}
	if len(extTokens) == 0 {
		return nil, nil, fmt.Errorf("empty pipeline stage")
	}

	cmd := exec.CommandContext(ctx, extTokens[0], extTokens[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	pipeWriter, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return cmd, pipeWriter, nil
}

func (d *Dispatcher) printHelp(out io.Writer) {
	fmt.Fprintln(out, "Available commands:")
	fmt.Fprintln(out, "  ls [-l] [-R] [PATH]   - List contents")
	fmt.Fprintln(out, "  cd [PATH]             - Change directory")
	fmt.Fprintln(out, "  cat FILE              - Display file contents")
	fmt.Fprintln(out, "  pwd                   - Print working directory")
	fmt.Fprintln(out, "  stat PATH             - Show path metadata")
	fmt.Fprintln(out, "  help                  - Show this help")
	fmt.Fprintln(out, "  exit, quit            - Exit the shell")
}

// IsTerminal reports whether f looks like an interactive terminal. It's
// deliberately conservative: anything it can't confirm is treated as
// non-interactive, matching spec.md's "not a TTY" batch-mode trigger.
func IsTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
