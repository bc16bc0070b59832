// Package runcmd implements the ember command-line entry point: a REPL
// when invoked with no script argument, file interpretation otherwise, and
// the exit-code mapping a shell expects (0 success, 64 usage error, 65
// compile error, 70 runtime error, 74 file I/O error).
package runcmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/ember/lang/value"
	"github.com/mna/ember/lang/vm"
)

const binName = "ember"

var (
	shortUsage = fmt.Sprintf("usage: %s [script]\n", binName)

	longUsage = fmt.Sprintf(`usage: %s [script]
       %[1]s -h|--help
       %[1]s -v|--version

Interpreter for the ember scripting language. With no script, starts a
REPL; with a script path, compiles and runs it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
`, binName)
)

// Cmd is the ember command, wired up by cmd/ember/main.go.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		return errors.New("too many arguments")
	}
	return nil
}

// exit codes, per the standard sysexits.h conventions this tool follows.
const (
	exitUsage      mainer.ExitCode = 64
	exitCompileErr mainer.ExitCode = 65
	exitRuntimeErr mainer.ExitCode = 70
	exitIOErr      mainer.ExitCode = 74
)

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return exitUsage
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	cfg, err := vm.LoadConfig()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid configuration: %s\n", err)
		return exitUsage
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)

	if len(c.args) == 0 {
		return runREPL(ctx, stdio, cfg)
	}
	return runFile(ctx, stdio, cfg, c.args[0])
}

func newVM(stdio mainer.Stdio, cfg vm.Config) *vm.VM {
	heap := value.NewHeap()
	interp := vm.New(heap, cfg)
	interp.Stdout = stdio.Stdout
	interp.Stderr = stdio.Stderr
	return interp
}

// runREPL reads one line at a time, compiling and running each as its own
// top-level program; a compile or runtime error in one line is reported
// but does not end the session, matching a REPL's forgiving turnaround.
func runREPL(ctx context.Context, stdio mainer.Stdio, cfg vm.Config) mainer.ExitCode {
	interp := newVM(stdio, cfg)
	scan := bufio.NewScanner(stdio.Stdin)

	for {
		fmt.Fprint(stdio.Stdout, ">> ")
		if !scan.Scan() {
			fmt.Fprintln(stdio.Stdout)
			return mainer.Success
		}
		select {
		case <-ctx.Done():
			return mainer.Success
		default:
		}
		interp.Interpret([]byte(scan.Text()))
	}
}

func runFile(ctx context.Context, stdio mainer.Stdio, cfg vm.Config, path string) mainer.ExitCode {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
		return exitIOErr
	}

	interp := newVM(stdio, cfg)
	switch interp.Interpret(source) {
	case vm.ResultCompileError:
		return exitCompileErr
	case vm.ResultRuntimeError:
		return exitRuntimeErr
	default:
		return mainer.Success
	}
}
