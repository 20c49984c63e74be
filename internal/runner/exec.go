package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// Mode is the leading token selecting the instrumentation test type.
const Mode = "instrumentation"

// Invocation describes one runner call for one module.
type Invocation struct {
	// Args are the base arguments plus the module's filter argument.
	Args []string
	// TestAPK is the path of the staged package.
	TestAPK string
	// ResultsFile, when set, asks the runner to write JSON results there.
	ResultsFile string
}

// InvocationError reports a runner process that could not be started. A
// runner that starts and exits non-zero is not an error.
type InvocationError struct {
	Path string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("start test runner %q: %v", e.Path, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Options configure how the runner is executed.
type Options struct {
	// Path is the test runner executable.
	Path   string
	Stdout io.Writer
	Stderr io.Writer
	Env    []string
	DryRun bool
	Log    log.Logger
}

// Runner invokes the external instrumentation test runner.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Log == nil {
		opts.Log = log.Root()
	}
	return &Runner{opts: opts}
}

// Command returns the full argument vector for inv.
func (r *Runner) Command(inv Invocation) []string {
	argv := make([]string, 0, len(inv.Args)+4)
	argv = append(argv, r.opts.Path, Mode)
	argv = append(argv, inv.Args...)
	argv = append(argv, "--test-apk="+inv.TestAPK)
	if inv.ResultsFile != "" {
		argv = append(argv, "--json-results-file="+inv.ResultsFile)
	}
	return argv
}

// Run blocks until the runner exits and returns its exit code. The context is
// only consulted before starting; a started runner is never interrupted.
func (r *Runner) Run(ctx context.Context, inv Invocation) (int, error) {
	argv := r.Command(inv)
	if r.opts.DryRun {
		fmt.Fprintln(r.opts.Stdout, strings.Join(argv, " "))
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.opts.Log.Debug("Starting test runner", "argv", strings.Join(argv, " "))
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = r.opts.Env
	cmd.Stdout = r.opts.Stdout
	cmd.Stderr = r.opts.Stderr

	err := cmd.Run()
	code := exitCode(err)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, &InvocationError{Path: r.opts.Path, Err: err}
		}
	}
	return code, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}
