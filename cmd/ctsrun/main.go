package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err, os.Stderr))
	}
}

// exitError carries the aggregate runner exit code out of a completed run.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("one or more modules failed (exit code %d)", e.code)
}

// exitCodeFor maps a command error to the process exit status. Runs that
// completed exit with the runner's code; every other error prints and exits 1.
func exitCodeFor(err error, stderr io.Writer) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code <= 0 || ee.code > 255 {
			return 1
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}
