// Package logging builds the structured loggers used by ctsrun.
package logging

import (
	"io"

	"github.com/ethereum/go-ethereum/log"
)

// New returns a terminal logger writing to w. Debug output is enabled when
// verbose is set.
func New(w io.Writer, verbose bool) log.Logger {
	level := log.LevelInfo
	if verbose {
		level = log.LevelDebug
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, false))
}

// Install makes l the process-wide root logger and returns it.
func Install(l log.Logger) log.Logger {
	log.SetDefault(l)
	return l
}

// Discard returns a logger that drops every record.
func Discard() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}
