// Package output renders run summaries and module listings.
package output

import (
	"fmt"
	"io"

	"github.com/bgricker/ctsrun/internal/config"
	"github.com/bgricker/ctsrun/internal/report"
)

// Renderer writes command results to a stream.
type Renderer interface {
	RenderResults(summary report.Summary) error
	RenderList(list List) error
}

// List describes the modules that would run for a target.
type List struct {
	Arch     string      `json:"arch"`
	Platform string      `json:"platform"`
	Modules  []ListEntry `json:"modules"`
}

// ListEntry is one module and the filter argument it would receive.
type ListEntry struct {
	Module string `json:"module"`
	APK    string `json:"apk"`
	Filter string `json:"filter,omitempty"`
}

// New returns the renderer for format.
func New(format string, out io.Writer) (Renderer, error) {
	switch format {
	case "", config.FormatPretty:
		return NewPretty(out), nil
	case config.FormatJSON:
		return NewJSON(out), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
