package output

import (
	"encoding/json"
	"io"

	"github.com/bgricker/ctsrun/internal/report"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// RenderResults encodes the run summary.
func (j *JSONRenderer) RenderResults(summary report.Summary) error {
	if summary.Modules == nil {
		summary.Modules = []report.ModuleResult{}
	}
	return j.encode(summary)
}

// RenderList encodes the module listing.
func (j *JSONRenderer) RenderList(list List) error {
	if list.Modules == nil {
		list.Modules = []ListEntry{}
	}
	return j.encode(list)
}

func (j *JSONRenderer) encode(v any) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
