package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bgricker/ctsrun/internal/report"
)

// PrettyRenderer renders execution results as tables.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderList renders the modules for a target in execution order.
func (p *PrettyRenderer) RenderList(list List) error {
	t := p.newTable(fmt.Sprintf("CTS modules (arch:%s, platform:%s)", list.Arch, list.Platform))
	t.AppendHeader(table.Row{"#", "Module", "Filter"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Filter", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})
	for i, entry := range list.Modules {
		filter := entry.Filter
		if filter == "" {
			filter = "-"
		}
		t.AppendRow(table.Row{i + 1, entry.Module, filter})
	}
	t.Render()
	return nil
}

// RenderResults shows execution outcomes for modules with a summary.
func (p *PrettyRenderer) RenderResults(summary report.Summary) error {
	t := p.newTable(fmt.Sprintf("CTS results (arch:%s, platform:%s)", summary.Arch, summary.Platform))
	t.AppendHeader(table.Row{"", "Module", "Duration", "Exit", "Results"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Exit", Align: text.AlignRight},
	})
	for _, res := range summary.Modules {
		merged := "-"
		if res.ResultsMerged {
			merged = "merged"
		}
		t.AppendRow(table.Row{statusGlyph(res.Status), res.Module, formatDuration(res.Duration), res.ExitCode, merged})
	}
	t.AppendFooter(table.Row{"", "TOTAL", formatDuration(summary.Duration), summary.ExitCode, ""})
	t.Render()

	if summary.ResultsPath != "" {
		fmt.Fprintf(p.out, "Results: %s (sha256 %s)\n", summary.ResultsPath, summary.ResultsDigest)
	}
	_, err := fmt.Fprintf(p.out, "SUMMARY: %d passed, %d failed, %d skipped (%s)\n", summary.Passed, summary.Failed, summary.Skipped, formatDuration(summary.Duration))
	return err
}

func (p *PrettyRenderer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)
	return t
}

func statusGlyph(status string) string {
	switch status {
	case report.StatusPassed:
		return "✓"
	case report.StatusFailed:
		return "✗"
	case report.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}
