// Package report holds the per-module outcomes and the run summary.
package report

import "time"

// Module statuses as they appear in rendered output.
const (
	// StatusPassed marks a module whose runner exited 0.
	StatusPassed = "passed"
	// StatusFailed marks a module whose runner exited non-zero.
	StatusFailed = "failed"
	// StatusSkipped marks a module that was only printed in a dry run.
	StatusSkipped = "skipped"
)

// ModuleResult captures the outcome of one runner invocation.
type ModuleResult struct {
	Module        string        `json:"module"`
	APK           string        `json:"apk"`
	Filter        string        `json:"filter,omitempty"`
	Status        string        `json:"status"`
	ExitCode      int           `json:"exit_code"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"duration_ms"`
	ResultsMerged bool          `json:"results_merged"`
}

// StatusFor maps a runner exit code to a module status.
func StatusFor(exitCode int, dryRun bool) string {
	switch {
	case dryRun:
		return StatusSkipped
	case exitCode == 0:
		return StatusPassed
	default:
		return StatusFailed
	}
}

// Summary aggregates a whole run.
type Summary struct {
	RunID         string         `json:"run_id"`
	Arch          string         `json:"arch"`
	Platform      string         `json:"platform"`
	TotalModules  int            `json:"total_modules"`
	Passed        int            `json:"passed"`
	Failed        int            `json:"failed"`
	Skipped       int            `json:"skipped"`
	Duration      time.Duration  `json:"-"`
	DurationMS    int64          `json:"duration_ms"`
	ExitCode      int            `json:"exit_code"`
	ResultsPath   string         `json:"results_path,omitempty"`
	ResultsDigest string         `json:"results_digest,omitempty"`
	Modules       []ModuleResult `json:"modules"`
}

// Add records res and updates the counters.
func (s *Summary) Add(res ModuleResult) {
	res.DurationMS = res.Duration.Milliseconds()
	s.Modules = append(s.Modules, res)
	s.TotalModules++
	switch res.Status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}

// Finish stamps the total duration.
func (s *Summary) Finish(d time.Duration) {
	s.Duration = d
	s.DurationMS = d.Milliseconds()
}
