// Package sequencer runs the modules of one arch/platform pair in manifest
// order against the external test runner and folds their result documents
// into a single cumulative document.
package sequencer

import (
	"context"
	"slices"
	"strings"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/bgricker/ctsrun/internal/archive"
	"github.com/bgricker/ctsrun/internal/config"
	"github.com/bgricker/ctsrun/internal/filter"
	"github.com/bgricker/ctsrun/internal/manifest"
	"github.com/bgricker/ctsrun/internal/metrics"
	"github.com/bgricker/ctsrun/internal/report"
	"github.com/bgricker/ctsrun/internal/results"
	"github.com/bgricker/ctsrun/internal/runner"
)

// Stager extracts the archive for an arch/platform pair.
type Stager interface {
	Stage(m manifest.Manifest, arch, platform, dest string) (*archive.Staged, error)
}

// Invoker runs the external test runner once and returns its exit code.
type Invoker interface {
	Run(ctx context.Context, inv runner.Invocation) (int, error)
}

// Options configure a Sequencer.
type Options struct {
	Catalog manifest.Manifest
	Stager  Stager
	// ExtractDir is the persistent extraction root. Empty means a temporary
	// root removed when the run ends.
	ExtractDir string
	Invoker    Invoker
	Filters    filter.Options
	// Module restricts the run to the module with this basename.
	Module   string
	BaseArgs []string
	// ResultsPath receives the cumulative results document. Empty disables
	// per-module results collection.
	ResultsPath string
	// TempDir holds the per-module results files. Empty means os.TempDir.
	TempDir string
	DryRun  bool

	Clock   clock.Clock
	Log     log.Logger
	Metrics *metrics.Recorder
	RunID   string
}

// Step is one planned runner invocation.
type Step struct {
	Module    manifest.ModuleRun
	Directive filter.Directive
}

// Sequencer executes modules one at a time.
type Sequencer struct {
	opts Options
}

// New creates a sequencer with the supplied options.
func New(opts Options) *Sequencer {
	if opts.Clock == nil {
		opts.Clock = clock.NewClock()
	}
	if opts.Log == nil {
		opts.Log = log.Root()
	}
	return &Sequencer{opts: opts}
}

// Plan resolves the modules for arch and platform and the filter each one
// receives. Every module and the module restriction are validated before
// anything is returned.
func (s *Sequencer) Plan(arch, platform string) ([]Step, error) {
	if err := s.opts.Filters.Validate(); err != nil {
		return nil, err
	}
	modules, err := manifest.ResolveModules(s.opts.Catalog, arch, platform)
	if err != nil {
		return nil, err
	}
	if err := manifest.ValidateModules(modules); err != nil {
		return nil, err
	}
	if s.opts.Module != "" {
		names, err := manifest.ModuleNames(s.opts.Catalog, arch, platform)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(names, s.opts.Module) {
			return nil, config.Invalidf("--module-apk for arch==%s and platform==%s must be one of: %s",
				arch, platform, strings.Join(names, ", "))
		}
	}

	steps := make([]Step, 0, len(modules))
	for _, m := range modules {
		if s.opts.Module != "" && m.Name() != s.opts.Module {
			continue
		}
		d, err := filter.Compose(s.opts.Filters, m)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Module: m, Directive: d})
	}
	return steps, nil
}

// RunAll stages the archive, runs every planned module in order and writes
// the cumulative results document. The summary's ExitCode is the exit code of
// the last module that exited non-zero, or 0. Cancellation of ctx is observed
// between modules only.
//
// The returned summary holds every module that ran, also when an error is
// returned.
func (s *Sequencer) RunAll(ctx context.Context, arch, platform string) (summary report.Summary, err error) {
	start := s.opts.Clock.Now()
	summary = report.Summary{RunID: s.opts.RunID, Arch: arch, Platform: platform}
	defer func() {
		summary.Finish(s.opts.Clock.Since(start))
		s.opts.Metrics.RecordRun(arch, platform, summary.ExitCode, summary.Duration)
	}()

	steps, err := s.Plan(arch, platform)
	if err != nil {
		return summary, err
	}

	staged, err := s.opts.Stager.Stage(s.opts.Catalog, arch, platform, s.opts.ExtractDir)
	if err != nil {
		return summary, err
	}
	defer func() {
		if tdErr := staged.Teardown(); tdErr != nil {
			s.opts.Log.Warn("Failed to remove extracted archive", "root", staged.RootDir, "err", tdErr)
		}
	}()

	collect := s.opts.ResultsPath != ""
	cumulative := results.Document{}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, doc, err := s.runStep(ctx, staged, step)
		if err != nil {
			return summary, err
		}
		if res.ExitCode != 0 {
			if summary.ExitCode != 0 && summary.ExitCode != res.ExitCode {
				s.opts.Log.Debug("Overwriting aggregate exit code", "previous", summary.ExitCode, "exit_code", res.ExitCode)
			}
			summary.ExitCode = res.ExitCode
		}
		var mergeErr error
		if doc != nil {
			if mergeErr = results.Merge(cumulative, doc); mergeErr == nil {
				res.ResultsMerged = true
			}
		}
		summary.Add(res)
		s.opts.Metrics.RecordModule(res.Module, res.Status, res.Duration)
		if mergeErr != nil {
			return summary, errors.Wrapf(mergeErr, "merge results of %s", res.Module)
		}
	}

	if collect && !s.opts.DryRun {
		if err := results.Write(s.opts.ResultsPath, cumulative); err != nil {
			return summary, err
		}
		digest, err := results.Digest(cumulative)
		if err != nil {
			return summary, err
		}
		summary.ResultsPath = s.opts.ResultsPath
		summary.ResultsDigest = digest
		s.opts.Log.Info("Wrote merged results", "path", s.opts.ResultsPath, "sha256", digest)
	}
	return summary, nil
}

// runStep invokes the runner for one module and reads back the document it
// produced, if any.
func (s *Sequencer) runStep(ctx context.Context, staged *archive.Staged, step Step) (report.ModuleResult, results.Document, error) {
	name := step.Module.Name()
	res := report.ModuleResult{Module: name, APK: step.Module.APK, Filter: step.Directive.String()}

	args := slices.Clone(s.opts.BaseArgs)
	args = append(args, step.Directive.Args()...)
	inv := runner.Invocation{Args: args, TestAPK: staged.Path(step.Module.APK)}

	if s.opts.ResultsPath != "" {
		path, release, err := results.TempFile(s.opts.TempDir, name)
		if err != nil {
			return res, nil, err
		}
		defer release()
		inv.ResultsFile = path
	}

	s.opts.Log.Info("Running CTS module", "module", name, "filter", step.Directive.Kind.String())
	started := s.opts.Clock.Now()
	code, err := s.opts.Invoker.Run(ctx, inv)
	res.Duration = s.opts.Clock.Since(started)
	if err != nil {
		return res, nil, err
	}
	res.ExitCode = code
	res.Status = report.StatusFor(code, s.opts.DryRun)
	if code != 0 {
		s.opts.Log.Warn("CTS module failed", "module", name, "exit_code", code)
	} else {
		s.opts.Log.Info("CTS module finished", "module", name, "duration", res.Duration)
	}

	if inv.ResultsFile == "" {
		return res, nil, nil
	}
	doc, ok, err := results.LoadIfPresent(inv.ResultsFile)
	if err != nil {
		return res, nil, err
	}
	if !ok {
		s.opts.Log.Debug("Module produced no results document", "module", name)
		return res, nil, nil
	}
	return res, doc, nil
}
