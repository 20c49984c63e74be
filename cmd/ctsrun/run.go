package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bgricker/ctsrun/internal/archive"
	"github.com/bgricker/ctsrun/internal/config"
	"github.com/bgricker/ctsrun/internal/discovery"
	"github.com/bgricker/ctsrun/internal/metrics"
	"github.com/bgricker/ctsrun/internal/output"
	"github.com/bgricker/ctsrun/internal/runner"
	"github.com/bgricker/ctsrun/internal/sequencer"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [-- runner args...]",
		Short: "Run the CTS modules for the device and merge their results",
		Args:  passthroughArgs,
		RunE:  runExecute,
	}
}

// passthroughArgs accepts positional arguments only after "--".
func passthroughArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && cmd.ArgsLenAtDash() != 0 {
		return fmt.Errorf("unexpected arguments %q; pass test runner arguments after --", args)
	}
	return nil
}

func runExecute(cmd *cobra.Command, args []string) error {
	s, err := prepare(cmd, true)
	if err != nil {
		return err
	}
	cfg := s.cfg

	resultsPath, err := absPath(cfg.ResultsFile)
	if err != nil {
		return err
	}
	metricsPath, err := absPath(cfg.MetricsFile)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := s.log.With("run_id", runID)
	var rec *metrics.Recorder
	if metricsPath != "" {
		rec = metrics.New(runID, logger)
	}

	// Keep stdout parseable when it carries the JSON summary.
	runnerOut := cmd.OutOrStdout()
	if cfg.Format == config.FormatJSON {
		runnerOut = cmd.ErrOrStderr()
	}

	baseArgs := append(append([]string{}, args...), s.target.RunnerArgs()...)
	seq := sequencer.New(sequencer.Options{
		Catalog:    s.catalog,
		Stager:     &archive.Stager{ArchiveDir: s.inputs.ArchiveDir, Log: logger},
		ExtractDir: discovery.Abs(s.root, cfg.APKDir),
		Invoker: runner.New(runner.Options{
			Path:   s.inputs.Runner,
			Stdout: runnerOut,
			Stderr: cmd.ErrOrStderr(),
			DryRun: cfg.DryRun,
			Log:    logger,
		}),
		Filters:     s.filters,
		Module:      cfg.ModuleAPK,
		BaseArgs:    baseArgs,
		ResultsPath: resultsPath,
		DryRun:      cfg.DryRun,
		Log:         logger,
		Metrics:     rec,
		RunID:       runID,
	})

	summary, runErr := seq.RunAll(cmd.Context(), s.target.Arch, s.target.Platform)
	if err := rec.WriteTextfile(metricsPath); err != nil {
		logger.Warn("Failed to write metrics", "path", metricsPath, "err", err)
	}
	if runErr != nil {
		return runErr
	}

	if err := render(cfg.Format, cmd.OutOrStdout(), func(r output.Renderer) error {
		return r.RenderResults(summary)
	}); err != nil {
		return err
	}

	if summary.ExitCode != 0 {
		return &exitError{code: summary.ExitCode}
	}
	return nil
}

func render(format string, out io.Writer, fn func(output.Renderer) error) error {
	r, err := output.New(format, out)
	if err != nil {
		return err
	}
	return fn(r)
}
