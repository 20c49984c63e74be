package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/ctsrun/internal/config"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	stringFlags := []struct {
		name string
		dst  *config.StringFlag
	}{
		{"arch", &values.Arch},
		{"platform", &values.Platform},
		{"device", &values.Device},
		{"root", &values.Root},
		{"runner", &values.Runner},
		{"manifest", &values.Manifest},
		{"expected-failures", &values.ExpectedFailures},
		{"archive-dir", &values.ArchiveDir},
		{"apk-dir", &values.APKDir},
		{"module-apk", &values.ModuleAPK},
		{"test-launcher-filter-file", &values.FilterFile},
		{"test-filter", &values.FilterPattern},
		{"isolated-script-test-filter", &values.FilterIsolated},
		{"metrics-file", &values.MetricsFile},
		{"format", &values.Format},
	}
	for _, f := range stringFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		*f.dst = config.StringFlag{Value: v, Set: true}
	}

	for _, name := range resultsFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", name, err)
		}
		if values.ResultsFile.Set && values.ResultsFile.Value != v {
			return values, config.Invalidf("conflicting results files %q and %q", values.ResultsFile.Value, v)
		}
		values.ResultsFile = config.StringFlag{Value: v, Set: true}
	}

	boolFlags := []struct {
		name string
		dst  *config.BoolFlag
	}{
		{"skip-expected-failures", &values.SkipExpectedFailures},
		{"dry-run", &values.DryRun},
		{"verbose", &values.Verbose},
	}
	for _, f := range boolFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetBool(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		*f.dst = config.BoolFlag{Value: v, Set: true}
	}

	return values, nil
}
