package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/bgricker/ctsrun/internal/config"
	"github.com/bgricker/ctsrun/internal/device"
	"github.com/bgricker/ctsrun/internal/discovery"
	"github.com/bgricker/ctsrun/internal/filter"
	"github.com/bgricker/ctsrun/internal/logging"
	"github.com/bgricker/ctsrun/internal/manifest"
	"github.com/bgricker/ctsrun/internal/platform"
)

// newLister builds the device lister for cfg. Tests replace it.
var newLister = func(cfg config.Config) device.Lister {
	return device.ADB{Host: cfg.ADBHost, Port: cfg.ADBPort}
}

// session bundles everything resolved before the first module runs.
type session struct {
	cfg     config.Config
	root    string
	inputs  discovery.Inputs
	catalog manifest.Manifest
	filters filter.Options
	target  device.Target
	log     log.Logger
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(wd)
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)
	cfg.Format = strings.ToLower(cfg.Format)

	root := wd
	if cfg.Root != "" {
		root = discovery.Abs(wd, cfg.Root)
	}
	return cfg, root, nil
}

// prepare loads and validates every input of a command. needRunner is false
// for commands that never stage archives or start the runner.
func prepare(cmd *cobra.Command, needRunner bool) (*session, error) {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.Install(logging.New(cmd.ErrOrStderr(), cfg.Verbose))

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	table := platform.DefaultTable()
	if err := checkChoice("--arch", cfg.Arch, table.ArchNames()); err != nil {
		return nil, err
	}
	if err := checkChoice("--platform", cfg.Platform, table.PlatformNames()); err != nil {
		return nil, err
	}
	config.ApplyFilterDefaults(&cfg)

	inputs, err := discovery.Resolve(root, discovery.Request{
		Manifest:             cfg.Manifest,
		ExpectedFailures:     cfg.ExpectedFailures,
		ArchiveDir:           cfg.ArchiveDir,
		Runner:               cfg.Runner,
		NeedArchiveDir:       needRunner,
		NeedExpectedFailures: cfg.SkipExpectedFailures,
		NeedRunner:           needRunner && !cfg.DryRun,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := manifest.Load(inputs.Manifest)
	if err != nil {
		return nil, err
	}

	filters := filter.Options{
		User:                 filter.FromConfig(cfg.Filters),
		SkipExpectedFailures: cfg.SkipExpectedFailures,
	}
	if cfg.SkipExpectedFailures {
		expected, err := manifest.LoadExpectedFailures(inputs.ExpectedFailures)
		if err != nil {
			return nil, err
		}
		filters.ExpectedFailures = expected.Identifiers()
		logger.Debug("Loaded expected failures", "count", len(filters.ExpectedFailures))
	}

	target, err := device.Resolve(newLister(cfg), device.ResolveOptions{
		Arch:     cfg.Arch,
		Platform: cfg.Platform,
		Serial:   cfg.Device,
		Table:    table,
		Log:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		root:    root,
		inputs:  inputs,
		catalog: catalog,
		filters: filters,
		target:  target,
		log:     logger.With("arch", target.Arch, "platform", target.Platform),
	}, nil
}

func checkChoice(flag, value string, choices []string) error {
	if value == "" || slices.Contains(choices, value) {
		return nil
	}
	return config.Invalidf("%s must be one of: %s", flag, strings.Join(choices, ", "))
}

// absPath resolves a user supplied output path against the working directory.
func absPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}
