package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the optional per-checkout configuration file.
const FileName = ".ctsrun.yml"

// Config captures CLI options sourced from config files or flags.
type Config struct {
	Arch     string `yaml:"arch"`
	Platform string `yaml:"platform"`
	Device   string `yaml:"device"`

	ADBHost string `yaml:"adb_host"`
	ADBPort int    `yaml:"adb_port"`

	Root             string `yaml:"root"`
	Runner           string `yaml:"runner"`
	Manifest         string `yaml:"manifest"`
	ExpectedFailures string `yaml:"expected_failures"`
	ArchiveDir       string `yaml:"archive_dir"`
	APKDir           string `yaml:"apk_dir"`

	ModuleAPK             string `yaml:"module_apk"`
	DefaultFilteredModule string `yaml:"default_filtered_module"`

	Filters              Filters `yaml:"filters"`
	SkipExpectedFailures bool    `yaml:"skip_expected_failures"`

	ResultsFile string `yaml:"json_results_file"`
	MetricsFile string `yaml:"metrics_file"`

	DryRun  bool   `yaml:"dry_run"`
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format"`
}

// Filters holds the three user filter forms forwarded to the test runner.
type Filters struct {
	File     string `yaml:"file"`
	Pattern  string `yaml:"pattern"`
	Isolated string `yaml:"isolated"`
}

// Any reports whether any user filter form is set.
func (f Filters) Any() bool {
	return f.File != "" || f.Pattern != "" || f.Isolated != ""
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"

	// DefaultFilteredModule is the module restriction applied when a user
	// filter is given without --module-apk.
	DefaultFilteredModule = "CtsWebkitTestCases.apk"

	defaultRunner           = "build/android/test_runner.py"
	defaultManifest         = "cts_config/webview_cts_gcs_path.json"
	defaultExpectedFailures = "cts_config/expected_failure_on_bot.json"
	defaultArchiveDir       = "cts_archive"
)

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		Runner:                defaultRunner,
		Manifest:              defaultManifest,
		ExpectedFailures:      defaultExpectedFailures,
		ArchiveDir:            defaultArchiveDir,
		DefaultFilteredModule: DefaultFilteredModule,
		Format:                FormatPretty,
	}
}

// Load reads .ctsrun.yml from dir when present. Missing files are ignored.
func Load(dir string) (Config, error) {
	cfg := Default()
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg = merge(cfg, fileCfg)
	return cfg, nil
}

func merge(base, override Config) Config {
	out := base

	setString(&out.Arch, override.Arch)
	setString(&out.Platform, override.Platform)
	setString(&out.Device, override.Device)
	setString(&out.ADBHost, override.ADBHost)
	setString(&out.Root, override.Root)
	setString(&out.Runner, override.Runner)
	setString(&out.Manifest, override.Manifest)
	setString(&out.ExpectedFailures, override.ExpectedFailures)
	setString(&out.ArchiveDir, override.ArchiveDir)
	setString(&out.APKDir, override.APKDir)
	setString(&out.ModuleAPK, override.ModuleAPK)
	setString(&out.DefaultFilteredModule, override.DefaultFilteredModule)
	setString(&out.Filters.File, override.Filters.File)
	setString(&out.Filters.Pattern, override.Filters.Pattern)
	setString(&out.Filters.Isolated, override.Filters.Isolated)
	setString(&out.ResultsFile, override.ResultsFile)
	setString(&out.MetricsFile, override.MetricsFile)
	setString(&out.Format, override.Format)

	if override.ADBPort != 0 {
		out.ADBPort = override.ADBPort
	}
	if override.SkipExpectedFailures {
		out.SkipExpectedFailures = true
	}
	if override.DryRun {
		out.DryRun = true
	}
	if override.Verbose {
		out.Verbose = true
	}

	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	applyString(&cfg.Arch, flags.Arch)
	applyString(&cfg.Platform, flags.Platform)
	applyString(&cfg.Device, flags.Device)
	applyString(&cfg.Root, flags.Root)
	applyString(&cfg.Runner, flags.Runner)
	applyString(&cfg.Manifest, flags.Manifest)
	applyString(&cfg.ExpectedFailures, flags.ExpectedFailures)
	applyString(&cfg.ArchiveDir, flags.ArchiveDir)
	applyString(&cfg.APKDir, flags.APKDir)
	applyString(&cfg.ModuleAPK, flags.ModuleAPK)
	applyString(&cfg.Filters.File, flags.FilterFile)
	applyString(&cfg.Filters.Pattern, flags.FilterPattern)
	applyString(&cfg.Filters.Isolated, flags.FilterIsolated)
	applyString(&cfg.ResultsFile, flags.ResultsFile)
	applyString(&cfg.MetricsFile, flags.MetricsFile)
	applyString(&cfg.Format, flags.Format)

	if flags.SkipExpectedFailures.Set {
		cfg.SkipExpectedFailures = flags.SkipExpectedFailures.Value
	}
	if flags.DryRun.Set {
		cfg.DryRun = flags.DryRun.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
}

func applyString(dst *string, flag StringFlag) {
	if flag.Set {
		*dst = flag.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Arch             StringFlag
	Platform         StringFlag
	Device           StringFlag
	Root             StringFlag
	Runner           StringFlag
	Manifest         StringFlag
	ExpectedFailures StringFlag
	ArchiveDir       StringFlag
	APKDir           StringFlag
	ModuleAPK        StringFlag
	FilterFile       StringFlag
	FilterPattern    StringFlag
	FilterIsolated   StringFlag
	ResultsFile      StringFlag
	MetricsFile      StringFlag
	Format           StringFlag

	SkipExpectedFailures BoolFlag
	DryRun               BoolFlag
	Verbose              BoolFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}
