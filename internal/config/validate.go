package config

import (
	"fmt"
	"strings"
)

// ValidationError reports mutually exclusive options supplied together.
// It is fatal and always raised before any module runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + e.Reason
}

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks option combinations that can be rejected without reading
// the manifest. It runs before module resolution.
func Validate(cfg Config) error {
	if err := ValidateFilters(cfg.Filters, cfg.SkipExpectedFailures); err != nil {
		return err
	}

	switch strings.ToLower(cfg.Format) {
	case FormatPretty, FormatJSON:
	default:
		return Invalidf("unsupported format %q", cfg.Format)
	}
	if cfg.ADBPort < 0 {
		return Invalidf("adb port must be positive, got %d", cfg.ADBPort)
	}
	return nil
}

// ApplyFilterDefaults restricts execution to the default filtered module when
// a user filter is present and no module restriction was requested.
func ApplyFilterDefaults(cfg *Config) {
	if cfg.Filters.Any() && cfg.ModuleAPK == "" {
		cfg.ModuleAPK = cfg.DefaultFilteredModule
	}
}

// ValidateFilters rejects more than one user filter form, and any user filter
// combined with skipping expected failures.
func ValidateFilters(f Filters, skipExpectedFailures bool) error {
	set := make([]string, 0, 3)
	if f.File != "" {
		set = append(set, "--test-launcher-filter-file")
	}
	if f.Pattern != "" {
		set = append(set, "--test-filter")
	}
	if f.Isolated != "" {
		set = append(set, "--isolated-script-test-filter")
	}
	if len(set) > 1 {
		return Invalidf("test filters are mutually exclusive: %s", strings.Join(set, ", "))
	}
	if len(set) == 1 && skipExpectedFailures {
		return Invalidf("--skip-expected-failures and test filters are mutually exclusive")
	}
	return nil
}
