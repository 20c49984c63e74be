// Package filter composes the single test filter argument passed to the
// instrumentation runner for one module.
package filter

import (
	"strings"

	"github.com/bgricker/ctsrun/internal/config"
	"github.com/bgricker/ctsrun/internal/manifest"
)

// Runner options carrying a filter.
const (
	FileFilterOpt     = "--test-launcher-filter-file"
	TestFilterOpt     = "--test-filter"
	IsolatedFilterOpt = "--isolated-script-test-filter"
)

const (
	separator = ":"
	negation  = "-"
)

// Kind identifies where a directive came from.
type Kind int

const (
	KindNone Kind = iota
	KindUserFile
	KindUserPattern
	KindUserIsolated
	KindModuleInclude
	KindModuleExclude
)

func (k Kind) String() string {
	switch k {
	case KindUserFile:
		return "user-file"
	case KindUserPattern:
		return "user-pattern"
	case KindUserIsolated:
		return "user-isolated"
	case KindModuleInclude:
		return "module-include"
	case KindModuleExclude:
		return "module-exclude"
	default:
		return "none"
	}
}

// Directive is the resolved filter for one module. The zero value means no filter.
type Directive struct {
	Kind   Kind
	Option string
	Value  string
}

// Args returns the runner arguments for the directive, nil when there is no filter.
func (d Directive) Args() []string {
	if d.Kind == KindNone {
		return nil
	}
	return []string{d.Option + "=" + d.Value}
}

func (d Directive) String() string {
	if d.Kind == KindNone {
		return ""
	}
	return d.Option + "=" + d.Value
}

// UserFilters holds the explicit filter forms supplied by the user.
type UserFilters struct {
	File     string
	Pattern  string
	Isolated string
}

// FromConfig copies the user filters out of cfg.
func FromConfig(f config.Filters) UserFilters {
	return UserFilters{File: f.File, Pattern: f.Pattern, Isolated: f.Isolated}
}

// Set reports whether any user filter is present.
func (u UserFilters) Set() bool {
	return u.File != "" || u.Pattern != "" || u.Isolated != ""
}

func (u UserFilters) toConfig() config.Filters {
	return config.Filters{File: u.File, Pattern: u.Pattern, Isolated: u.Isolated}
}

func (u UserFilters) directive() Directive {
	switch {
	case u.File != "":
		return Directive{Kind: KindUserFile, Option: FileFilterOpt, Value: u.File}
	case u.Pattern != "":
		return Directive{Kind: KindUserPattern, Option: TestFilterOpt, Value: u.Pattern}
	case u.Isolated != "":
		return Directive{Kind: KindUserIsolated, Option: IsolatedFilterOpt, Value: u.Isolated}
	}
	return Directive{}
}

// Options are the run-wide inputs to Compose.
type Options struct {
	User UserFilters
	// SkipExpectedFailures opts in to skipping ExpectedFailures. Combining it
	// with a user filter is rejected by config.Validate.
	SkipExpectedFailures bool
	ExpectedFailures     []string
}

// Validate rejects more than one user filter form, and a user filter
// combined with SkipExpectedFailures.
func (o Options) Validate() error {
	return config.ValidateFilters(o.User.toConfig(), o.SkipExpectedFailures)
}

// Compose resolves the filter for module.
func Compose(opts Options, module manifest.ModuleRun) (Directive, error) {
	if opts.User.Set() {
		return opts.User.directive(), nil
	}

	var skips []string
	if opts.SkipExpectedFailures {
		skips = append(skips, opts.ExpectedFailures...)
	}

	if err := module.Validate(); err != nil {
		return Directive{}, err
	}

	if includes := module.IncludePatterns(); len(includes) > 0 {
		return Directive{
			Kind:   KindModuleInclude,
			Option: TestFilterOpt,
			Value:  strings.Join(includes, separator),
		}, nil
	}

	skips = append(skips, module.ExcludePatterns()...)
	if len(skips) == 0 {
		return Directive{}, nil
	}
	return Directive{
		Kind:   KindModuleExclude,
		Option: TestFilterOpt,
		Value:  negation + strings.Join(skips, separator),
	}, nil
}
