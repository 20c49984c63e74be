// Package manifest loads the versioned CTS archive manifest and resolves the
// modules and archive that apply to an architecture and platform.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bgricker/ctsrun/internal/config"
)

// Manifest maps architecture, then platform, to the archive for that pair.
type Manifest map[string]map[string]PlatformEntry

// PlatformEntry describes one archive and the modules run from it.
type PlatformEntry struct {
	Filename string      `json:"filename"`
	UnzipDir string      `json:"unzip_dir"`
	TestRuns []ModuleRun `json:"test_runs"`
}

// ModuleRun identifies one test package and its manifest-declared filters.
type ModuleRun struct {
	APK      string  `json:"apk"`
	Includes []Match `json:"includes,omitempty"`
	Excludes []Match `json:"excludes,omitempty"`
}

// Match is a single gtest-style test name pattern.
type Match struct {
	Match string `json:"match"`
}

// Name returns the package file basename used to select a single module.
func (m ModuleRun) Name() string {
	return path.Base(m.APK)
}

// IncludePatterns returns the include patterns in manifest order.
func (m ModuleRun) IncludePatterns() []string {
	return patterns(m.Includes)
}

// ExcludePatterns returns the exclude patterns in manifest order.
func (m ModuleRun) ExcludePatterns() []string {
	return patterns(m.Excludes)
}

// Validate rejects modules that declare both includes and excludes.
func (m ModuleRun) Validate() error {
	if len(m.Includes) > 0 && len(m.Excludes) > 0 {
		return config.Invalidf("test_runs error, can't have both includes and excludes: %s", m.APK)
	}
	return nil
}

// ValidateModules validates every module, returning the first violation.
func ValidateModules(modules []ModuleRun) error {
	for _, m := range modules {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func patterns(matches []Match) []string {
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Match)
	}
	return out
}

// LookupError reports an arch, platform or field absent from the manifest.
type LookupError struct {
	Item     string
	Arch     string
	Platform string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no %s info available for arch:%s, platform:%s", e.Item, e.Arch, e.Platform)
}

// Load reads and schema-checks the manifest at path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %q", path)
	}
	return Parse(data)
}

// Parse decodes a manifest document.
func Parse(data []byte) (Manifest, error) {
	if err := validateDocument(manifestSchema, data); err != nil {
		return nil, errors.Wrap(err, "manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	return m, nil
}

func (m Manifest) entry(arch, platform, item string) (PlatformEntry, error) {
	platforms, ok := m[arch]
	if !ok {
		return PlatformEntry{}, &LookupError{Item: item, Arch: arch, Platform: platform}
	}
	entry, ok := platforms[platform]
	if !ok {
		return PlatformEntry{}, &LookupError{Item: item, Arch: arch, Platform: platform}
	}
	return entry, nil
}

// ResolveModules returns the modules for arch and platform in execution order.
func ResolveModules(m Manifest, arch, platform string) ([]ModuleRun, error) {
	entry, err := m.entry(arch, platform, "test_runs")
	if err != nil {
		return nil, err
	}
	if entry.TestRuns == nil {
		return nil, &LookupError{Item: "test_runs", Arch: arch, Platform: platform}
	}
	return append([]ModuleRun(nil), entry.TestRuns...), nil
}

// ResolveArchiveInfo returns the archive filename and extraction subdirectory.
func ResolveArchiveInfo(m Manifest, arch, platform string) (filename, unzipDir string, err error) {
	entry, err := m.entry(arch, platform, "filename")
	if err != nil {
		return "", "", err
	}
	if entry.Filename == "" {
		return "", "", &LookupError{Item: "filename", Arch: arch, Platform: platform}
	}
	if entry.UnzipDir == "" {
		return "", "", &LookupError{Item: "unzip_dir", Arch: arch, Platform: platform}
	}
	if !belowRoot(entry.UnzipDir) {
		return "", "", config.Invalidf("unzip_dir %q for arch:%s, platform:%s must be a relative path below the staging root", entry.UnzipDir, arch, platform)
	}
	return entry.Filename, entry.UnzipDir, nil
}

// belowRoot reports whether dir names a directory strictly inside the
// staging root. Extraction replaces that directory wholesale.
func belowRoot(dir string) bool {
	return filepath.IsLocal(filepath.FromSlash(dir)) && path.Clean(dir) != "."
}

// ModuleNames lists the module basenames for arch and platform.
func ModuleNames(m Manifest, arch, platform string) ([]string, error) {
	modules, err := ResolveModules(m, arch, platform)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(modules))
	for _, mod := range modules {
		names = append(names, mod.Name())
	}
	return names, nil
}
