// Package discovery resolves the input files a run needs relative to the
// checkout root and checks that they exist.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates that a required input path does not exist.
var ErrNotFound = errors.New("input not found")

// Inputs are the absolute paths of a run's inputs. Optional inputs that were
// not requested are empty.
type Inputs struct {
	Manifest         string
	ExpectedFailures string
	ArchiveDir       string
	Runner           string
}

// Request lists the configured paths and which of them are needed.
type Request struct {
	Manifest         string
	ExpectedFailures string
	ArchiveDir       string
	Runner           string

	NeedArchiveDir       bool
	NeedExpectedFailures bool
	NeedRunner           bool
}

// Resolve anchors every requested path at root and verifies it exists with the
// expected kind.
func Resolve(root string, req Request) (Inputs, error) {
	var (
		in  Inputs
		err error
	)
	if in.Manifest, err = File(root, "manifest", req.Manifest); err != nil {
		return Inputs{}, err
	}
	if req.NeedArchiveDir {
		if in.ArchiveDir, err = Dir(root, "archive directory", req.ArchiveDir); err != nil {
			return Inputs{}, err
		}
	}
	if req.NeedExpectedFailures {
		if in.ExpectedFailures, err = File(root, "expected failures", req.ExpectedFailures); err != nil {
			return Inputs{}, err
		}
	}
	if req.NeedRunner {
		if in.Runner, err = File(root, "test runner", req.Runner); err != nil {
			return Inputs{}, err
		}
	} else {
		in.Runner = Abs(root, req.Runner)
	}
	return in, nil
}

// File resolves path against root and requires a regular file.
func File(root, what, path string) (string, error) {
	resolved, info, err := stat(root, what, path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s %q is a directory", what, path)
	}
	return resolved, nil
}

// Dir resolves path against root and requires a directory.
func Dir(root, what, path string) (string, error) {
	resolved, info, err := stat(root, what, path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s %q is not a directory", what, path)
	}
	return resolved, nil
}

// Abs anchors a relative path at root. Empty paths stay empty.
func Abs(root, path string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		if root == "" {
			root = "."
		}
		path = filepath.Join(root, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Rel returns path relative to root for display, or path unchanged when it
// lies outside root.
func Rel(root, path string) string {
	rel, err := filepath.Rel(Abs(root, "."), path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel = filepath.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	return rel
}

func stat(root, what, path string) (string, os.FileInfo, error) {
	if path == "" {
		return "", nil, fmt.Errorf("%w: no %s configured", ErrNotFound, what)
	}
	resolved := Abs(root, path)
	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s %q", ErrNotFound, what, path)
		}
		return "", nil, fmt.Errorf("stat %s %q: %w", what, path, err)
	}
	return resolved, info, nil
}
