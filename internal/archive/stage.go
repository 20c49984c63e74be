// Package archive stages the CTS package archive for an architecture and
// platform into a working directory.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/bgricker/ctsrun/internal/manifest"
)

// Error reports a missing, corrupt or incompletely extracted archive.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage archive %q: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stager extracts archives found under ArchiveDir. Fetching archives into
// ArchiveDir is someone else's job.
type Stager struct {
	ArchiveDir string
	Log        log.Logger
}

// Staged is an extracted archive.
type Staged struct {
	// LocalDir holds the extracted archive contents.
	LocalDir string
	// RootDir is the directory LocalDir lives under.
	RootDir string
	// OwnsRoot is set when RootDir was created by Stage and must be removed by Teardown.
	OwnsRoot bool

	removed bool
}

// Path returns the location of a package inside the extracted archive.
func (s *Staged) Path(apk string) string {
	return filepath.Join(s.LocalDir, filepath.FromSlash(apk))
}

// Teardown removes RootDir when Stage created it. It is safe to call more than once.
func (s *Staged) Teardown() error {
	if s == nil || !s.OwnsRoot || s.removed || s.RootDir == "" {
		return nil
	}
	if err := os.RemoveAll(s.RootDir); err != nil {
		return fmt.Errorf("remove staging root %q: %w", s.RootDir, err)
	}
	s.removed = true
	return nil
}

// Stage extracts the archive for arch and platform. When dest is empty a
// temporary root is created and owned by the returned Staged; otherwise dest
// is used as the root and is never removed.
func (s *Stager) Stage(m manifest.Manifest, arch, platform, dest string) (*Staged, error) {
	filename, unzipDir, err := manifest.ResolveArchiveInfo(m, arch, platform)
	if err != nil {
		return nil, err
	}
	archivePath := filepath.Join(s.ArchiveDir, filepath.FromSlash(filename))

	staged := &Staged{RootDir: dest}
	if dest == "" {
		root, err := os.MkdirTemp("", "ctsrun-")
		if err != nil {
			return nil, &Error{Path: archivePath, Err: errors.Wrap(err, "create staging root")}
		}
		staged.RootDir = root
		staged.OwnsRoot = true
	} else if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, &Error{Path: archivePath, Err: errors.Wrap(err, "create apk dir")}
	}
	staged.LocalDir = filepath.Join(staged.RootDir, filepath.FromSlash(unzipDir))

	s.logger().Info("Extracting CTS archive", "archive", archivePath, "dest", staged.LocalDir)
	if err := extract(archivePath, staged.LocalDir); err != nil {
		if tdErr := staged.Teardown(); tdErr != nil {
			s.logger().Warn("Failed to remove staging root", "root", staged.RootDir, "err", tdErr)
		}
		return nil, &Error{Path: archivePath, Err: err}
	}
	return staged, nil
}

func (s *Stager) logger() log.Logger {
	if s.Log == nil {
		return log.Root()
	}
	return s.Log
}

// extract unpacks the zip at archivePath into target. Entries are written to a
// sibling directory that replaces target only once every entry is on disk.
func extract(archivePath, target string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, "open zip")
	}
	defer zr.Close()

	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrap(err, "create extraction parent")
	}
	tmp, err := os.MkdirTemp(parent, ".extract-*")
	if err != nil {
		return errors.Wrap(err, "create extraction dir")
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	for _, f := range zr.File {
		if err := extractFile(f, tmp); err != nil {
			return err
		}
	}

	if err := replaceDir(tmp, target); err != nil {
		return err
	}
	committed = true
	return nil
}

func extractFile(f *zip.File, root string) error {
	name := filepath.FromSlash(f.Name)
	if filepath.IsAbs(name) {
		return errors.Errorf("zip entry %q is absolute", f.Name)
	}
	dest := filepath.Join(root, name)
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Errorf("zip entry %q escapes extraction dir", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "create dir for %q", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "open zip entry %q", f.Name)
	}
	defer rc.Close()

	mode := f.Mode().Perm() | 0o600
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return errors.Wrapf(err, "create %q", dest)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "extract zip entry %q", f.Name)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "close %q", dest)
	}
	return nil
}

// replaceDir moves src to dst, restoring any previous dst on failure.
func replaceDir(src, dst string) error {
	var backup string
	if _, err := os.Stat(dst); err == nil {
		backup = dst + ".previous"
		_ = os.RemoveAll(backup)
		if err := os.Rename(dst, backup); err != nil {
			return errors.Wrapf(err, "move aside %q", dst)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %q", dst)
	}

	if err := os.Rename(src, dst); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dst)
		}
		return errors.Wrapf(err, "move extracted archive to %q", dst)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}
