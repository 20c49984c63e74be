package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/ctsrun/internal/config"
	"github.com/bgricker/ctsrun/internal/manifest"
)

func testManifest() manifest.Manifest {
	return manifest.Manifest{
		"arm64": {
			"N": {
				Filename: "arm64/cts/N/cts.zip",
				UnzipDir: "arm64/N/7.0_r13/",
				TestRuns: []manifest.ModuleRun{{APK: "android-cts/testcases/CtsWebkitTestCases.apk"}},
			},
		},
	}
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func newStager(t *testing.T) *Stager {
	t.Helper()
	return &Stager{ArchiveDir: t.TempDir(), Log: log.NewLogger(log.DiscardHandler())}
}

// isolateTemp points os.TempDir at a fresh directory so tests can check that
// nothing is left behind.
func isolateTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)
	return dir
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStageOwnedRoot(t *testing.T) {
	tmp := isolateTemp(t)
	s := newStager(t)
	writeZip(t, filepath.Join(s.ArchiveDir, "arm64/cts/N/cts.zip"), map[string]string{
		"android-cts/testcases/CtsWebkitTestCases.apk": "apk-bytes",
	})

	staged, err := s.Stage(testManifest(), "arm64", "N", "")
	require.NoError(t, err)
	assert.True(t, staged.OwnsRoot)
	assert.Equal(t, filepath.Join(staged.RootDir, "arm64", "N", "7.0_r13"), staged.LocalDir)

	data, err := os.ReadFile(staged.Path("android-cts/testcases/CtsWebkitTestCases.apk"))
	require.NoError(t, err)
	assert.Equal(t, "apk-bytes", string(data))

	require.NoError(t, staged.Teardown())
	require.NoError(t, staged.Teardown())
	_, err = os.Stat(staged.RootDir)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, dirEntries(t, tmp))
}

func TestStagePersistentRootIsKept(t *testing.T) {
	s := newStager(t)
	archive := filepath.Join(s.ArchiveDir, "arm64/cts/N/cts.zip")
	dest := filepath.Join(t.TempDir(), "apks")

	writeZip(t, archive, map[string]string{"a.apk": "first", "stale.apk": "old"})
	staged, err := s.Stage(testManifest(), "arm64", "N", dest)
	require.NoError(t, err)
	assert.False(t, staged.OwnsRoot)
	assert.Equal(t, dest, staged.RootDir)

	writeZip(t, archive, map[string]string{"a.apk": "second"})
	staged, err = s.Stage(testManifest(), "arm64", "N", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(staged.Path("a.apk"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	_, err = os.Stat(staged.Path("stale.apk"))
	assert.True(t, os.IsNotExist(err), "previous extraction should be replaced")

	require.NoError(t, staged.Teardown())
	_, err = os.Stat(staged.Path("a.apk"))
	assert.NoError(t, err, "persistent root must survive teardown")
	assert.ElementsMatch(t, []string{"7.0_r13"}, dirEntries(t, filepath.Join(dest, "arm64", "N")))
}

func TestStageMissingArchive(t *testing.T) {
	tmp := isolateTemp(t)
	s := newStager(t)

	_, err := s.Stage(testManifest(), "arm64", "N", "")
	var archiveErr *Error
	require.True(t, errors.As(err, &archiveErr), "expected archive.Error, got %v", err)
	assert.Equal(t, filepath.Join(s.ArchiveDir, "arm64", "cts", "N", "cts.zip"), archiveErr.Path)
	assert.Contains(t, err.Error(), "cts.zip")
	assert.Empty(t, dirEntries(t, tmp), "owned root must be removed on failure")
}

func TestStageCorruptArchive(t *testing.T) {
	tmp := isolateTemp(t)
	s := newStager(t)
	path := filepath.Join(s.ArchiveDir, "arm64/cts/N/cts.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := s.Stage(testManifest(), "arm64", "N", "")
	var archiveErr *Error
	require.True(t, errors.As(err, &archiveErr))
	assert.Empty(t, dirEntries(t, tmp))
}

func TestStageRejectsEscapingEntries(t *testing.T) {
	s := newStager(t)
	writeZip(t, filepath.Join(s.ArchiveDir, "arm64/cts/N/cts.zip"), map[string]string{
		"../../evil.apk": "x",
	})
	dest := t.TempDir()

	_, err := s.Stage(testManifest(), "arm64", "N", dest)
	var archiveErr *Error
	require.True(t, errors.As(err, &archiveErr))

	_, statErr := os.Stat(filepath.Join(dest, "arm64", "N", "7.0_r13"))
	assert.True(t, os.IsNotExist(statErr), "partial extraction must not be left in place")
}

func TestStageUnknownPlatform(t *testing.T) {
	tmp := isolateTemp(t)
	s := newStager(t)
	_, err := s.Stage(testManifest(), "arm64", "O", "")
	var lookupErr *manifest.LookupError
	assert.True(t, errors.As(err, &lookupErr))
	assert.Empty(t, dirEntries(t, tmp))
}

func manifestWithUnzipDir(unzipDir string) manifest.Manifest {
	m := testManifest()
	entry := m["arm64"]["N"]
	entry.UnzipDir = unzipDir
	m["arm64"]["N"] = entry
	return m
}

func TestStageUnzipDirAtRootKeepsPersistentContents(t *testing.T) {
	s := newStager(t)
	writeZip(t, filepath.Join(s.ArchiveDir, "arm64/cts/N/cts.zip"), map[string]string{"a.apk": "x"})
	dest := filepath.Join(t.TempDir(), "apks")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	owned := filepath.Join(dest, "user-owned.txt")
	require.NoError(t, os.WriteFile(owned, []byte("keep"), 0o644))

	for _, dir := range []string{".", "./", "arm64/.."} {
		_, err := s.Stage(manifestWithUnzipDir(dir), "arm64", "N", dest)
		var validationErr *config.ValidationError
		require.True(t, errors.As(err, &validationErr), "unzip_dir %q: expected ValidationError, got %v", dir, err)
	}

	data, err := os.ReadFile(owned)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
	assert.ElementsMatch(t, []string{"user-owned.txt"}, dirEntries(t, dest))
}

func TestStageUnzipDirOutsideRootIsRejected(t *testing.T) {
	tmp := isolateTemp(t)
	s := newStager(t)
	writeZip(t, filepath.Join(s.ArchiveDir, "arm64/cts/N/cts.zip"), map[string]string{"a.apk": "x"})

	staged, err := s.Stage(manifestWithUnzipDir("../escaped"), "arm64", "N", "")
	var validationErr *config.ValidationError
	require.True(t, errors.As(err, &validationErr), "expected ValidationError, got %v", err)
	require.NoError(t, staged.Teardown())

	_, statErr := os.Stat(filepath.Join(tmp, "escaped"))
	assert.True(t, os.IsNotExist(statErr), "extraction must not land outside the staging root")
	assert.Empty(t, dirEntries(t, tmp))
}
