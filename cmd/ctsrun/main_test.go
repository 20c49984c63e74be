package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/ctsrun/internal/config"
	"github.com/bgricker/ctsrun/internal/device"
	"github.com/bgricker/ctsrun/internal/report"
	"github.com/bgricker/ctsrun/internal/results"
)

const testManifest = `{
  "arm64": {
    "O": {
      "filename": "arm64/cts/O/cts.zip",
      "unzip_dir": "arm64/O/8.0_r1/",
      "test_runs": [
        {"apk": "android-cts/testcases/CtsWebkitTestCases.apk",
         "excludes": [{"match": "android.webkit.cts.WebViewTest#testFlaky"}]},
        {"apk": "android-cts/testcases/CtsWidgetTestCases.apk",
         "includes": [{"match": "android.widget.cts.RemoteViewsActivityTest#*"}]},
        {"apk": "android-cts/testcases/CtsWebViewStartupApp.apk"}
      ]
    }
  }
}`

const testExpectedFailures = `{
  "android.webkit.cts.CookieManagerTest": [{"name": "testRemoveSessionCookies"}],
  "android.webkit.cts.AccessibilityTest": [{"name": "testFocus"}, {"name": "testBlur"}]
}`

// fakeRunner records its arguments, writes a results document naming the
// module and exits 2 for the widget module.
const fakeRunner = `#!/bin/sh
echo "$@" >> "$(dirname "$0")/calls.log"
results=""
apk=""
for a in "$@"; do
  case "$a" in
    --json-results-file=*) results="${a#--json-results-file=}" ;;
    --test-apk=*) apk="${a#--test-apk=}" ;;
  esac
done
name=$(basename "$apk")
if [ -n "$results" ]; then
  printf '{"all_tests": ["%s"]}' "$name" > "$results"
fi
case "$name" in
  CtsWidgetTestCases.apk) exit 2 ;;
esac
exit 0
`

type fakeDevice struct {
	serial string
	props  map[string]string
}

func (d fakeDevice) Serial() string { return d.serial }

func (d fakeDevice) RunShellCommand(cmd string, args ...string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("unexpected getprop call")
	}
	return d.props[args[0]], nil
}

type fakeLister []device.Device

func (l fakeLister) Devices() ([]device.Device, error) { return l, nil }

// setupCheckout builds a checkout with a manifest, an archive, expected
// failures and a fake runner, and makes it the working directory.
func setupCheckout(t *testing.T, devices ...device.Device) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake runner requires a POSIX shell")
	}
	root := t.TempDir()
	t.Setenv("TMPDIR", t.TempDir())

	writeFile(t, filepath.Join(root, "cts_config", "webview_cts_gcs_path.json"), testManifest, 0o644)
	writeFile(t, filepath.Join(root, "cts_config", "expected_failure_on_bot.json"), testExpectedFailures, 0o644)
	writeFile(t, filepath.Join(root, "build", "android", "test_runner.py"), fakeRunner, 0o755)

	zipPath := filepath.Join(root, "cts_archive", "arm64", "cts", "O", "cts.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(zipPath), 0o755))
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"CtsWebkitTestCases.apk", "CtsWidgetTestCases.apk", "CtsWebViewStartupApp.apk"} {
		w, err := zw.Create("android-cts/testcases/" + name)
		require.NoError(t, err)
		_, err = w.Write([]byte(name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	prevLister := newLister
	newLister = func(config.Config) device.Lister { return fakeLister(devices) }
	t.Cleanup(func() { newLister = prevLister })

	chdir(t, root)
	return root
}

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %q: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore dir: %v", err)
		}
	})
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func runnerCalls(t *testing.T, root string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "build", "android", "calls.log"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func pixel(serial string) device.Device {
	return fakeDevice{serial: serial, props: map[string]string{
		"ro.build.version.sdk": "27",
		"ro.product.cpu.abi":   "arm64-v8a",
	}}
}

func TestRunCommandMergesResultsAndExitCode(t *testing.T) {
	root := setupCheckout(t, pixel("serial1"), pixel("serial2"))
	out := filepath.Join(t.TempDir(), "results.json")

	stdout, _, err := execute(t, "run", "--json-results-file", out, "--format", "json", "--", "--num-retries=0")

	var ee *exitError
	require.True(t, errors.As(err, &ee), "expected exitError, got %v", err)
	assert.Equal(t, 2, ee.code)

	calls := runnerCalls(t, root)
	require.Len(t, calls, 3)
	assert.True(t, strings.HasPrefix(calls[0], "instrumentation --num-retries=0 -d serial1 --test-filter=-android.webkit.cts.WebViewTest#testFlaky --test-apk="), calls[0])
	assert.Contains(t, calls[1], "--test-filter=android.widget.cts.RemoteViewsActivityTest#*")
	assert.NotContains(t, calls[2], "--test-filter")

	merged, err := results.Load(out)
	require.NoError(t, err)
	assert.Equal(t, []any{"CtsWebkitTestCases.apk", "CtsWidgetTestCases.apk", "CtsWebViewStartupApp.apk"}, merged["all_tests"])

	var summary report.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, "arm64", summary.Arch)
	assert.Equal(t, "O", summary.Platform)
	assert.Equal(t, 2, summary.ExitCode)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, out, summary.ResultsPath)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunCommandSkipExpectedFailures(t *testing.T) {
	root := setupCheckout(t)

	_, _, err := execute(t, "run", "--arch", "arm64", "--platform", "O", "-m", "CtsWebkitTestCases.apk", "--skip-expected-failures")
	require.NoError(t, err)

	calls := runnerCalls(t, root)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "--test-filter=-android.webkit.cts.AccessibilityTest#testFocus:android.webkit.cts.AccessibilityTest#testBlur:android.webkit.cts.CookieManagerTest#testRemoveSessionCookies:android.webkit.cts.WebViewTest#testFlaky")
	assert.NotContains(t, calls[0], "-d ", "no device selection without attached devices")
}

func TestRunCommandUserFilterDefaultsModule(t *testing.T) {
	root := setupCheckout(t, pixel("serial1"))

	_, _, err := execute(t, "run", "--test-filter", "android.webkit.cts.WebViewTest#*")
	require.NoError(t, err)

	calls := runnerCalls(t, root)
	require.Len(t, calls, 1, "a user filter restricts the run to the default filtered module")
	assert.Contains(t, calls[0], "--test-filter=android.webkit.cts.WebViewTest#*")
	assert.Contains(t, calls[0], "CtsWebkitTestCases.apk")
}

func TestRunCommandRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"filter with skip", []string{"run", "--arch", "arm64", "--platform", "O", "--test-filter", "A#b", "--skip-expected-failures"}},
		{"two filter forms", []string{"run", "--arch", "arm64", "--platform", "O", "--test-filter", "A#b", "--isolated-script-test-filter", "C#d"}},
		{"unknown module", []string{"run", "--arch", "arm64", "--platform", "O", "-m", "CtsNope.apk"}},
		{"unknown platform", []string{"run", "--arch", "arm64", "--platform", "Q"}},
		{"conflicting results aliases", []string{"run", "--json-results-file", "a.json", "--write-full-results-to", "b.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := setupCheckout(t)
			_, _, err := execute(t, tt.args...)
			var vErr *config.ValidationError
			require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
			assert.Empty(t, runnerCalls(t, root), "runner must not be invoked")
		})
	}
}

func TestRunCommandDryRun(t *testing.T) {
	root := setupCheckout(t)

	stdout, _, err := execute(t, "run", "--arch", "arm64", "--platform", "O", "--dry-run")
	require.NoError(t, err)
	assert.Empty(t, runnerCalls(t, root))
	assert.Equal(t, 3, strings.Count(stdout, " instrumentation "))
	assert.Contains(t, stdout, "SUMMARY: 0 passed, 0 failed, 3 skipped")
}

func TestRunCommandRejectsBareArgs(t *testing.T) {
	setupCheckout(t)
	_, _, err := execute(t, "run", "--arch", "arm64", "--platform", "O", "stray")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after --")
}

func TestRunCommandWritesMetrics(t *testing.T) {
	setupCheckout(t)
	metricsFile := filepath.Join(t.TempDir(), "ctsrun.prom")

	_, _, err := execute(t, "run", "--arch", "arm64", "--platform", "O", "--metrics-file", metricsFile)
	require.Error(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ctsrun_run_exit_code{arch="arm64",platform="O"`)
}

func TestListCommand(t *testing.T) {
	setupCheckout(t, pixel("serial1"))

	stdout, _, err := execute(t, "list", "--format", "json")
	require.NoError(t, err)

	var list struct {
		Arch     string
		Platform string
		Modules  []struct {
			Module string
			Filter string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	assert.Equal(t, "arm64", list.Arch)
	assert.Equal(t, "O", list.Platform)
	require.Len(t, list.Modules, 3)
	assert.Equal(t, "CtsWebkitTestCases.apk", list.Modules[0].Module)
	assert.Equal(t, "--test-filter=-android.webkit.cts.WebViewTest#testFlaky", list.Modules[0].Filter)
	assert.Empty(t, list.Modules[2].Filter)
}

func TestListCommandConfigFile(t *testing.T) {
	root := setupCheckout(t)
	writeFile(t, filepath.Join(root, config.FileName), "arch: arm64\nplatform: O\nmodule_apk: CtsWidgetTestCases.apk\n", 0o644)

	stdout, _, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "CtsWidgetTestCases.apk")
	assert.NotContains(t, stdout, "CtsWebkitTestCases.apk")
}

func TestListCommandNeedsDevice(t *testing.T) {
	setupCheckout(t)
	_, _, err := execute(t, "list")
	var vErr *config.ValidationError
	require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
}

func TestExitCodeFor(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.Equal(t, 2, exitCodeFor(&exitError{code: 2}, buf))
	assert.Equal(t, 1, exitCodeFor(&exitError{code: -1}, buf))
	assert.Equal(t, 1, exitCodeFor(&exitError{code: 300}, buf))
	assert.Empty(t, buf.String())

	assert.Equal(t, 1, exitCodeFor(errors.New("boom"), buf))
	assert.Equal(t, "error: boom\n", buf.String())
}
