package main

import (
	"github.com/spf13/cobra"
)

// resultsFlags all name the merged results file.
var resultsFlags = []string{
	"json-results-file",
	"test-launcher-summary-output",
	"write-full-results-to",
	"isolated-script-test-output",
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ctsrun",
		Short:         "ctsrun runs the WebView CTS modules for a device and merges their results",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("arch", "", "catalog architecture (default: detected from ro.product.cpu.abi)")
	persistent.String("platform", "", "Android platform letter (default: detected from the SDK level)")
	persistent.String("device", "", "serial of the device to use (default: first attached device)")
	persistent.String("root", "", "checkout root that input paths are relative to (default: working directory)")
	persistent.String("runner", "", "instrumentation test runner executable")
	persistent.String("manifest", "", "CTS archive manifest")
	persistent.String("expected-failures", "", "expected failures file used by --skip-expected-failures")
	persistent.String("archive-dir", "", "directory holding the downloaded CTS archives")
	persistent.String("apk-dir", "", "directory to extract CTS packages to (default: temporary directory)")
	persistent.StringP("module-apk", "m", "", "run only the module with this package name")
	persistent.String("test-launcher-filter-file", "", "test filter file forwarded to the runner")
	persistent.StringP("test-filter", "f", "", "test filter forwarded to the runner")
	persistent.String("isolated-script-test-filter", "", "isolated script test filter forwarded to the runner")
	persistent.Bool("skip-expected-failures", false, "skip tests that are expected to fail; can't be used with test filters")
	for _, name := range resultsFlags {
		persistent.String(name, "", "write merged JSON results to this file")
	}
	persistent.String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	persistent.Bool("dry-run", false, "print runner commands without executing them")
	persistent.BoolP("verbose", "v", false, "enable debug logging")
	persistent.String("format", "pretty", "output format (pretty|json)")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}
