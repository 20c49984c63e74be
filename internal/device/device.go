// Package device selects the attached Android device and reads the build
// properties used to pick the catalog arch and platform.
package device

import (
	"strings"

	"github.com/electricbubble/gadb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/bgricker/ctsrun/internal/config"
	"github.com/bgricker/ctsrun/internal/platform"
)

const (
	sdkProperty = "ro.build.version.sdk"
	abiProperty = "ro.product.cpu.abi"
)

// Device is the subset of an adb device used here. gadb.Device satisfies it.
type Device interface {
	Serial() string
	RunShellCommand(cmd string, args ...string) (string, error)
}

// Lister enumerates attached devices.
type Lister interface {
	Devices() ([]Device, error)
}

// ADB lists devices through the adb server at Host:Port. Zero values use the
// gadb defaults.
type ADB struct {
	Host string
	Port int
}

// Devices implements Lister.
func (a ADB) Devices() ([]Device, error) {
	var (
		client gadb.Client
		err    error
	)
	if a.Host == "" && a.Port == 0 {
		client, err = gadb.NewClient()
	} else {
		host := a.Host
		if host == "" {
			host = "localhost"
		}
		var port []int
		if a.Port != 0 {
			port = append(port, a.Port)
		}
		client, err = gadb.NewClientWith(host, port...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "connect to adb server")
	}
	list, err := client.DeviceList()
	if err != nil {
		return nil, errors.Wrap(err, "list adb devices")
	}
	devices := make([]Device, 0, len(list))
	for _, d := range list {
		devices = append(devices, d)
	}
	return devices, nil
}

// Select picks the device with serial, or the first device when serial is
// empty. Extra devices are ignored with a warning.
func Select(devices []Device, serial string, logger log.Logger) (Device, error) {
	if serial != "" {
		for _, d := range devices {
			if d.Serial() == serial {
				return d, nil
			}
		}
		return nil, config.Invalidf("device %q is not attached", serial)
	}
	if len(devices) == 0 {
		return nil, config.Invalidf("no devices attached")
	}
	d := devices[0]
	if len(devices) > 1 {
		logger.Warn("Only single device supported, using first device", "devices", len(devices), "serial", d.Serial())
	}
	return d, nil
}

// Properties are the build properties read from a device.
type Properties struct {
	Serial string
	SDK    string
	ABI    string
}

// Probe reads the SDK level and CPU ABI of d.
func Probe(d Device) (Properties, error) {
	props := Properties{Serial: d.Serial()}
	var err error
	if props.SDK, err = getprop(d, sdkProperty); err != nil {
		return Properties{}, err
	}
	if props.ABI, err = getprop(d, abiProperty); err != nil {
		return Properties{}, err
	}
	return props, nil
}

func getprop(d Device, name string) (string, error) {
	out, err := d.RunShellCommand("getprop", name)
	if err != nil {
		return "", errors.Wrapf(err, "getprop %s on %s", name, d.Serial())
	}
	return strings.TrimSpace(out), nil
}

// Target is the resolved run target.
type Target struct {
	Arch     string
	Platform string
	// Serial is empty when no device was consulted.
	Serial string
}

// RunnerArgs returns the device selection arguments for the test runner.
func (t Target) RunnerArgs() []string {
	if t.Serial == "" {
		return nil
	}
	return []string{"-d", t.Serial}
}

// ResolveOptions describe what the user supplied explicitly.
type ResolveOptions struct {
	Arch     string
	Platform string
	Serial   string
	Table    platform.Table
	Log      log.Logger
}

// Resolve fills in the arch and platform missing from opts by probing the
// selected device. When both are given and no serial was requested, an
// unreachable adb server is not an error and the target carries no serial.
func Resolve(lister Lister, opts ResolveOptions) (Target, error) {
	if opts.Log == nil {
		opts.Log = log.Root()
	}
	if opts.Table.Platforms == nil && opts.Table.Arches == nil {
		opts.Table = platform.DefaultTable()
	}
	target := Target{Arch: opts.Arch, Platform: opts.Platform}
	needsProbe := opts.Arch == "" || opts.Platform == ""

	devices, err := lister.Devices()
	if err != nil {
		if needsProbe || opts.Serial != "" {
			return Target{}, err
		}
		opts.Log.Debug("No adb devices available, running without device selection", "err", err)
		return target, nil
	}
	if len(devices) == 0 && !needsProbe && opts.Serial == "" {
		return target, nil
	}
	d, err := Select(devices, opts.Serial, opts.Log)
	if err != nil {
		return Target{}, err
	}
	target.Serial = d.Serial()
	if !needsProbe {
		return target, nil
	}

	props, err := Probe(d)
	if err != nil {
		return Target{}, err
	}
	if target.Platform == "" {
		sdk, err := platform.ParseSDK(props.SDK)
		if err != nil {
			return Target{}, config.Invalidf("could not auto-determine device platform from sdk %q, please specify --platform", props.SDK)
		}
		p, ok := opts.Table.Platform(sdk)
		if !ok {
			return Target{}, config.Invalidf("could not auto-determine device platform for sdk %d, please specify --platform", sdk)
		}
		opts.Log.Info("Guessing platform from device", "platform", p, "sdk", sdk)
		target.Platform = p
	}
	if target.Arch == "" {
		a, ok := opts.Table.Arch(props.ABI)
		if !ok {
			return Target{}, config.Invalidf("could not find catalog arch for device abi %q, please specify --arch", props.ABI)
		}
		opts.Log.Info("Guessing arch from device", "arch", a, "abi", props.ABI)
		target.Arch = a
	}
	return target, nil
}
