// Package platform maps device build properties onto the arch and platform
// keys used by the module catalog.
package platform

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Table maps SDK levels to platform letters and CPU ABIs to catalog arches.
type Table struct {
	Platforms map[int]string
	Arches    map[string]string
}

// DefaultTable returns the mappings for the platforms the catalog knows.
func DefaultTable() Table {
	return Table{
		Platforms: map[int]string{
			21: "L",
			22: "L",
			23: "M",
			24: "N",
			25: "N",
			26: "O",
			27: "O",
		},
		Arches: map[string]string{
			"arm64-v8a":   "arm64",
			"armeabi-v7a": "arm64",
		},
	}
}

var sdkRegex = regexp.MustCompile(`^\s*(\d+)\s*$`)

// ParseSDK extracts the numeric SDK level from a getprop value.
func ParseSDK(value string) (int, error) {
	match := sdkRegex.FindStringSubmatch(value)
	if len(match) < 2 {
		return 0, fmt.Errorf("unable to parse sdk level from %q", value)
	}
	return strconv.Atoi(match[1])
}

// Platform returns the platform letter for sdk.
func (t Table) Platform(sdk int) (string, bool) {
	p, ok := t.Platforms[sdk]
	return p, ok
}

// Arch returns the catalog arch for abi.
func (t Table) Arch(abi string) (string, bool) {
	a, ok := t.Arches[strings.TrimSpace(abi)]
	return a, ok
}

// PlatformNames lists the distinct platform letters in order.
func (t Table) PlatformNames() []string {
	values := make([]string, 0, len(t.Platforms))
	for _, p := range t.Platforms {
		values = append(values, p)
	}
	return distinct(values)
}

// ArchNames lists the distinct catalog arches in order.
func (t Table) ArchNames() []string {
	values := make([]string, 0, len(t.Arches))
	for _, a := range t.Arches {
		values = append(values, a)
	}
	return distinct(values)
}

func distinct(values []string) []string {
	sort.Strings(values)
	var out []string
	for _, v := range values {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
