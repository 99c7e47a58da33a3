package registry

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// HostArch returns the architecture of the running binary in the form SelectDigest
// expects, e.g. "amd64" or "arm/v7".
//
// On 32-bit ARM the variant comes from the GOARM value recorded at build time.
func HostArch() string {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}

	return hostArch(runtime.GOARCH, settings)
}

func hostArch(goarch string, settings []debug.BuildSetting) string {
	if goarch != "arm" {
		return goarch
	}

	for _, setting := range settings {
		if setting.Key != "GOARM" {
			continue
		}

		// Since Go 1.22 the value may carry a float mode, e.g. "7,softfloat".
		level, _, _ := strings.Cut(setting.Value, ",")
		if level != "" {
			return goarch + "/v" + level
		}
	}

	return goarch
}
