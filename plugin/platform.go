package plugin

// PlatformInfo identifies the operating system the plugin runs on.
type PlatformInfo interface {
	Name() string
	Version() string
}

// PlatformVersion formats p as "<name> <version>", e.g. "macOS 14.4.1".
func PlatformVersion(p PlatformInfo) string {
	return p.Name() + " " + p.Version()
}

// HostPlatform returns the PlatformInfo of the running host. Lookups happen on
// every call, nothing is cached.
func HostPlatform() PlatformInfo {
	return hostPlatform{}
}

type hostPlatform struct{}

func (hostPlatform) Name() string {
	return osName
}

func (hostPlatform) Version() string {
	v := osVersion()
	if v == "" {
		return "unknown"
	}
	return v
}
