package plugin

import "golang.org/x/sys/windows"

const osName = "Windows"

// osVersion buckets the running release the way the version helpers do:
// "10+", "8" or "7".
func osVersion() string {
	info := windows.RtlGetVersion()
	switch {
	case info.MajorVersion >= 10:
		return "10+"
	case info.MajorVersion == 6 && info.MinorVersion >= 2:
		return "8"
	case info.MajorVersion == 6 && info.MinorVersion == 1:
		return "7"
	default:
		return ""
	}
}
