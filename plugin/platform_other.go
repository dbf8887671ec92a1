//go:build !linux && !darwin && !windows && !freebsd && !netbsd && !openbsd && !dragonfly

package plugin

import "runtime"

var osName = runtime.GOOS

func osVersion() string {
	return ""
}
