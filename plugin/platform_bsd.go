//go:build freebsd || netbsd || openbsd || dragonfly

package plugin

import (
	"runtime"

	"golang.org/x/sys/unix"
)

var osName = map[string]string{
	"freebsd":   "FreeBSD",
	"netbsd":    "NetBSD",
	"openbsd":   "OpenBSD",
	"dragonfly": "DragonFly",
}[runtime.GOOS]

func osVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Release[:])
}
