package plugin

import "golang.org/x/sys/unix"

const osName = "macOS"

func osVersion() string {
	if v, err := unix.Sysctl("kern.osproductversion"); err == nil && v != "" {
		return v
	}
	// Kernels older than 10.13.4 lack kern.osproductversion.
	v, _ := unix.Sysctl("kern.osrelease")
	return v
}
