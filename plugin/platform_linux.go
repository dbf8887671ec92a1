package plugin

import (
	"strings"

	"golang.org/x/sys/unix"
)

const osName = "Linux"

// osVersion is the kernel build string from uname(2), e.g. "#1 SMP PREEMPT_DYNAMIC ...".
func osVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return strings.TrimSpace(unix.ByteSliceToString(uts.Version[:]))
}
