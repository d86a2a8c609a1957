//go:build windows

package osutils

import (
	"golang.org/x/sys/windows"
)

// Elevated reports whether the process token is elevated. A UAC-filtered
// administrator token is not.
func Elevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
