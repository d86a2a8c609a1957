// Package osutils inspects the process environment for conditions that keep
// global input capture from seeing everything.
package osutils

import (
	"os"
	"runtime"
)

// CaptureWarning describes what global capture will miss at the current
// privilege level, or returns "" when nothing is known to be missed
func CaptureWarning() string {
	return captureWarning(runtime.GOOS, Elevated(), os.Getenv)
}

func captureWarning(goos string, elevated bool, getenv func(string) string) string {
	switch goos {
	case "windows":
		// UIPI keeps hooks at medium integrity from seeing input aimed at elevated windows
		if !elevated {
			return "not running elevated: input sent to elevated windows will not be captured"
		}
	case "darwin":
		return "global capture requires Accessibility (and Input Monitoring) permission for this binary"
	case "linux":
		if getenv("WAYLAND_DISPLAY") != "" && getenv("DISPLAY") == "" {
			return "no X11 display found: the global hook cannot observe Wayland sessions"
		}
	}
	return ""
}
