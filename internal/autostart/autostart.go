// Package autostart registers the service to launch at login.
package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// ErrUnsupported is returned on platforms without a login-item mechanism
var ErrUnsupported = errors.New("autostart not supported on this platform")

const appID = "com.bongocat.input"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.ID}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=BongoCat
Comment=BongoCat input capture
Exec="{{.ExecutablePath}}"
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

// entry is a file-based login item (LaunchAgent or XDG autostart)
type entry struct {
	path string
	tmpl string
}

func fileEntry(goos, home string) (entry, bool) {
	switch goos {
	case "darwin":
		return entry{filepath.Join(home, "Library", "LaunchAgents", appID+".plist"), macLaunchAgentPlist}, true
	case "linux", "freebsd", "openbsd", "netbsd":
		dir := os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			dir = filepath.Join(home, ".config")
		}
		return entry{filepath.Join(dir, "autostart", "bongocat.desktop"), xdgDesktopEntry}, true
	}
	return entry{}, false
}

func (e entry) enable(execPath string) error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("autostart").Parse(e.tmpl)
	if err != nil {
		return err
	}

	f, err := os.Create(e.path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, struct{ ID, ExecutablePath string }{appID, execPath})
}

func (e entry) disable() error {
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (e entry) enabled() bool {
	_, err := os.Stat(e.path)
	return err == nil
}

func currentEntry() (entry, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return entry{}, err
	}
	e, ok := fileEntry(runtime.GOOS, home)
	if !ok {
		return entry{}, fmt.Errorf("%w: %s", ErrUnsupported, runtime.GOOS)
	}
	return e, nil
}

// Enable enables auto-start on login
func Enable() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if runtime.GOOS == "windows" {
		return enableRegistry(execPath)
	}
	e, err := currentEntry()
	if err != nil {
		return err
	}
	return e.enable(execPath)
}

// Disable disables auto-start on login
func Disable() error {
	if runtime.GOOS == "windows" {
		return disableRegistry()
	}
	e, err := currentEntry()
	if err != nil {
		return err
	}
	return e.disable()
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	if runtime.GOOS == "windows" {
		return isEnabledRegistry()
	}
	e, err := currentEntry()
	if err != nil {
		return false
	}
	return e.enabled()
}

// Sync makes the login item match want
func Sync(want bool) error {
	if IsEnabled() == want {
		return nil
	}
	if want {
		return Enable()
	}
	return Disable()
}
