//go:build !windows

package device

import "fmt"

// Raw input is a Win32 facility; elsewhere every step fails.

type unsupportedRawInput struct{}

func defaultRawInputSystem() rawInputSystem {
	return unsupportedRawInput{}
}

func (unsupportedRawInput) RegisterMouse(WindowHandle) error {
	return fmt.Errorf("%w: %w", ErrRawInputRegistrationFailed, ErrUnsupportedPlatform)
}

func (unsupportedRawInput) InstallMessageHook(WindowHandle, func(uintptr)) error {
	return fmt.Errorf("%w: %w", ErrHookInstallationFailed, ErrUnsupportedPlatform)
}

func (unsupportedRawInput) ReadRawInput(uintptr) ([]byte, error) {
	return nil, ErrUnsupportedPlatform
}

func defaultWindowResolver() WindowResolver {
	return WindowResolverFunc(func(id string) (WindowHandle, error) {
		return 0, fmt.Errorf("%w: %w", ErrWindowNotFound, ErrUnsupportedPlatform)
	})
}

// OpenSinkWindow is only available on Windows
func OpenSinkWindow(title string) (WindowHandle, error) {
	return 0, ErrUnsupportedPlatform
}
