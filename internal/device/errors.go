package device

import "errors"

var (
	// ErrHookInstallationFailed is returned when an OS input hook cannot be
	// installed, or when the hook's event stream terminates.
	ErrHookInstallationFailed = errors.New("hook installation failed")

	// ErrWindowNotFound is returned when the target window cannot be resolved
	ErrWindowNotFound = errors.New("window not found")

	// ErrRawInputRegistrationFailed is returned when the OS rejects the raw input device registration
	ErrRawInputRegistrationFailed = errors.New("raw input registration failed")

	// ErrUnsupportedPlatform is returned by listeners that have no backend on this OS
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrShortBuffer is returned when a raw input buffer is smaller than its declared layout
	ErrShortBuffer = errors.New("raw input buffer too short")

	// ErrNotMouse is returned when a raw input packet is not a mouse packet
	ErrNotMouse = errors.New("raw input is not a mouse packet")

	ErrUnknownKind     = errors.New("unknown event kind")
	ErrPayloadMismatch = errors.New("payload does not match event kind")
	ErrUnknownMode     = errors.New("unknown capture mode")
)
