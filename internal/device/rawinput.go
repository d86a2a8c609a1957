package device

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
)

// WindowHandle is a native window handle (HWND on Windows)
type WindowHandle uintptr

// WindowResolver maps a logical window identifier to its native handle
type WindowResolver interface {
	ResolveWindow(id string) (WindowHandle, error)
}

// WindowResolverFunc adapts a function to WindowResolver
type WindowResolverFunc func(id string) (WindowHandle, error)

// ResolveWindow calls f
func (f WindowResolverFunc) ResolveWindow(id string) (WindowHandle, error) {
	return f(id)
}

// Message values a WH_GETMESSAGE hook inspects
const (
	wmInput  = 0x00FF
	pmRemove = 0x0001
)

// takesRawInput reports whether a get-message hook call carries a WM_INPUT
// that is being removed from the queue. A message peeked without PM_REMOVE
// is seen again when it is finally retrieved.
func takesRawInput(code int32, removal uintptr, message uint32) bool {
	return code >= 0 && removal == pmRemove && message == wmInput
}

// rawInputSystem is the OS surface the raw-input listener needs
type rawInputSystem interface {
	// RegisterMouse asks for generic-mouse raw input to be delivered to hwnd
	RegisterMouse(hwnd WindowHandle) error

	// InstallMessageHook hooks the message queue of the thread that owns
	// hwnd and calls onInput with the handle of every WM_INPUT removed from it
	InstallMessageHook(hwnd WindowHandle, onInput func(handle uintptr)) error

	// ReadRawInput copies the packet behind handle, sizing the buffer with
	// a query call first
	ReadRawInput(handle uintptr) ([]byte, error)
}

// RawInputListener accumulates raw mouse deltas delivered to a window into
// a bounded absolute position and publishes it as MouseMove events.
type RawInputListener struct {
	guard    Guard
	armed    atomic.Bool
	windowID string
	resolver WindowResolver
	sys      rawInputSystem
	pos      *Accumulator
	gw       atomic.Pointer[Gateway]
}

// NewRawInputListener creates a listener for the window named windowID.
// A nil resolver uses the platform's window lookup.
func NewRawInputListener(windowID string, resolver WindowResolver, pos *Accumulator) *RawInputListener {
	return newRawInputListener(windowID, resolver, defaultRawInputSystem(), pos)
}

func newRawInputListener(windowID string, resolver WindowResolver, sys rawInputSystem, pos *Accumulator) *RawInputListener {
	if resolver == nil {
		resolver = defaultWindowResolver()
	}
	if pos == nil {
		pos = NewAccumulator()
	}
	return &RawInputListener{
		windowID: windowID,
		resolver: resolver,
		sys:      sys,
		pos:      pos,
	}
}

// Start resolves the window, registers for raw mouse input and hooks the
// window's message queue. It returns once the hook is armed. Calls after the
// first return nil, even if the first one failed.
func (l *RawInputListener) Start(p Publisher) error {
	if !l.guard.Begin() {
		return nil
	}

	// The gateway must be visible before the hook can fire
	l.gw.Store(NewGateway(p))

	hwnd, err := l.resolver.ResolveWindow(l.windowID)
	if err != nil {
		return fmt.Errorf("raw input: resolve window %q: %w", l.windowID, asKind(ErrWindowNotFound, err))
	}
	if hwnd == 0 {
		return fmt.Errorf("raw input: resolve window %q: %w", l.windowID, ErrWindowNotFound)
	}

	if err := l.sys.RegisterMouse(hwnd); err != nil {
		return fmt.Errorf("raw input: register mouse: %w", asKind(ErrRawInputRegistrationFailed, err))
	}

	if err := l.sys.InstallMessageHook(hwnd, l.handleInput); err != nil {
		return fmt.Errorf("raw input: install message hook: %w", asKind(ErrHookInstallationFailed, err))
	}

	l.armed.Store(true)
	log.Printf("Device: Raw input listener armed on window %q (hwnd 0x%X)", l.windowID, uintptr(hwnd))
	return nil
}

// handleInput runs inside the hook callback on the window's thread.
// Anything that fails to read or decode is dropped.
func (l *RawInputListener) handleInput(handle uintptr) {
	buf, err := l.sys.ReadRawInput(handle)
	if err != nil {
		return
	}
	l.HandlePacket(buf)
}

// HandlePacket decodes one RAWINPUT buffer and publishes the new position
// for mouse packets. Other packets are ignored.
func (l *RawInputListener) HandlePacket(buf []byte) {
	m, err := DecodeRawMouse(buf)
	if err != nil {
		return
	}

	p := l.pos.Add(int(m.LastX), int(m.LastY))
	l.gw.Load().Emit(NewMoveEvent(p))
}

// Listening reports whether Start has been called
func (l *RawInputListener) Listening() bool {
	return l.guard.Listening()
}

// Active reports whether the hook is armed and delivering input
func (l *RawInputListener) Active() bool {
	return l.armed.Load()
}

// Position returns the accumulated cursor position
func (l *RawInputListener) Position() Point {
	return l.pos.Position()
}

// Dropped returns the number of events the gateway failed to deliver
func (l *RawInputListener) Dropped() uint64 {
	return l.gw.Load().Dropped()
}

// asKind makes sure err matches kind under errors.Is
func asKind(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
