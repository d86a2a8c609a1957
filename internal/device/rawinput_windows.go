//go:build windows

package device

import (
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procRegisterRawInputDevices  = user32.NewProc("RegisterRawInputDevices")
	procGetRawInputData          = user32.NewProc("GetRawInputData")
	procSetWindowsHookEx         = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx           = user32.NewProc("CallNextHookEx")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procFindWindowEx             = user32.NewProc("FindWindowExW")
	procRegisterClassEx          = user32.NewProc("RegisterClassExW")
	procCreateWindowEx           = user32.NewProc("CreateWindowExW")
	procDefWindowProc            = user32.NewProc("DefWindowProcW")
	procGetMessage               = user32.NewProc("GetMessageW")
	procTranslateMessage         = user32.NewProc("TranslateMessage")
	procDispatchMessage          = user32.NewProc("DispatchMessageW")
	procGetModuleHandle          = kernel32.NewProc("GetModuleHandleW")
)

const (
	whGetMessage    = 3
	ridInput        = 0x10000003
	ridevInputSink  = 0x00000100
	hidUsagePage    = 0x01 // HID_USAGE_PAGE_GENERIC
	hidUsageMouse   = 0x02 // HID_USAGE_GENERIC_MOUSE
	rawInputFailure = 0xFFFFFFFF
)

type rawInputDevice struct {
	UsagePage uint16
	Usage     uint16
	Flags     uint32
	Target    uintptr
}

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

type wndClassEx struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     uintptr
	HIcon         uintptr
	HCursor       uintptr
	HbrBackground uintptr
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       uintptr
}

// winRawInput talks to user32. The hook lives for the process; it is never
// unhooked. onInput is read on the hooked window's thread.
type winRawInput struct {
	onInput atomic.Pointer[func(uintptr)]
}

func defaultRawInputSystem() rawInputSystem {
	return &winRawInput{}
}

func (s *winRawInput) RegisterMouse(hwnd WindowHandle) error {
	dev := rawInputDevice{
		UsagePage: hidUsagePage,
		Usage:     hidUsageMouse,
		Flags:     ridevInputSink,
		Target:    uintptr(hwnd),
	}
	ret, _, err := procRegisterRawInputDevices.Call(
		uintptr(unsafe.Pointer(&dev)),
		1,
		unsafe.Sizeof(dev),
	)
	if ret == 0 {
		return fmt.Errorf("%w: RegisterRawInputDevices: %v", ErrRawInputRegistrationFailed, err)
	}
	return nil
}

func (s *winRawInput) InstallMessageHook(hwnd WindowHandle, onInput func(uintptr)) error {
	tid, _, err := procGetWindowThreadProcessId.Call(uintptr(hwnd), 0)
	if tid == 0 {
		return fmt.Errorf("%w: GetWindowThreadProcessId: %v", ErrHookInstallationFailed, err)
	}

	s.onInput.Store(&onInput)
	hook, _, err := procSetWindowsHookEx.Call(
		whGetMessage,
		windows.NewCallback(s.getMessageProc),
		0, // hook procedure lives in this process
		tid,
	)
	if hook == 0 {
		return fmt.Errorf("%w: SetWindowsHookExW: %v", ErrHookInstallationFailed, err)
	}
	return nil
}

func (s *winRawInput) getMessageProc(code int32, wParam uintptr, lParam uintptr) uintptr {
	if lParam != 0 {
		msg := (*winMsg)(unsafe.Pointer(lParam))
		if takesRawInput(code, wParam, msg.Message) {
			if fn := s.onInput.Load(); fn != nil {
				(*fn)(msg.LParam)
			}
		}
	}
	// The hook handle argument is ignored by CallNextHookEx
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(code), wParam, lParam)
	return ret
}

func (s *winRawInput) ReadRawInput(handle uintptr) ([]byte, error) {
	headerSize := uintptr(rawHeaderSize)

	var size uint32
	ret, _, err := procGetRawInputData.Call(
		handle,
		ridInput,
		0, // NULL buffer: query the size
		uintptr(unsafe.Pointer(&size)),
		headerSize,
	)
	if uint32(ret) == rawInputFailure {
		return nil, fmt.Errorf("GetRawInputData size query: %v", err)
	}
	if size == 0 {
		return nil, ErrShortBuffer
	}

	buf := make([]byte, size)
	ret, _, err = procGetRawInputData.Call(
		handle,
		ridInput,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		headerSize,
	)
	if uint32(ret) == rawInputFailure || ret == 0 {
		return nil, fmt.Errorf("GetRawInputData fetch: %v", err)
	}
	return buf[:ret], nil
}

// findWindow resolves a top-level window of this process by title.
// Hooks installed without a DLL only reach threads of the calling process,
// so same-titled windows of other processes are skipped.
func findWindow(title string) (WindowHandle, error) {
	name, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWindowNotFound, err)
	}

	self := windows.GetCurrentProcessId()
	var hwnd, foreign uintptr
	for {
		hwnd, _, _ = procFindWindowEx.Call(0, hwnd, 0, uintptr(unsafe.Pointer(name)))
		if hwnd == 0 {
			break
		}
		var pid uint32
		procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
		if pid == self {
			return WindowHandle(hwnd), nil
		}
		foreign = hwnd
	}

	if foreign != 0 {
		return 0, fmt.Errorf("%w: %q only exists in other processes", ErrWindowNotFound, title)
	}
	return 0, ErrWindowNotFound
}

func defaultWindowResolver() WindowResolver {
	return WindowResolverFunc(findWindow)
}

// OpenSinkWindow creates a hidden top-level window titled title on a
// dedicated OS thread and pumps its messages for the life of the process.
// The window gives the raw-input listener a queue to hook when the host
// application has no window of its own.
func OpenSinkWindow(title string) (WindowHandle, error) {
	type result struct {
		hwnd WindowHandle
		err  error
	}
	ready := make(chan result, 1)

	go func() {
		runtime.LockOSThread()
		// The thread stays locked: the window and its hook belong to it.

		hwnd, err := createSinkWindow(title)
		ready <- result{hwnd, err}
		if err != nil {
			return
		}

		var msg winMsg
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
		}
		log.Printf("Device: Sink window %q message loop exited", title)
	}()

	r := <-ready
	return r.hwnd, r.err
}

func createSinkWindow(title string) (WindowHandle, error) {
	className, err := windows.UTF16PtrFromString("BongoCatInputSink")
	if err != nil {
		return 0, err
	}
	windowName, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, err
	}

	hInstance, _, _ := procGetModuleHandle.Call(0)
	wc := wndClassEx{
		CbSize:        uint32(unsafe.Sizeof(wndClassEx{})),
		LpfnWndProc:   windows.NewCallback(sinkWindowProc),
		HInstance:     hInstance,
		LpszClassName: className,
	}
	if ret, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc))); ret == 0 {
		if errno, ok := err.(syscall.Errno); !ok || errno != windows.ERROR_CLASS_ALREADY_EXISTS {
			return 0, fmt.Errorf("RegisterClassExW: %v", err)
		}
	}

	hwnd, _, err := procCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(windowName)),
		0,          // not visible
		0, 0, 1, 1, // 1x1
		0, 0, hInstance, 0,
	)
	if hwnd == 0 {
		return 0, fmt.Errorf("CreateWindowExW: %v", err)
	}

	log.Printf("Device: Sink window %q created (hwnd 0x%X)", title, hwnd)
	return WindowHandle(hwnd), nil
}

func sinkWindowProc(hwnd uintptr, msg uint32, wParam uintptr, lParam uintptr) uintptr {
	ret, _, _ := procDefWindowProc.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}
