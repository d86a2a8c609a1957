//go:build cgo

package device

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// gohookSource reads global input through libuiohook.
type gohookSource struct {
	done     chan struct{}
	stopOnce sync.Once
}

func defaultHookSource() NotificationSource {
	return &gohookSource{done: make(chan struct{})}
}

// Start runs the hook. libuiohook reports a failed installation only through
// its log, so callers must treat a missing NotifyHookEnabled as failure.
func (s *gohookSource) Start() <-chan Notification {
	events := hook.Start()
	out := make(chan Notification)

	go func() {
		defer close(out)
		for ev := range events {
			select {
			case out <- translate(ev):
			case <-s.done:
				return
			}
		}
	}()

	return out
}

// Stop ends the hook and releases the forwarding goroutine
func (s *gohookSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		hook.End()
	})
}

// translate resolves a libuiohook event. libuiohook numbers its kinds as
// typed/pressed/released for keys and clicked/pressed/released for buttons,
// which gohook exposes as KeyDown/KeyHold/KeyUp and MouseUp/MouseHold/MouseDown.
// Only the pressed and released pairs are kept.
func translate(ev hook.Event) Notification {
	switch ev.Kind {
	case hook.HookEnabled:
		return Notification{Type: NotifyHookEnabled}
	case hook.KeyHold:
		return Notification{Type: NotifyKeyDown, Key: KeyName(ev.Keycode)}
	case hook.KeyUp:
		return Notification{Type: NotifyKeyUp, Key: KeyName(ev.Keycode)}
	case hook.MouseHold:
		return Notification{Type: NotifyButtonDown, Button: ButtonName(ev.Button)}
	case hook.MouseDown:
		return Notification{Type: NotifyButtonUp, Button: ButtonName(ev.Button)}
	case hook.MouseMove, hook.MouseDrag:
		return Notification{Type: NotifyMotion, X: int(ev.X), Y: int(ev.Y)}
	}
	return Notification{Type: NotifyOther}
}
