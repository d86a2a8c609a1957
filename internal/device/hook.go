package device

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// hookArmTimeout bounds the wait for the hook facility to confirm it is enabled
const hookArmTimeout = 3 * time.Second

// NotificationSource is a global input hook facility. Start installs the
// hook and returns its notification stream. A healthy facility reports
// NotifyHookEnabled first; the stream is closed when the facility stops.
// Stop tears the facility down and closes the stream.
type NotificationSource interface {
	Start() <-chan Notification
	Stop()
}

// HookListener binds one process-wide callback to the platform's global
// input hook and forwards normalized events.
type HookListener struct {
	guard      Guard
	active     atomic.Bool
	source     NotificationSource
	armTimeout time.Duration
	gw         atomic.Pointer[Gateway]
}

// NewHookListener creates a listener on src, or on the platform hook when src is nil
func NewHookListener(src NotificationSource) *HookListener {
	if src == nil {
		src = defaultHookSource()
	}
	return &HookListener{source: src, armTimeout: hookArmTimeout}
}

// Start installs the hook and dispatches notifications on the calling
// goroutine. It does not return while the hook is alive. It returns
// ErrHookInstallationFailed when the facility does not come up within the
// arm timeout or when its stream ends. Calls after the first return nil
// immediately.
func (l *HookListener) Start(p Publisher) error {
	if !l.guard.Begin() {
		return nil
	}

	gw := NewGateway(p)
	l.gw.Store(gw)

	events := l.source.Start()

	timer := time.NewTimer(l.armTimeout)
	select {
	case n, ok := <-events:
		timer.Stop()
		if !ok {
			return fmt.Errorf("%w: global hook stopped before it was enabled", ErrHookInstallationFailed)
		}
		// Any report proves the hook is live, even if the enabled signal was missed
		l.active.Store(true)
		if ev, ok := Normalize(n); ok {
			gw.Emit(ev)
		}
	case <-timer.C:
		l.source.Stop()
		return fmt.Errorf("%w: global hook not enabled within %s", ErrHookInstallationFailed, l.armTimeout)
	}
	defer l.active.Store(false)

	log.Println("Device: Generic hook listener started")

	for n := range events {
		if ev, ok := Normalize(n); ok {
			gw.Emit(ev)
		}
	}

	return fmt.Errorf("%w: global hook event stream closed", ErrHookInstallationFailed)
}

// Listening reports whether Start has been called
func (l *HookListener) Listening() bool {
	return l.guard.Listening()
}

// Active reports whether the hook is enabled and delivering events
func (l *HookListener) Active() bool {
	return l.active.Load()
}

// Dropped returns the number of events the gateway failed to deliver
func (l *HookListener) Dropped() uint64 {
	return l.gw.Load().Dropped()
}
