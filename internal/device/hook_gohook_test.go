//go:build cgo

package device

import (
	"testing"

	hook "github.com/robotn/gohook"
	"github.com/stretchr/testify/assert"
)

func TestTranslateGohookEvents(t *testing.T) {
	tests := []struct {
		name string
		in   hook.Event
		want Notification
	}{
		{"key pressed", hook.Event{Kind: hook.KeyHold, Keycode: 0x001E}, Notification{Type: NotifyKeyDown, Key: "KeyA"}},
		{"key released", hook.Event{Kind: hook.KeyUp, Keycode: 0x001E}, Notification{Type: NotifyKeyUp, Key: "KeyA"}},
		{"key typed", hook.Event{Kind: hook.KeyDown, Keycode: 0x001E}, Notification{Type: NotifyOther}},
		{"button pressed", hook.Event{Kind: hook.MouseHold, Button: 1}, Notification{Type: NotifyButtonDown, Button: "Left"}},
		{"button released", hook.Event{Kind: hook.MouseDown, Button: 2}, Notification{Type: NotifyButtonUp, Button: "Right"}},
		{"clicked", hook.Event{Kind: hook.MouseUp, Button: 1}, Notification{Type: NotifyOther}},
		{"moved", hook.Event{Kind: hook.MouseMove, X: 10, Y: 20}, Notification{Type: NotifyMotion, X: 10, Y: 20}},
		{"wheel", hook.Event{Kind: hook.MouseWheel}, Notification{Type: NotifyOther}},
		{"hook enabled", hook.Event{Kind: hook.HookEnabled}, Notification{Type: NotifyHookEnabled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translate(tt.in))
		})
	}
}
