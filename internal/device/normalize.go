package device

// NotificationType classifies a platform input notification
type NotificationType int

const (
	NotifyOther NotificationType = iota
	NotifyButtonDown
	NotifyButtonUp
	NotifyKeyDown
	NotifyKeyUp
	NotifyMotion
	NotifyHookEnabled
)

// Notification is an input report from a hook facility, after its native
// codes have been resolved to names.
type Notification struct {
	Type   NotificationType
	Button string
	Key    string
	X, Y   int
}

// Normalize maps a notification to a DeviceEvent. The second result is false
// for notifications that produce no event. Motion is one of those: pointer
// motion reaches the UI through the raw-input path only.
func Normalize(n Notification) (DeviceEvent, bool) {
	switch n.Type {
	case NotifyButtonDown:
		return NewButtonEvent(true, n.Button), true
	case NotifyButtonUp:
		return NewButtonEvent(false, n.Button), true
	case NotifyKeyDown:
		return NewKeyEvent(true, n.Key), true
	case NotifyKeyUp:
		return NewKeyEvent(false, n.Key), true
	}
	return DeviceEvent{}, false
}
