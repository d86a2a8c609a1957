//go:build !cgo

package device

import "log"

// closedSource stands in for libuiohook when built without cgo
type closedSource struct{}

func defaultHookSource() NotificationSource {
	return closedSource{}
}

func (closedSource) Start() <-chan Notification {
	log.Println("Device: Global hook requires cgo (rebuild with CGO_ENABLED=1)")
	ch := make(chan Notification)
	close(ch)
	return ch
}

func (closedSource) Stop() {}
