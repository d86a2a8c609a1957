package device

import (
	"log"
	"sync/atomic"
)

// EventName is the name under which DeviceEvents are published
const EventName = "device-changed"

// Publisher delivers a named payload to the UI layer
type Publisher interface {
	Publish(name string, payload any) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(name string, payload any) error

// Publish calls f
func (f PublisherFunc) Publish(name string, payload any) error {
	return f(name, payload)
}

// dropLogEvery controls how often repeated delivery failures are logged
const dropLogEvery = 1000

// Gateway forwards events to a Publisher. Delivery failures are counted and
// otherwise ignored; capture never stops because the consumer is unhappy.
type Gateway struct {
	pub     Publisher
	dropped atomic.Uint64
}

// NewGateway wraps p
func NewGateway(p Publisher) *Gateway {
	return &Gateway{pub: p}
}

// Emit publishes ev under EventName
func (g *Gateway) Emit(ev DeviceEvent) {
	if g == nil || g.pub == nil {
		return
	}
	if err := g.pub.Publish(EventName, ev); err != nil {
		n := g.dropped.Add(1)
		if n == 1 || n%dropLogEvery == 0 {
			log.Printf("Device: Dropped %d event(s), last error: %v", n, err)
		}
	}
}

// Dropped returns the number of events that failed delivery
func (g *Gateway) Dropped() uint64 {
	if g == nil {
		return 0
	}
	return g.dropped.Load()
}
